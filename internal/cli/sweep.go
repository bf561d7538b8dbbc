package cli

import (
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/server"
	"github.com/spf13/cobra"
)

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one deferred matching pass over pending match reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			app, err := server.NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Sweep(cmd.Context())
			if res != nil {
				out := cmd.OutOrStdout()
				success(out, "Sweep finished")
				detail(out, "groups", fmt.Sprint(res.Groups))
				detail(out, "matched", fmt.Sprint(res.Matched))
				detail(out, "failed", fmt.Sprint(res.Failed))
			}
			return err
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			app, err := server.NewApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
