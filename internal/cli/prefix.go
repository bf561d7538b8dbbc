package cli

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/reportvault/internal/hashers"
	"github.com/spf13/cobra"
)

func newPrefixCmd(opts *options) *cobra.Command {
	prefix := &cobra.Command{
		Use:   "prefix",
		Short: "Work with stored encode prefixes",
	}

	prefix.AddCommand(&cobra.Command{
		Use:   "inspect <encode-prefix>",
		Short: "Show which hasher produced a prefix and whether it needs a rehash",
		Long: `Resolves a stored encode prefix against the configured hashers.
An empty prefix ('') denotes a legacy record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			registry, err := hashers.NewRegistry(cfg.HasherConfig())
			if err != nil {
				return err
			}

			encoded := args[0]
			h, err := registry.Identify(encoded)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			success(out, "Prefix resolved")
			if encoded == "" {
				detail(out, "algorithm", fmt.Sprintf("legacy (pbkdf2, %d iterations, legacy salt)", hashers.LegacyIterations))
			} else {
				fields := strings.SplitN(encoded, "$", 3)
				detail(out, "algorithm", h.Algorithm())
				if len(fields) > 1 {
					detail(out, "params", fields[1])
				}
			}
			detail(out, "default", registry.Default().Algorithm())
			detail(out, "must update", fmt.Sprint(registry.MustUpdate(encoded)))
			return nil
		},
	})
	return prefix
}
