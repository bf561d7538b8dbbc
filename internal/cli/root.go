// Package cli implements rvctl, the operator command line for the report
// vault: running a matching sweep, applying migrations, inspecting encode
// prefixes, issuing access tokens and opening reports over gRPC.
package cli

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/reportvault/internal/server/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

// NewRootCmd builds the rvctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "rvctl",
		Short: "Operate a report vault server",
		Long: `rvctl talks to the report vault database and API.

Examples:
  # Run one deferred matching sweep
  rvctl sweep -c server.json

  # Check whether a stored encode prefix is due for a rehash
  rvctl prefix inspect 'pbkdf2_sha256$390000$c2FsdA'

  # Issue a 1h access token and open a report with it
  rvctl token user-42 --ttl 1h
  rvctl report open 5f0c... --token <jwt>`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the server JSON config")

	root.AddCommand(newSweepCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newPrefixCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newReportCmd(opts))
	return root
}

// loadConfig applies defaults and then the optional JSON file. Server
// command-line flags are not parsed here.
func (o *options) loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	if o.configPath != "" {
		if err := config.ApplyJSONFile(cfg, o.configPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.GreenString("✓")+" "+fmt.Sprintf(format, args...))
}

func detail(w io.Writer, label, value string) {
	fmt.Fprintln(w, color.CyanString("→")+" "+label+": "+value)
}

// Failure formats err for the terminal.
func Failure(err error) string {
	return color.RedString("✗") + " " + err.Error()
}
