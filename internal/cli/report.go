package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/reportvault/internal/common"
	gs "github.com/dmitrijs2005/reportvault/internal/server/grpc"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type reportClient interface {
	OpenReport(ctx context.Context, reportID, passphrase string) (string, error)
	SubmitReport(ctx context.Context, reportID, passphrase string) (string, error)
	Close() error
}

var (
	dialReportVault = func(addr, token string) (reportClient, error) {
		c, err := gs.NewGRPCClient(addr, token)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	readPassphrase = func(prompt string) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("cannot read passphrase: stdin is not a terminal")
		}
		fmt.Fprint(os.Stderr, prompt)
		p, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(p), nil
	}
)

type reportOptions struct {
	addr  string
	token string
}

func newReportCmd(opts *options) *cobra.Command {
	ro := &reportOptions{}

	report := &cobra.Command{
		Use:   "report",
		Short: "Open or submit a report through the gRPC API",
	}
	report.PersistentFlags().StringVar(&ro.addr, "addr", "", "gRPC endpoint (defaults to the configured address)")
	report.PersistentFlags().StringVar(&ro.token, "token", "", "access token of the report owner")

	report.AddCommand(&cobra.Command{
		Use:   "open <report-id>",
		Short: "Decrypt a report and print its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withClient(opts, func(c reportClient, passphrase string) error {
				content, err := c.OpenReport(cmd.Context(), args[0], passphrase)
				if err != nil {
					return explain(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			})
		},
	})

	report.AddCommand(&cobra.Command{
		Use:   "submit <report-id>",
		Short: "Deliver a report to the receiving authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.withClient(opts, func(c reportClient, passphrase string) error {
				id, err := c.SubmitReport(cmd.Context(), args[0], passphrase)
				if err != nil {
					return explain(err)
				}
				success(cmd.OutOrStdout(), "Report submitted")
				detail(cmd.OutOrStdout(), "report id", id)
				return nil
			})
		},
	})
	return report
}

func (ro *reportOptions) withClient(opts *options, fn func(reportClient, string) error) error {
	if ro.token == "" {
		return errors.New("an access token is required (--token)")
	}
	addr := ro.addr
	if addr == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.EndpointAddrGRPC
	}

	passphrase, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}

	c, err := dialReportVault(addr, ro.token)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c, passphrase)
}

func explain(err error) error {
	switch {
	case errors.Is(err, common.ErrDecryption):
		return errors.New("incorrect passphrase")
	case errors.Is(err, common.ErrorNotFound):
		return errors.New("report not found")
	case errors.Is(err, common.ErrTokenExpired):
		return errors.New("access token expired, issue a new one with 'rvctl token'")
	}
	return err
}
