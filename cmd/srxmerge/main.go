// srxmerge merges Junos security policy directive documents into a base
// configuration, validates the result and renders the resolved policy
// view. It also runs as a config daemon with HTTP and gRPC APIs and an
// interactive shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psaab/srxmerge/pkg/jobs"
	"github.com/psaab/srxmerge/pkg/logging"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/report"
)

var (
	debug    bool
	logLevel string
	logger   = slog.Default()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "srxmerge",
		Short:         "Merge and validate Junos SRX security policy configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.Setup(os.Stderr, logLevel, debug)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newMergeCmd(), newCheckCmd(), newBatchCmd(), newServeCmd(), newShellCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "srxmerge: %v\n", err)
		os.Exit(1)
	}
}

func newMergeCmd() *cobra.Command {
	var base, out, format string
	cmd := &cobra.Command{
		Use:   "merge DOC...",
		Short: "Apply directive documents to a base configuration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			res, err := runOne(cmd.Context(), jobs.JobSpec{
				Name:      "merge",
				Base:      base,
				Documents: args,
				Output:    out,
				Format:    string(f),
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if out == "" {
				return report.Write(cmd.OutOrStdout(), res, f)
			}
			logger.Info("merged configuration written", "file", out, "policies", len(res.Policies))
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base configuration file (default empty)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, set, json or yaml")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check DOC...",
		Short: "Merge documents against an empty base and report diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runOne(cmd.Context(), jobs.JobSpec{
				Name:      "check",
				Documents: args,
				Format:    string(report.Text),
			}, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "check succeeds: %d policies\n", len(res.Policies))
			return nil
		},
	}
}

// runOne merges a single job and prints its diagnostics to w.
func runOne(ctx context.Context, spec jobs.JobSpec, w io.Writer) (*merge.ResolvedConfig, error) {
	m := &jobs.Manifest{Jobs: []jobs.JobSpec{spec}}
	results, err := jobs.Run(ctx, m, merge.New(merge.WithLogger(logger)), 1)
	if err != nil && len(results) == 0 {
		return nil, err
	}
	r := results[0]
	if r.Config != nil && len(r.Config.Diagnostics) > 0 {
		report.WriteDiagnostics(w, r.Config.Diagnostics)
	}
	if r.Err != nil {
		var failed *merge.FailedError
		if errors.As(r.Err, &failed) {
			return nil, fmt.Errorf("%d fatal diagnostics", len(failed.Diagnostics))
		}
		return nil, r.Err
	}
	return r.Config, nil
}
