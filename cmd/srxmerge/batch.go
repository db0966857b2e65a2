package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psaab/srxmerge/pkg/jobs"
	"github.com/psaab/srxmerge/pkg/merge"
)

func newBatchCmd() *cobra.Command {
	var workers int
	var vars map[string]string
	cmd := &cobra.Command{
		Use:   "batch JOBFILE",
		Short: "Run every job in an HCL manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := jobs.Load(args[0], jobs.Options{Vars: vars})
			if err != nil {
				return err
			}
			logger.Info("running batch", "manifest", args[0], "jobs", len(m.Jobs))

			results, err := jobs.Run(cmd.Context(), m, merge.New(merge.WithLogger(logger)), workers)
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				switch {
				case r.Err != nil:
					failed++
					fmt.Fprintf(out, "%-20s FAILED  %v\n", r.Spec.Name, r.Err)
				case r.Written != "":
					fmt.Fprintf(out, "%-20s ok      %d policies -> %s\n", r.Spec.Name, len(r.Config.Policies), r.Written)
				default:
					fmt.Fprintf(out, "%-20s ok      %d policies\n", r.Spec.Name, len(r.Config.Policies))
				}
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent merges (default from manifest)")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "manifest variable, key=value (repeatable)")
	return cmd
}
