package merge

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/psaab/srxmerge/pkg/config"
)

// Job is one independent merge: typically one device.
type Job struct {
	Name     string
	Base     *config.Node
	Document *config.Node
}

// Result is the outcome of a Job. Err is a *FailedError for fatal
// diagnostics; Config is set whenever the pass ran to completion.
type Result struct {
	Name   string
	Config *ResolvedConfig
	Err    error
}

// MergeAll runs jobs in parallel with at most workers passes at once
// (GOMAXPROCS when workers <= 0). Jobs never share trees, and a failing job
// does not affect the others. Results are in job order. The returned error
// is non-nil only when ctx ended before every job ran.
func (m *Merger) MergeAll(ctx context.Context, jobs []Job, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		results[i].Name = job.Name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := m.Merge(gctx, job.Base, job.Document)
			results[i].Config = res
			results[i].Err = err
			m.logger.Debug("batch job finished", "job", job.Name, "ok", err == nil)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
