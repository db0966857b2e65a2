package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/report"
)

// Result is the outcome of one job. Err covers read and parse failures as
// well as the merge error.
type Result struct {
	Spec    JobSpec
	Config  *merge.ResolvedConfig
	Err     error
	Written string // output file, when one was written
}

// Run executes every job. workers overrides the manifest when positive.
// A job that fails does not stop the others; outputs are only written
// for passes without fatal diagnostics.
func Run(ctx context.Context, m *Manifest, merger *merge.Merger, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = m.Workers
	}
	results := make([]Result, len(m.Jobs))
	var batch []merge.Job
	var index []int // batch position -> results position
	for i, spec := range m.Jobs {
		results[i].Spec = spec
		job, err := m.prepare(spec)
		if err != nil {
			results[i].Err = err
			continue
		}
		batch = append(batch, job)
		index = append(index, i)
	}

	merged, err := merger.MergeAll(ctx, batch, workers)
	for k, r := range merged {
		res := &results[index[k]]
		res.Config, res.Err = r.Config, r.Err
		if r.Err == nil && res.Spec.Output != "" {
			out := m.resolve(res.Spec.Output)
			if werr := writeOutput(out, r.Config, report.Format(res.Spec.Format)); werr != nil {
				res.Err = werr
			} else {
				res.Written = out
			}
		}
	}
	return results, err
}

// prepare reads and parses a job's files. Documents are concatenated in
// order into one document.
func (m *Manifest) prepare(spec JobSpec) (merge.Job, error) {
	job := merge.Job{Name: spec.Name}
	if spec.Base != "" {
		base, err := parseFile(m.resolve(spec.Base))
		if err != nil {
			return job, err
		}
		job.Base = base
	}
	doc := config.NewTree()
	for _, p := range spec.Documents {
		d, err := parseFile(m.resolve(p))
		if err != nil {
			return job, err
		}
		doc.Children = append(doc.Children, d.Children...)
	}
	job.Document = doc
	return job, nil
}

func parseFile(path string) (*config.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := config.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func writeOutput(path string, res *merge.ResolvedConfig, f report.Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(fh, res, f); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
