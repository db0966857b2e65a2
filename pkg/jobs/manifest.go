// Package jobs reads HCL batch manifests: one job per device, each a base
// configuration plus an ordered list of directive documents.
package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/psaab/srxmerge/pkg/report"
)

// Manifest is a decoded job file.
//
//	workers = 4
//
//	job "edge-1" {
//	  base      = "devices/edge-1.conf"
//	  documents = ["common.conf", "sites/${var.site}.conf"]
//	  output    = "out/edge-1.set"
//	  format    = "set"
//	}
type Manifest struct {
	Workers int       `hcl:"workers,optional"`
	Jobs    []JobSpec `hcl:"job,block"`

	// Dir resolves relative paths; the manifest's directory when loaded
	// from disk.
	Dir string
}

// JobSpec describes one merge.
type JobSpec struct {
	Name      string   `hcl:"name,label"`
	Base      string   `hcl:"base,optional"`
	Documents []string `hcl:"documents"`
	Output    string   `hcl:"output,optional"`
	Format    string   `hcl:"format,optional"` // default text
}

// Options controls expression evaluation.
type Options struct {
	Vars map[string]string // var.NAME
	Env  map[string]string // env.NAME; nil reads the process environment
}

// Load decodes the manifest at path.
func Load(path string, opts Options) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Decode(path, src, opts)
	if err != nil {
		return nil, err
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Decode parses manifest source. filename must end in .hcl (native
// syntax) or .json.
func Decode(filename string, src []byte, opts Options) (*Manifest, error) {
	var m Manifest
	if err := hclsimple.Decode(filename, src, evalContext(opts), &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Jobs))
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Name == "" {
			return fmt.Errorf("job %d: empty name", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("job %q: defined more than once", j.Name)
		}
		seen[j.Name] = true
		if j.Format == "" {
			j.Format = string(report.Text)
		}
		if _, err := report.ParseFormat(j.Format); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
	}
	if m.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// resolve makes p relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

func evalContext(opts Options) *hcl.EvalContext {
	env := opts.Env
	if env == nil {
		env = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				env[k] = v
			}
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": stringObject(opts.Vars),
			"env": stringObject(env),
		},
		Functions: map[string]function.Function{
			"upper":   stdlib.UpperFunc,
			"lower":   stdlib.LowerFunc,
			"join":    stdlib.JoinFunc,
			"concat":  stdlib.ConcatFunc,
			"format":  stdlib.FormatFunc,
			"replace": stdlib.ReplaceFunc,
		},
	}
}

func stringObject(m map[string]string) cty.Value {
	attrs := make(map[string]cty.Value, len(m))
	for k, v := range m {
		attrs[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(attrs)
}
