// Package merge drives a merge pass: apply a document's directives to a
// copy of the base tree, validate the result and compile the policy view.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/diag"
	"github.com/psaab/srxmerge/pkg/directive"
	"github.com/psaab/srxmerge/pkg/resolve"
	"github.com/psaab/srxmerge/pkg/validate"
)

// ResolvedConfig is the outcome of one merge pass.
type ResolvedConfig struct {
	ID          string       `json:"id" yaml:"id"`
	Tree        *config.Node `json:"-" yaml:"-"`
	Diagnostics diag.List    `json:"diagnostics" yaml:"diagnostics"`
	Policies    []Policy     `json:"policies" yaml:"policies"`

	Outcomes []directive.Outcome `json:"-" yaml:"-"`
}

// OK reports whether the pass produced no fatal diagnostic.
func (r *ResolvedConfig) OK() bool {
	return !r.Diagnostics.HasFatal()
}

// FailedError is returned when a pass produced fatal diagnostics. The
// ResolvedConfig returned alongside it is for reporting only.
type FailedError struct {
	ID          string
	Diagnostics diag.List // fatal only
}

func (e *FailedError) Error() string {
	if len(e.Diagnostics) == 1 {
		return "merge failed: " + e.Diagnostics[0].String()
	}
	return fmt.Sprintf("merge failed with %d fatal diagnostics, first: %s", len(e.Diagnostics), e.Diagnostics[0])
}

// Observer is told about every completed pass.
type Observer interface {
	ObserveMerge(res *ResolvedConfig, elapsed time.Duration, err error)
}

// Merger runs merge passes. It holds no per-pass state and is safe for
// concurrent use.
type Merger struct {
	logger    *slog.Logger
	engine    *directive.Engine
	observers []Observer
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

// WithObserver registers an observer, e.g. a metrics collector. Observers
// are called in registration order.
func WithObserver(o Observer) Option {
	return func(m *Merger) { m.observers = append(m.observers, o) }
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	m.engine = directive.NewEngine(directive.WithLogger(m.logger))
	return m
}

// Merge applies doc to a copy of base. base is not modified; nil means an
// empty tree. On fatal diagnostics the result is returned together with a
// *FailedError. Only cancellation of ctx yields a nil result.
func (m *Merger) Merge(ctx context.Context, base, doc *config.Node) (*ResolvedConfig, error) {
	start := time.Now()
	res, err := m.merge(ctx, base, doc)
	elapsed := time.Since(start)
	for _, o := range m.observers {
		o.ObserveMerge(res, elapsed, err)
	}
	return res, err
}

func (m *Merger) merge(ctx context.Context, base, doc *config.Node) (*ResolvedConfig, error) {
	tree := config.NewTree()
	if base != nil {
		tree = directive.Flatten(base)
	}

	var ds []directive.Directive
	if doc != nil {
		ds = directive.Extract(doc)
	}
	outcomes, err := m.engine.Apply(ctx, tree, ds)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	diags := directive.Diagnostics(outcomes)
	ns := resolve.Build(tree)
	diags = append(diags, validate.Validate(tree, ns)...)

	res := &ResolvedConfig{
		ID:          uuid.NewString(),
		Tree:        tree,
		Diagnostics: diags,
		Policies:    Compile(tree, ns),
		Outcomes:    outcomes,
	}

	fatal := diags.Fatal()
	m.logger.Info("merge complete",
		"id", res.ID,
		"directives", len(ds),
		"policies", len(res.Policies),
		"warnings", len(diags)-len(fatal),
		"fatal", len(fatal))
	for _, d := range diags {
		m.logger.Debug("diagnostic", "kind", d.Kind, "severity", d.Severity, "path", d.Path, "msg", d.Message)
	}

	if len(fatal) > 0 {
		return res, &FailedError{ID: res.ID, Diagnostics: fatal}
	}
	return res, nil
}

// MergeText parses both texts and merges. Syntax errors are returned as the
// parser's *config.ParseError without wrapping.
func (m *Merger) MergeText(ctx context.Context, baseText, docText string) (*ResolvedConfig, error) {
	base, err := config.Parse(baseText)
	if err != nil {
		return nil, err
	}
	doc, err := config.Parse(docText)
	if err != nil {
		return nil, err
	}
	return m.Merge(ctx, base, doc)
}
