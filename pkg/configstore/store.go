// Package configstore keeps a device's active configuration tree with a
// candidate for editing, commit history and rollback. Every edit goes
// through the merge engine, so the candidate always holds a resolved tree.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/directive"
	"github.com/psaab/srxmerge/pkg/merge"
)

// maxRollback is the number of rollback slots kept on disk and in memory.
const maxRollback = 49

// ErrNotConfiguring is returned by edit operations outside an edit session.
var ErrNotConfiguring = errors.New("not in configuration mode")

// Store manages the candidate and active configuration.
type Store struct {
	mu        sync.RWMutex
	active    *config.Node
	candidate *config.Node
	resolved  *merge.ResolvedConfig // result for the active tree
	history   *History
	dirty     bool
	editing   bool
	filePath  string

	merger *merge.Merger
	engine *directive.Engine
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMerger sets the merger used to validate edits and commits.
func WithMerger(m *merge.Merger) Option {
	return func(s *Store) { s.merger = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store persisted at filePath. An empty path keeps the store
// in memory.
func New(filePath string, opts ...Option) *Store {
	s := &Store{
		active:   config.NewTree(),
		history:  NewHistory(maxRollback),
		filePath: filePath,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.merger == nil {
		s.merger = merge.New(merge.WithLogger(s.logger))
	}
	s.engine = directive.NewEngine(directive.WithLogger(s.logger))
	return s
}

// Load reads the active configuration and its rollback files from disk.
// A missing file leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		return nil
	}
	tree, err := readTree(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	res, err := s.merger.Merge(ctx, tree, nil)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.filePath, err)
	}
	s.active = res.Tree
	s.resolved = res

	s.history = NewHistory(maxRollback)
	for i := maxRollback; i >= 1; i-- {
		path := s.rollbackPath(i)
		old, err := readTree(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("skipping unreadable rollback file", "file", path, "err", err)
			}
			continue
		}
		ts := time.Time{}
		if fi, err := os.Stat(path); err == nil {
			ts = fi.ModTime()
		}
		s.history.Push(&HistoryEntry{Config: old, Timestamp: ts})
	}
	return nil
}

func readTree(path string) (*config.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := config.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tree, nil
}

// Save persists the active configuration to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.filePath == "" {
		return nil
	}
	return os.WriteFile(s.filePath, []byte(s.active.Format()), 0644)
}

func (s *Store) rollbackPath(n int) string {
	return fmt.Sprintf("%s.%d", s.filePath, n)
}

// EnterConfigure starts an edit session on a copy of the active tree.
func (s *Store) EnterConfigure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing {
		return errors.New("already in configuration mode")
	}
	s.candidate = s.active.Clone()
	s.editing = true
	s.dirty = false
	return nil
}

// ExitConfigure ends the edit session, discarding the candidate.
func (s *Store) ExitConfigure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate = nil
	s.editing = false
	s.dirty = false
}

// InConfigMode reports whether an edit session is open.
func (s *Store) InConfigMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing
}

// IsDirty reports whether the candidate has uncommitted changes.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// LoadMerge merges a directive document into the candidate. The candidate
// is only updated when the pass has no fatal diagnostic; the result is
// returned either way.
func (s *Store) LoadMerge(ctx context.Context, text string) (*merge.ResolvedConfig, error) {
	doc, err := config.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, doc)
}

// Apply merges a parsed directive document into the candidate.
func (s *Store) Apply(ctx context.Context, doc *config.Node) (*merge.ResolvedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return nil, ErrNotConfiguring
	}
	res, err := s.merger.Merge(ctx, s.candidate, doc)
	if err != nil {
		return res, err
	}
	s.candidate = res.Tree
	s.dirty = true
	return res, nil
}

// LoadOverride replaces the whole candidate with text.
func (s *Store) LoadOverride(text string) error {
	tree, err := config.Parse(text)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return ErrNotConfiguring
	}
	s.candidate = directive.Flatten(tree)
	s.dirty = true
	return nil
}

// Delete removes the subtree at path from the candidate. A missing path is
// not an error.
func (s *Store) Delete(path config.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return ErrNotConfiguring
	}
	changed, err := s.engine.ApplyDirective(s.candidate, directive.Delete{Path: path})
	if err != nil {
		return err
	}
	if changed {
		s.dirty = true
	}
	return nil
}

// DeleteFromInput parses a path in dotted or bracketed form and deletes it.
func (s *Store) DeleteFromInput(input string) error {
	path, err := config.ParsePath(input)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return errors.New("delete: empty path")
	}
	return s.Delete(path)
}

// CommitCheck validates the candidate without committing it.
func (s *Store) CommitCheck(ctx context.Context) (*merge.ResolvedConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.editing {
		return nil, ErrNotConfiguring
	}
	return s.merger.Merge(ctx, s.candidate, nil)
}

// Commit validates the candidate and makes it active. The previous active
// tree becomes rollback slot 1.
func (s *Store) Commit(ctx context.Context, comment string) (*merge.ResolvedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return nil, ErrNotConfiguring
	}

	res, err := s.merger.Merge(ctx, s.candidate, nil)
	if err != nil {
		return res, fmt.Errorf("commit check failed: %w", err)
	}

	prevID := ""
	if s.resolved != nil {
		prevID = s.resolved.ID
	}
	s.history.Push(&HistoryEntry{
		Config:    s.active,
		Timestamp: time.Now(),
		Comment:   comment,
		MergeID:   prevID,
	})
	s.rotateRollbackFiles()

	s.active = res.Tree
	s.candidate = s.active.Clone()
	s.resolved = res
	s.dirty = false

	if s.filePath != "" {
		if err := os.WriteFile(s.filePath, []byte(s.active.Format()), 0644); err != nil {
			s.logger.Warn("failed to save config", "file", s.filePath, "err", err)
		}
	}
	s.logger.Info("configuration committed", "id", res.ID, "comment", comment)
	return res, nil
}

// rotateRollbackFiles shifts file.N to file.N+1 and writes the newest
// history entry to file.1.
func (s *Store) rotateRollbackFiles() {
	if s.filePath == "" {
		return
	}
	for i := maxRollback - 1; i >= 1; i-- {
		if err := os.Rename(s.rollbackPath(i), s.rollbackPath(i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to rotate rollback file", "file", s.rollbackPath(i), "err", err)
		}
	}
	e, err := s.history.Get(1)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.rollbackPath(1), []byte(e.Config.Format()), 0644); err != nil {
		s.logger.Warn("failed to write rollback file", "file", s.rollbackPath(1), "err", err)
	}
}

// Rollback loads a previous configuration into the candidate. Slot 0 is
// the active tree.
func (s *Store) Rollback(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return ErrNotConfiguring
	}
	if n == 0 {
		s.candidate = s.active.Clone()
		s.dirty = false
		return nil
	}
	e, err := s.history.Get(n)
	if err != nil {
		return err
	}
	s.candidate = e.Config.Clone()
	s.dirty = true
	return nil
}

// ShowRollback returns rollback slot n as hierarchical text.
func (s *Store) ShowRollback(n int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n == 0 {
		return s.active.Format(), nil
	}
	e, err := s.history.Get(n)
	if err != nil {
		return "", err
	}
	return e.Config.Format(), nil
}

// ListHistory returns the rollback entries, most recent first.
func (s *Store) ListHistory() []*HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.List()
}

// ShowActive returns the active configuration as hierarchical text.
func (s *Store) ShowActive() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Format()
}

// ShowActiveSet returns the active configuration as set lines.
func (s *Store) ShowActiveSet() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.FormatSet()
}

// ShowCandidate returns the candidate as hierarchical text.
func (s *Store) ShowCandidate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidate == nil {
		return ""
	}
	return s.candidate.Format()
}

// ShowCandidateSet returns the candidate as set lines.
func (s *Store) ShowCandidateSet() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidate == nil {
		return ""
	}
	return s.candidate.FormatSet()
}

// Active returns a copy of the active tree.
func (s *Store) Active() *config.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Clone()
}

// Candidate returns a copy of the candidate tree, or nil outside
// configuration mode.
func (s *Store) Candidate() *config.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidate == nil {
		return nil
	}
	return s.candidate.Clone()
}

// ActiveConfig returns the merge result of the last commit or load, or nil.
func (s *Store) ActiveConfig() *merge.ResolvedConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// ExportJSON encodes the resolved policy view of the active tree.
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.resolved == nil {
		return []byte("null"), nil
	}
	return json.MarshalIndent(s.resolved, "", "  ")
}

// ShowCompare returns a unified diff of the active tree against the
// candidate in set form.
func (s *Store) ShowCompare() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidate == nil {
		return ""
	}
	return compare(s.active.FormatSet(), s.candidate.FormatSet(), "active", "candidate")
}

// ShowCompareRollback diffs rollback slot n against the candidate.
func (s *Store) ShowCompareRollback(n int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidate == nil {
		return "", ErrNotConfiguring
	}
	e, err := s.history.Get(n)
	if err != nil {
		return "", err
	}
	return compare(e.Config.FormatSet(), s.candidate.FormatSet(), fmt.Sprintf("rollback %d", n), "candidate"), nil
}

func compare(a, b, fromName, toName string) string {
	if a == b {
		return "[no changes]\n"
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return text
}
