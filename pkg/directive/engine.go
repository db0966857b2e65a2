package directive

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/diag"
)

// State tracks a directive through the engine.
type State int

const (
	Pending State = iota
	Applying
	Applied
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applying:
		return "applying"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one directive.
type Outcome struct {
	Directive Directive
	State     State
	// Changed is false when the directive left the tree as it was, e.g. a
	// delete of a missing path or a merge of content already present.
	Changed bool
	Err     error
}

// Engine applies directives to a tree.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-directive debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply runs ds against tree strictly in order. A failed directive leaves
// the tree untouched and does not stop the directives after it; its error
// is kept in the outcome. The only error returned is ctx's, checked before
// each directive; outcomes not yet reached stay Pending.
func (e *Engine) Apply(ctx context.Context, tree *config.Node, ds []Directive) ([]Outcome, error) {
	outcomes := make([]Outcome, len(ds))
	for i, d := range ds {
		outcomes[i] = Outcome{Directive: d, State: Pending}
	}
	for i := range outcomes {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o := &outcomes[i]
		o.State = Applying
		changed, err := e.ApplyDirective(tree, o.Directive)
		if err != nil {
			o.State = Failed
			o.Err = err
			e.logger.Debug("directive failed", "verb", o.Directive.Verb(), "path", pathLabel(o.Directive.Target()), "err", err)
			continue
		}
		o.State = Applied
		o.Changed = changed
		e.logger.Debug("directive applied", "verb", o.Directive.Verb(), "path", pathLabel(o.Directive.Target()), "changed", changed)
	}
	return outcomes, nil
}

// ApplyDirective applies a single directive and reports whether the tree
// changed. On error the tree is not modified.
func (e *Engine) ApplyDirective(tree *config.Node, d Directive) (bool, error) {
	switch d := d.(type) {
	case Replace:
		return replace(tree, d.Path, d.Payload)
	case *Replace:
		return replace(tree, d.Path, d.Payload)
	case Delete:
		return remove(tree, d.Path), nil
	case *Delete:
		return remove(tree, d.Path), nil
	case Merge:
		return merge(tree, d.Path, d.Payload)
	case *Merge:
		return merge(tree, d.Path, d.Payload)
	default:
		return false, errors.New("directive: unknown directive type")
	}
}

// Diagnostics converts failed outcomes into PathConflict diagnostics.
func Diagnostics(outcomes []Outcome) diag.List {
	var out diag.List
	for _, o := range outcomes {
		if o.State != Failed {
			continue
		}
		path := o.Directive.Target()
		var ce *ConflictError
		if errors.As(o.Err, &ce) {
			path = ce.Path
		}
		out.Fatalf(diag.PathConflict, path, "%s: %v", o.Directive.Verb(), o.Err)
	}
	return out
}

func replace(tree *config.Node, path config.Path, payload *config.Node) (bool, error) {
	if payload == nil {
		return false, &ConflictError{Path: path, Reason: "no payload"}
	}
	src, err := prepare(payload, path)
	if err != nil {
		return false, err
	}
	if len(path) == 0 {
		changed := !tree.Equal(src)
		tree.Children = src.Children
		return changed, nil
	}
	if err := checkAncestors(tree, path.Parent()); err != nil {
		return false, err
	}
	id := path.Last().Ident()
	if parent := tree.Find(path.Parent()); parent != nil {
		if cur := parent.Child(id.Keyword, id.Name); cur != nil && !cur.Kind.Compatible(src.Kind) {
			return false, &ConflictError{Path: path, Existing: cur.Kind, Incoming: src.Kind}
		}
	}

	parent := ensure(tree, path.Parent())
	idx := parent.IndexOf(id)
	if idx < 0 {
		parent.Append(src)
		return true, nil
	}
	changed := !parent.Children[idx].Equal(src)
	parent.Children[idx] = src
	// The replacement is the only node left with this identity.
	kept := parent.Children[:idx+1]
	for _, c := range parent.Children[idx+1:] {
		if c.Keyword == id.Keyword && c.Name == id.Name {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	parent.Children = kept
	return changed, nil
}

func remove(tree *config.Node, path config.Path) bool {
	if len(path) == 0 {
		changed := len(tree.Children) > 0
		tree.Children = nil
		return changed
	}
	parent := tree.Find(path.Parent())
	if parent == nil || !parent.Kind.IsBlock() {
		return false
	}
	last := path.Last()
	if parent.Remove(last.Ident()) {
		return true
	}
	if last.Name != "" {
		return false
	}
	// A bare keyword removes every named entry under it
	// ("delete: address-set;").
	var ids []config.Ident
	for _, c := range parent.FindChildren(last.Keyword) {
		ids = append(ids, c.Ident())
	}
	removed := false
	for _, id := range ids {
		if parent.Remove(id) {
			removed = true
		}
	}
	return removed
}

func merge(tree *config.Node, path config.Path, payload *config.Node) (bool, error) {
	if payload == nil {
		return false, &ConflictError{Path: path, Reason: "no payload"}
	}
	src, err := prepare(payload, path)
	if err != nil {
		return false, err
	}
	if len(path) == 0 {
		if err := checkMerge(tree, src, path); err != nil {
			return false, err
		}
		return mergeNode(tree, src), nil
	}
	if err := checkAncestors(tree, path.Parent()); err != nil {
		return false, err
	}
	id := path.Last().Ident()
	if parent := tree.Find(path.Parent()); parent != nil {
		if cur := parent.Child(id.Keyword, id.Name); cur != nil {
			if err := checkMerge(cur, src, path); err != nil {
				return false, err
			}
		}
	}

	parent := ensure(tree, path.Parent())
	cur := parent.Child(id.Keyword, id.Name)
	if cur == nil {
		parent.Append(src)
		return true, nil
	}
	return mergeNode(cur, src), nil
}

// prepare copies payload, clears prefixes, checks it carries the target
// identity, and folds repeated unnamed siblings together.
func prepare(payload *config.Node, path config.Path) (*config.Node, error) {
	src := Flatten(payload)
	if len(path) == 0 {
		if !src.IsRoot() || !src.Kind.IsBlock() {
			return nil, &ConflictError{Path: path, Existing: config.KindStanza, Incoming: src.Kind, Reason: "root payload must be a tree"}
		}
	} else if last := path.Last(); src.Keyword != last.Keyword || src.Name != last.Name {
		return nil, &ConflictError{Path: path, Incoming: src.Kind, Reason: "payload " + src.Label() + " does not match target " + last.Ident().String()}
	}
	if err := normalize(src, path); err != nil {
		return nil, err
	}
	return src, nil
}

// normalize merges repeated children that carry no name ("match", "then",
// leaf sets) into their first occurrence. Named repeats are kept so that
// duplicate definitions stay visible to validation, and so are repeated
// scalars with distinct values ("name-server 8.8.8.8; name-server 1.1.1.1;").
func normalize(n *config.Node, path config.Path) error {
	if !n.Kind.IsBlock() || len(n.Children) == 0 {
		return nil
	}
	first := make(map[config.Ident]*config.Node)
	kept := n.Children[:0]
	for _, c := range n.Children {
		cpath := path.Child(c.Keyword, c.Name)
		if err := normalize(c, cpath); err != nil {
			return err
		}
		id := c.Ident()
		f, ok := first[id]
		if !ok {
			first[id] = c
			kept = append(kept, c)
			continue
		}
		if id.Name != "" {
			kept = append(kept, c)
			continue
		}
		if c.Kind == config.KindLeafScalar && f.Kind == config.KindLeafScalar {
			if !hasScalar(kept, id, c.Value) {
				kept = append(kept, c)
			}
			continue
		}
		if !f.Kind.Compatible(c.Kind) {
			return &ConflictError{Path: cpath, Existing: f.Kind, Incoming: c.Kind}
		}
		mergeNode(f, c)
	}
	for i := len(kept); i < len(n.Children); i++ {
		n.Children[i] = nil
	}
	n.Children = kept
	return nil
}

func hasScalar(nodes []*config.Node, id config.Ident, value string) bool {
	for _, n := range nodes {
		if n.Kind == config.KindLeafScalar && n.Ident() == id && n.Value == value {
			return true
		}
	}
	return false
}

// checkAncestors fails when an existing node on path is a leaf.
func checkAncestors(tree *config.Node, path config.Path) error {
	cur := tree
	for i, seg := range path {
		c := cur.Child(seg.Keyword, seg.Name)
		if c == nil {
			return nil
		}
		if !c.Kind.IsBlock() {
			return &ConflictError{Path: path[:i+1], Existing: c.Kind, Incoming: config.KindStanza, Reason: "ancestor " + c.Label() + " is a " + c.Kind.String()}
		}
		cur = c
	}
	return nil
}

// ensure returns the block at path, creating missing blocks on the way.
// Callers must have run checkAncestors.
func ensure(tree *config.Node, path config.Path) *config.Node {
	cur := tree
	for _, seg := range path {
		c := cur.Child(seg.Keyword, seg.Name)
		if c == nil {
			if seg.Name == "" {
				c = config.NewStanza(seg.Keyword)
			} else {
				c = config.NewBlock(seg.Keyword, seg.Name)
			}
			cur.Append(c)
		}
		cur = c
	}
	return cur
}

// nthChild returns the k-th child (0-based) carrying id.
func nthChild(n *config.Node, id config.Ident, k int) *config.Node {
	for _, c := range n.Children {
		if c.Keyword == id.Keyword && c.Name == id.Name {
			if k == 0 {
				return c
			}
			k--
		}
	}
	return nil
}

// checkMerge walks src against dst without modifying either and reports the
// first place a block would meet a leaf.
func checkMerge(dst, src *config.Node, path config.Path) error {
	if !dst.Kind.Compatible(src.Kind) {
		return &ConflictError{Path: path, Existing: dst.Kind, Incoming: src.Kind}
	}
	if !src.Kind.IsBlock() {
		return nil
	}
	seen := make(map[config.Ident]int)
	for _, c := range src.Children {
		id := c.Ident()
		k := seen[id]
		seen[id]++
		if d := nthChild(dst, id, k); d != nil {
			if err := checkMerge(d, c, path.Child(c.Keyword, c.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeNode folds src into dst, taking ownership of src's subtrees. The
// k-th occurrence of an identity in src pairs with the k-th occurrence in
// dst, so merging the same content twice is a no-op.
func mergeNode(dst, src *config.Node) bool {
	if !dst.Kind.IsBlock() {
		return mergeLeaf(dst, src)
	}
	changed := false
	seen := make(map[config.Ident]int)
	for _, c := range src.Children {
		id := c.Ident()
		k := seen[id]
		seen[id]++
		if d := nthChild(dst, id, k); d != nil {
			if mergeNode(d, c) {
				changed = true
			}
			continue
		}
		dst.Append(c)
		changed = true
	}
	return changed
}

func isMembership(k config.Kind) bool {
	return k == config.KindLeafSet || k == config.KindList
}

// mergeLeaf unions membership leaves in first-seen order and overwrites
// everything else.
func mergeLeaf(dst, src *config.Node) bool {
	if isMembership(dst.Kind) && isMembership(src.Kind) {
		changed := false
		for _, v := range src.Values {
			if !slices.Contains(dst.Values, v) {
				dst.Values = append(dst.Values, v)
				changed = true
			}
		}
		if dst.Values == nil {
			dst.Values = []string{}
		}
		return changed
	}
	if dst.Kind == src.Kind && dst.Value == src.Value && slices.Equal(dst.Values, src.Values) {
		return false
	}
	dst.Kind = src.Kind
	dst.Value = src.Value
	dst.Values = src.Values
	return true
}
