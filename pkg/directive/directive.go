// Package directive turns a configuration document into an ordered list of
// tree edits and applies them to a base tree.
package directive

import (
	"fmt"

	"github.com/psaab/srxmerge/pkg/config"
)

// Directive is one edit of a tree. The concrete types are Replace, Delete
// and Merge.
type Directive interface {
	// Verb reports which edit the directive performs.
	Verb() config.Verb
	// Target is the path of the node the directive acts on.
	Target() config.Path
	isDirective()
}

// Replace substitutes the subtree at Path with Payload, creating missing
// ancestors. The identity of Payload must match the last segment of Path.
type Replace struct {
	Path    config.Path
	Payload *config.Node
}

// Delete removes the subtree at Path. A missing path is a no-op.
type Delete struct {
	Path config.Path
}

// Merge deep-merges Payload into the node at Path.
type Merge struct {
	Path    config.Path
	Payload *config.Node
}

func (Replace) Verb() config.Verb { return config.VerbReplace }
func (Delete) Verb() config.Verb  { return config.VerbDelete }
func (Merge) Verb() config.Verb   { return config.VerbMerge }

func (d Replace) Target() config.Path { return d.Path }
func (d Delete) Target() config.Path  { return d.Path }
func (d Merge) Target() config.Path   { return d.Path }

func (Replace) isDirective() {}
func (Delete) isDirective()  {}
func (Merge) isDirective()   {}

func (d Replace) String() string { return "replace " + pathLabel(d.Path) }
func (d Delete) String() string  { return "delete " + pathLabel(d.Path) }
func (d Merge) String() string   { return "merge " + pathLabel(d.Path) }

func pathLabel(p config.Path) string {
	if len(p) == 0 {
		return "<root>"
	}
	return p.String()
}

// ConflictError reports a directive whose payload cannot be placed at its
// target: a block would overwrite a leaf (or the reverse), an ancestor on
// the path is a leaf, or the payload does not carry the target identity.
type ConflictError struct {
	Path     config.Path
	Existing config.Kind
	Incoming config.Kind
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("path conflict at %s: %s", pathLabel(e.Path), e.Reason)
	}
	return fmt.Sprintf("path conflict at %s: existing %s cannot take %s", pathLabel(e.Path), e.Existing, e.Incoming)
}
