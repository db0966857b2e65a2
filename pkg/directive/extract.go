package directive

import "github.com/psaab/srxmerge/pkg/config"

// Extract lists the directives a parsed document carries, in document
// order.
//
// A replace: or delete: prefix yields a directive at that node's own path.
// An unprefixed statement whose subtree has no prefixes becomes a single
// Merge. An unprefixed block that does contain prefixed descendants becomes
// a Merge of the bare block followed by the directives of its children,
// so ancestors exist before nested edits run.
func Extract(doc *config.Node) []Directive {
	var out []Directive
	extract(doc.Children, nil, &out)
	return out
}

func extract(nodes []*config.Node, parent config.Path, out *[]Directive) {
	for _, n := range nodes {
		path := parent.Child(n.Keyword, n.Name)
		switch n.Verb {
		case config.VerbReplace:
			*out = append(*out, Replace{Path: path, Payload: Flatten(n)})
		case config.VerbDelete:
			*out = append(*out, Delete{Path: path})
		default:
			if !hasVerbs(n) {
				*out = append(*out, Merge{Path: path, Payload: n.Clone()})
				continue
			}
			shell := n.Clone()
			shell.Children = nil
			*out = append(*out, Merge{Path: path, Payload: shell})
			extract(n.Children, path, out)
		}
	}
}

// hasVerbs reports whether any descendant of n carries a prefix.
func hasVerbs(n *config.Node) bool {
	for _, c := range n.Children {
		if c.Verb != config.VerbMerge || hasVerbs(c) {
			return true
		}
	}
	return false
}

// Flatten returns a copy of n with every prefix cleared. Delete-prefixed
// descendants are dropped: inside a replacement they have nothing to act
// on. Replace-prefixed descendants are kept as ordinary content.
func Flatten(n *config.Node) *config.Node {
	c := n.Clone()
	clearVerbs(c)
	return c
}

func clearVerbs(n *config.Node) {
	n.Verb = config.VerbMerge
	if n.Children == nil {
		return
	}
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Verb == config.VerbDelete {
			continue
		}
		clearVerbs(c)
		kept = append(kept, c)
	}
	n.Children = kept
}
