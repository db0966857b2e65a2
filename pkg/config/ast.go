package config

import (
	"strings"
)

// Kind classifies a configuration tree node.
type Kind int

const (
	// KindStanza is a block without a name ("security { ... }").
	KindStanza Kind = iota
	// KindKeyedBlock is a block distinguished from its siblings by a name
	// ("policy allow-web { ... }", "from-zone trust to-zone untrust { ... }").
	KindKeyedBlock
	// KindList is an ordered bracket list ("apply-groups [ a b ];").
	KindList
	// KindLeafScalar is a statement terminated by ';' carrying an optional
	// value ("permit;", "address srv1 10.0.1.0/24;", "dscp af42;").
	KindLeafScalar
	// KindLeafSet is a membership leaf ("destination-address [ a b ];").
	// An empty set is legal and distinct from an absent leaf.
	KindLeafSet
)

func (k Kind) String() string {
	switch k {
	case KindStanza:
		return "stanza"
	case KindKeyedBlock:
		return "keyed-block"
	case KindList:
		return "list"
	case KindLeafScalar:
		return "leaf-scalar"
	case KindLeafSet:
		return "leaf-set"
	default:
		return "unknown"
	}
}

// IsBlock reports whether nodes of this kind hold children.
func (k Kind) IsBlock() bool {
	return k == KindStanza || k == KindKeyedBlock
}

// Compatible reports whether a node of kind k may be replaced or merged
// by a node of kind other.
func (k Kind) Compatible(other Kind) bool {
	return k.IsBlock() == other.IsBlock()
}

// Verb is the directive prefix attached to a statement in a document.
type Verb int

const (
	VerbMerge   Verb = iota // no prefix
	VerbReplace             // replace:
	VerbDelete              // delete:
)

func (v Verb) String() string {
	switch v {
	case VerbReplace:
		return "replace"
	case VerbDelete:
		return "delete"
	default:
		return "merge"
	}
}

// Ident is the (keyword, name) pair that identifies a node among its
// siblings.
type Ident struct {
	Keyword string
	Name    string
}

func (id Ident) String() string {
	if id.Name == "" {
		return id.Keyword
	}
	return id.Keyword + " " + id.Name
}

// Node is an element of the configuration tree.
//
// A tree exclusively owns its nodes: no node is ever reachable from two
// parents, and subtrees move between trees only through Clone.
type Node struct {
	Kind Kind

	// Keyword is the first token of the statement ("policy", "address").
	// The root of a tree has an empty keyword.
	Keyword string

	// Name distinguishes siblings sharing a keyword. Multi-token names
	// are joined with a single space ("trust to-zone untrust").
	Name string

	// Value is the scalar payload of a KindLeafScalar node.
	Value string

	// Values holds the members of KindLeafSet and KindList nodes.
	Values []string

	// Children are the nodes within a block's braces, in declared order.
	Children []*Node

	// Verb is the directive prefix the statement carried in its source
	// document. Nodes in a resolved tree always have VerbMerge.
	Verb Verb

	// Line/Column where this node starts (for error reporting).
	Line   int
	Column int
}

// NewTree returns an empty root node.
func NewTree() *Node {
	return &Node{Kind: KindStanza}
}

// NewStanza builds an unnamed block.
func NewStanza(keyword string, children ...*Node) *Node {
	return &Node{Kind: KindStanza, Keyword: keyword, Children: children}
}

// NewBlock builds a keyed block.
func NewBlock(keyword, name string, children ...*Node) *Node {
	return &Node{Kind: KindKeyedBlock, Keyword: keyword, Name: name, Children: children}
}

// NewLeaf builds a scalar leaf.
func NewLeaf(keyword, name, value string) *Node {
	return &Node{Kind: KindLeafScalar, Keyword: keyword, Name: name, Value: value}
}

// NewSet builds a membership leaf. NewSet(kw) is the empty set.
func NewSet(keyword string, values ...string) *Node {
	return &Node{Kind: KindLeafSet, Keyword: keyword, Values: append([]string{}, values...)}
}

// NewList builds an ordered list leaf.
func NewList(keyword string, values ...string) *Node {
	return &Node{Kind: KindList, Keyword: keyword, Values: append([]string{}, values...)}
}

// Ident returns the node's sibling identity.
func (n *Node) Ident() Ident {
	return Ident{Keyword: n.Keyword, Name: n.Name}
}

// Label returns keyword and name as they appear in the source text.
func (n *Node) Label() string {
	return n.Ident().String()
}

// IsRoot reports whether n is a tree root.
func (n *Node) IsRoot() bool {
	return n.Keyword == ""
}

// Child returns the first child with the given identity.
func (n *Node) Child(keyword, name string) *Node {
	for _, c := range n.Children {
		if c.Keyword == keyword && c.Name == name {
			return c
		}
	}
	return nil
}

// FindChild returns the first child whose keyword matches, regardless of
// name.
func (n *Node) FindChild(keyword string) *Node {
	for _, c := range n.Children {
		if c.Keyword == keyword {
			return c
		}
	}
	return nil
}

// FindChildren returns all children whose keyword matches.
func (n *Node) FindChildren(keyword string) []*Node {
	var result []*Node
	for _, c := range n.Children {
		if c.Keyword == keyword {
			result = append(result, c)
		}
	}
	return result
}

// Index maps each child identity to the position of its first occurrence.
// The map is a snapshot and is not updated when Children changes.
func (n *Node) Index() map[Ident]int {
	idx := make(map[Ident]int, len(n.Children))
	for i, c := range n.Children {
		id := c.Ident()
		if _, ok := idx[id]; !ok {
			idx[id] = i
		}
	}
	return idx
}

// IndexOf returns the position of the first child with the identity, or -1.
func (n *Node) IndexOf(id Ident) int {
	for i, c := range n.Children {
		if c.Keyword == id.Keyword && c.Name == id.Name {
			return i
		}
	}
	return -1
}

// Append adds children at the end of the block.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Remove deletes every child with the given identity and reports whether
// anything was removed.
func (n *Node) Remove(id Ident) bool {
	kept := n.Children[:0]
	removed := false
	for _, c := range n.Children {
		if c.Keyword == id.Keyword && c.Name == id.Name {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	// Clear the tail so dropped subtrees are not retained by the array.
	for i := len(kept); i < len(n.Children); i++ {
		n.Children[i] = nil
	}
	n.Children = kept
	return removed
}

// Clone creates a deep copy of the subtree rooted at n. The copy shares no
// mutable storage with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Kind:    n.Kind,
		Keyword: n.Keyword,
		Name:    n.Name,
		Value:   n.Value,
		Verb:    n.Verb,
		Line:    n.Line,
		Column:  n.Column,
	}
	if n.Values != nil {
		c.Values = append([]string{}, n.Values...)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Equal reports structural equality: kind, identity, verb, payload and
// ordered children. Source positions are ignored.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind != o.Kind || n.Keyword != o.Keyword || n.Name != o.Name ||
		n.Value != o.Value || n.Verb != o.Verb {
		return false
	}
	if len(n.Values) != len(o.Values) || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Values {
		if n.Values[i] != o.Values[i] {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// WalkFunc is called for every node visited by Walk. Returning false skips
// the node's children.
type WalkFunc func(path Path, n *Node) bool

// Walk visits the subtree depth first, children in declared order. The
// path passed for n itself is base; pass nil when walking from a root.
func (n *Node) Walk(base Path, fn WalkFunc) {
	if !fn(base, n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(base.Child(c.Keyword, c.Name), fn)
	}
}

// KeyPath returns keyword, name and value as a single string.
func (n *Node) KeyPath() string {
	parts := []string{n.Keyword}
	if n.Name != "" {
		parts = append(parts, n.Name)
	}
	if n.Value != "" {
		parts = append(parts, n.Value)
	}
	return strings.Join(parts, " ")
}
