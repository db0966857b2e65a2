package config

import (
	"fmt"
	"strings"
)

// Segment addresses one level of the tree.
type Segment struct {
	Keyword string
	Name    string
}

func (s Segment) String() string {
	if s.Name == "" {
		return s.Keyword
	}
	return s.Keyword + "[" + s.Name + "]"
}

// Ident returns the sibling identity the segment selects.
func (s Segment) Ident() Ident {
	return Ident{Keyword: s.Keyword, Name: s.Name}
}

// Path is a root-relative address into a tree. The empty path is the root.
type Path []Segment

// String renders the path in bracketed dotted form:
// security.policies.from-zone[trust to-zone untrust].policy[p1]
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Child returns a new path extended by one segment. p is not modified.
func (p Path) Child(keyword, name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Keyword: keyword, Name: name})
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[: len(p)-1 : len(p)-1]
}

// Last returns the final segment. It panics on the root path.
func (p Path) Last() Segment {
	return p[len(p)-1]
}

// Equal reports whether both paths address the same node.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p lies at or below prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// ParsePath parses either the bracketed form produced by Path.String or the
// flat dotted form, where name tokens follow the keyword as separate
// segments and the schema decides how many to consume:
//
//	security.policies.from-zone.trust.to-zone.untrust
//	security.policies.from-zone[trust to-zone untrust]
//
// Names containing dots must use the bracketed form.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}

	type token struct {
		seg       Segment
		bracketed bool
	}
	var tokens []token
	i := 0
	for i < len(s) {
		j := i
		for j < len(s) && s[j] != '.' && s[j] != '[' {
			j++
		}
		keyword := s[i:j]
		if keyword == "" {
			return nil, fmt.Errorf("path %q: empty segment at offset %d", s, i)
		}
		tok := token{seg: Segment{Keyword: keyword}}
		if j < len(s) && s[j] == '[' {
			end := strings.IndexByte(s[j:], ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: unterminated '['", s)
			}
			tok.seg.Name = strings.Join(strings.Fields(s[j+1:j+end]), " ")
			tok.bracketed = true
			j += end + 1
		}
		if j < len(s) {
			if s[j] != '.' {
				return nil, fmt.Errorf("path %q: expected '.' at offset %d", s, j)
			}
			j++
			if j == len(s) {
				return nil, fmt.Errorf("path %q: trailing '.'", s)
			}
		}
		tokens = append(tokens, tok)
		i = j
	}

	var out Path
	schema := treeSchema
	for k := 0; k < len(tokens); k++ {
		seg := tokens[k].seg
		child := schema.child(seg.Keyword)
		if !tokens[k].bracketed && child != nil && child.args > 0 {
			var names []string
			for a := 0; a < child.args && k+1 < len(tokens) && !tokens[k+1].bracketed; a++ {
				names = append(names, tokens[k+1].seg.Keyword)
				k++
			}
			seg.Name = strings.Join(names, " ")
		}
		out = append(out, seg)
		schema = child
	}
	return out, nil
}

// MustParsePath is like ParsePath but panics on error. For tests and
// package-level tables.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Find returns the node addressed by p relative to n, or nil.
func (n *Node) Find(p Path) *Node {
	cur := n
	for _, seg := range p {
		cur = cur.Child(seg.Keyword, seg.Name)
		if cur == nil {
			return nil
		}
	}
	return cur
}
