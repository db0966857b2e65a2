package validate

import (
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
)

var pathPolicies = config.Path{{Keyword: "security"}, {Keyword: "policies"}}

// Context is one policy context of the tree: a from-zone/to-zone pair or
// the global context.
type Context struct {
	Path   config.Path
	From   string // empty for the global context
	To     string
	Global bool
	Node   *config.Node
}

// Policies returns the policy blocks of the context in declared order.
func (c Context) Policies() []*config.Node {
	return c.Node.FindChildren("policy")
}

// Contexts lists every policy context under security.policies in tree
// order. Zone-pair names that do not have the form "X to-zone Y" are
// returned with From holding the raw name and To empty.
func Contexts(tree *config.Node) []Context {
	pn := tree.Find(pathPolicies)
	if pn == nil || !pn.Kind.IsBlock() {
		return nil
	}
	var out []Context
	for _, c := range pn.Children {
		if !c.Kind.IsBlock() {
			continue
		}
		path := pathPolicies.Child(c.Keyword, c.Name)
		switch c.Keyword {
		case "from-zone":
			from, to := SplitZonePair(c.Name)
			out = append(out, Context{Path: path, From: from, To: to, Node: c})
		case "global":
			out = append(out, Context{Path: path, Global: true, Node: c})
		}
	}
	return out
}

// SplitZonePair splits a from-zone block name ("trust to-zone untrust").
func SplitZonePair(name string) (from, to string) {
	f := strings.Fields(name)
	if len(f) == 3 && f[1] == "to-zone" {
		return f[0], f[2]
	}
	return name, ""
}

// Members returns the values of a match leaf. A scalar leaf contributes its
// value as a single member. The second result reports whether the leaf is
// an explicit empty bracket list.
func Members(n *config.Node) ([]string, bool) {
	switch n.Kind {
	case config.KindLeafSet, config.KindList:
		return n.Values, len(n.Values) == 0
	case config.KindLeafScalar:
		if n.Value == "" {
			return nil, false
		}
		return strings.Fields(n.Value), false
	}
	return nil, false
}

// Action returns the policy's action keyword (permit, deny or reject) or ""
// when the then block names none.
func Action(then *config.Node) string {
	if a := Actions(then); len(a) > 0 {
		return a[0]
	}
	return ""
}

// Actions lists every permit, deny and reject statement of then in order.
func Actions(then *config.Node) []string {
	if then == nil {
		return nil
	}
	var out []string
	for _, c := range then.Children {
		switch c.Keyword {
		case "permit", "deny", "reject":
			out = append(out, c.Keyword)
		}
	}
	return out
}
