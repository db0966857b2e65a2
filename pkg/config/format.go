package config

import (
	"fmt"
	"strings"
)

// Format renders the subtree as hierarchical configuration text. Directive
// prefixes recorded on nodes are written back out.
func (n *Node) Format() string {
	var b strings.Builder
	if n.IsRoot() {
		formatNodes(&b, n.Children, 0)
	} else {
		formatNodes(&b, []*Node{n}, 0)
	}
	return b.String()
}

func formatNodes(b *strings.Builder, nodes []*Node, indent int) {
	prefix := strings.Repeat("    ", indent)
	for _, n := range nodes {
		verb := ""
		if n.Verb != VerbMerge {
			verb = n.Verb.String() + ": "
		}
		switch n.Kind {
		case KindStanza, KindKeyedBlock:
			fmt.Fprintf(b, "%s%s%s {\n", prefix, verb, label(n))
			formatNodes(b, n.Children, indent+1)
			fmt.Fprintf(b, "%s}\n", prefix)
		case KindLeafSet, KindList:
			fmt.Fprintf(b, "%s%s%s %s;\n", prefix, verb, label(n), formatValues(n.Values))
		default:
			if n.Value != "" {
				fmt.Fprintf(b, "%s%s%s %s;\n", prefix, verb, label(n), words(n.Value))
			} else {
				fmt.Fprintf(b, "%s%s%s;\n", prefix, verb, label(n))
			}
		}
	}
}

// formatValues renders set members. A single member is written bare, the
// way the device displays it.
func formatValues(values []string) string {
	if len(values) == 1 {
		return quote(values[0])
	}
	if len(values) == 0 {
		return "[ ]"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return "[ " + strings.Join(quoted, " ") + " ]"
}

// label renders the keyword and name of n as they must be written to
// parse back.
func label(n *Node) string {
	if n.Name == "" {
		return quote(n.Keyword)
	}
	return quote(n.Keyword) + " " + words(n.Name)
}

// words renders a name or value the parser joined from several tokens.
// It is written as-is when every token is plain, otherwise quoted whole,
// which parses back to the same string.
func words(s string) string {
	for _, w := range strings.Split(s, " ") {
		if !isPlain(w) {
			return quote(s)
		}
	}
	return s
}

// quote renders s as a single token: bare when it is a non-empty run of
// identifier characters, otherwise double-quoted with escapes.
func quote(s string) string {
	if isPlain(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isPlain(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// FormatSet renders the subtree as flat "set" commands, one per leaf value.
func (n *Node) FormatSet() string {
	var b strings.Builder
	if n.IsRoot() {
		formatSetNodes(&b, n.Children, nil)
	} else {
		formatSetNodes(&b, []*Node{n}, nil)
	}
	return b.String()
}

func formatSetNodes(b *strings.Builder, nodes []*Node, prefix []string) {
	for _, n := range nodes {
		path := append(append([]string(nil), prefix...), label(n))
		switch n.Kind {
		case KindStanza, KindKeyedBlock:
			if len(n.Children) == 0 {
				fmt.Fprintf(b, "set %s\n", strings.Join(path, " "))
				continue
			}
			formatSetNodes(b, n.Children, path)
		case KindLeafSet, KindList:
			if len(n.Values) == 0 {
				fmt.Fprintf(b, "set %s [ ]\n", strings.Join(path, " "))
				continue
			}
			for _, v := range n.Values {
				fmt.Fprintf(b, "set %s %s\n", strings.Join(path, " "), quote(v))
			}
		default:
			if n.Value != "" {
				path = append(path, words(n.Value))
			}
			fmt.Fprintf(b, "set %s\n", strings.Join(path, " "))
		}
	}
}
