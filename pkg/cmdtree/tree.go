// Package cmdtree defines the shell command trees used for dispatch help,
// tab completion and ? listings.
package cmdtree

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
)

// Node is a completion tree node. DynamicFn supplies values from the
// current tree, e.g. configured zone names.
type Node struct {
	Desc      string
	Children  map[string]*Node
	DynamicFn func(tree *config.Node) []string
}

// Candidate is a completion with its description.
type Candidate struct {
	Name string
	Desc string
}

// OperationalTree is the command tree outside configuration mode.
var OperationalTree = map[string]*Node{
	"configure": {Desc: "Enter configuration mode"},
	"show": {Desc: "Show information", Children: map[string]*Node{
		"configuration": {Desc: "Show active configuration", DynamicFn: TopLevelKeywords},
		"policies": {Desc: "Show resolved security policies", Children: map[string]*Node{
			"from-zone": {Desc: "Filter by source zone", DynamicFn: ZoneNames},
		}},
		"diagnostics": {Desc: "Show diagnostics of the active configuration"},
		"system": {Desc: "Show system information", Children: map[string]*Node{
			"rollback": {Desc: "Show rollback history or a rollback slot"},
		}},
	}},
	"check": {Desc: "Merge a file against the active configuration without committing"},
	"help":  {Desc: "Show available commands"},
	"exit":  {Desc: "Exit the shell"},
	"quit":  {Desc: "Exit the shell"},
}

// ConfigTree is the command tree in configuration mode.
var ConfigTree = map[string]*Node{
	"load": {Desc: "Load configuration from a file", Children: map[string]*Node{
		"merge":    {Desc: "Apply a directive document to the candidate"},
		"override": {Desc: "Replace the candidate with a file"},
	}},
	"delete": {Desc: "Delete a statement path", DynamicFn: TopLevelKeywords},
	"show":   {Desc: "Show candidate configuration", DynamicFn: TopLevelKeywords},
	"compare": {Desc: "Compare candidate with active or a rollback", Children: map[string]*Node{
		"rollback": {Desc: "Compare with rollback slot N"},
	}},
	"commit": {Desc: "Commit the candidate", Children: map[string]*Node{
		"check":   {Desc: "Validate without committing"},
		"comment": {Desc: "Attach a comment to the commit"},
	}},
	"rollback": {Desc: "Load a rollback slot into the candidate"},
	"run":      {Desc: "Run an operational command", Children: OperationalTree},
	"help":     {Desc: "Show available commands"},
	"exit":     {Desc: "Exit configuration mode"},
	"quit":     {Desc: "Exit configuration mode"},
}

// PipeFilters are accepted after "|" on show commands.
var PipeFilters = map[string]*Node{
	"display": {Desc: "Show additional kinds of information", Children: map[string]*Node{
		"set": {Desc: "Show as set commands"},
	}},
	"match":  {Desc: "Show only text that matches a pattern"},
	"except": {Desc: "Show only text that does not match a pattern"},
	"count":  {Desc: "Count lines"},
	"last":   {Desc: "Display end of output only"},
}

// TopLevelKeywords lists the root statements of tree.
func TopLevelKeywords(tree *config.Node) []string {
	if tree == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, c := range tree.Children {
		if !seen[c.Keyword] {
			seen[c.Keyword] = true
			out = append(out, c.Keyword)
		}
	}
	return out
}

// ZoneNames lists the security zones declared in tree.
func ZoneNames(tree *config.Node) []string {
	if tree == nil {
		return nil
	}
	zones := tree.Find(config.Path{{Keyword: "security"}, {Keyword: "zones"}})
	if zones == nil {
		return nil
	}
	var out []string
	for _, z := range zones.FindChildren("security-zone") {
		out = append(out, z.Name)
	}
	return out
}

// KeysOf returns the sorted keys of a tree level.
func KeysOf(tree map[string]*Node) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Complete walks tree along words and returns the candidates that start
// with partial, sorted by name. Words not found at a level with a
// DynamicFn are taken as dynamic values.
func Complete(tree map[string]*Node, words []string, partial string, cfg *config.Node) []Candidate {
	current := tree
	var currentNode *Node
	dynamicConsumed := false
	for _, w := range words {
		dynamicConsumed = false
		node, ok := current[w]
		if !ok {
			if currentNode != nil && currentNode.DynamicFn != nil {
				dynamicConsumed = true
				continue
			}
			return nil
		}
		currentNode = node
		current = node.Children
	}

	var out []Candidate
	for name, node := range current {
		if strings.HasPrefix(name, partial) {
			out = append(out, Candidate{Name: name, Desc: node.Desc})
		}
	}
	if !dynamicConsumed && currentNode != nil && currentNode.DynamicFn != nil {
		for _, name := range currentNode.DynamicFn(cfg) {
			if strings.HasPrefix(name, partial) {
				out = append(out, Candidate{Name: name, Desc: "(configured)"})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the candidate names.
func Names(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

// WriteHelp prints aligned candidates.
func WriteHelp(w io.Writer, candidates []Candidate) {
	width := 20
	for _, c := range candidates {
		if len(c.Name)+2 > width {
			width = len(c.Name) + 2
		}
	}
	fmt.Fprintln(w, "Possible completions:")
	for _, c := range candidates {
		if c.Desc != "" {
			fmt.Fprintf(w, "  %-*s %s\n", width, c.Name, c.Desc)
		} else {
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}
}

// CommonPrefix returns the longest prefix shared by items.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
