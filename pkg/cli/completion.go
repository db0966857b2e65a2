package cli

import (
	"fmt"
	"strings"

	"github.com/psaab/srxmerge/pkg/cmdtree"
)

// completer implements readline.AutoCompleter over the command trees.
type completer struct {
	cli *CLI
}

func (cc *completer) Do(line []rune, pos int) ([][]rune, int) {
	cands, partial := cc.cli.candidates(string(line[:pos]))
	if len(cands) == 0 {
		return nil, 0
	}
	if len(cands) == 1 {
		return [][]rune{[]rune(cands[0].Name[len(partial):] + " ")}, len(partial)
	}
	if cp := cmdtree.CommonPrefix(cmdtree.Names(cands)); len(cp) > len(partial) {
		return [][]rune{[]rune(cp[len(partial):])}, len(partial)
	}
	fmt.Fprintln(cc.cli.out)
	cmdtree.WriteHelp(cc.cli.out, cands)
	return nil, 0
}

// candidates returns completions for text and the partial word they
// replace. Text after the last "|" completes pipe filters.
func (c *CLI) candidates(text string) ([]cmdtree.Candidate, string) {
	tree := cmdtree.OperationalTree
	if c.store.InConfigMode() {
		tree = cmdtree.ConfigTree
	}
	if i := strings.LastIndex(text, "|"); i >= 0 {
		tree = cmdtree.PipeFilters
		text = text[i+1:]
	}
	words := strings.Fields(text)
	partial := ""
	if len(words) > 0 && !strings.HasSuffix(text, " ") {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}
	cfg := c.store.Active()
	if cand := c.store.Candidate(); cand != nil {
		cfg = cand
	}
	return cmdtree.Complete(tree, words, partial, cfg), partial
}
