// Package cli implements the Junos-style interactive shell over a config
// store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/psaab/srxmerge/pkg/cmdtree"
	"github.com/psaab/srxmerge/pkg/configstore"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/report"
)

// ErrExit is returned by Exec when the user leaves the shell.
var ErrExit = errors.New("exit")

// CLI is the interactive command-line interface.
type CLI struct {
	rl          *readline.Instance
	store       *configstore.Store
	merger      *merge.Merger
	out         io.Writer
	hostname    string
	username    string
	historyFile string
}

// Option configures a CLI.
type Option func(*CLI)

// WithOutput sets where command output goes. Default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *CLI) { c.out = w }
}

// WithHistoryFile persists line history.
func WithHistoryFile(path string) Option {
	return func(c *CLI) { c.historyFile = path }
}

// New creates a new CLI.
func New(store *configstore.Store, merger *merge.Merger, opts ...Option) *CLI {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "srxmerge"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}
	c := &CLI{
		store:    store,
		merger:   merger,
		out:      os.Stdout,
		hostname: hostname,
		username: username,
	}
	for _, o := range opts {
		o(c)
	}
	if c.merger == nil {
		c.merger = merge.New()
	}
	return c
}

// Run starts the interactive loop and returns when the user exits or
// input ends.
func (c *CLI) Run(ctx context.Context) error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     c.historyFile,
		AutoComplete:    &completer{cli: c},
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()
	c.out = c.rl.Stdout()

	fmt.Fprintln(c.out, "srxmerge shell - Junos security policy merge")
	fmt.Fprintln(c.out, "Type '?' for help")
	fmt.Fprintln(c.out)

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := c.Exec(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}
		c.rl.SetPrompt(c.prompt())
	}
}

// Exec runs one command line.
func (c *CLI) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasSuffix(line, "?") {
		c.help(strings.TrimSpace(strings.TrimSuffix(line, "?")))
		return nil
	}
	if c.store.InConfigMode() {
		return c.dispatchConfig(ctx, line)
	}
	return c.dispatchOperational(ctx, line)
}

func (c *CLI) dispatchOperational(ctx context.Context, line string) error {
	cmd, pipes := splitPipes(line)
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "configure":
		if err := c.store.EnterConfigure(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Entering configuration mode")
		return nil

	case "show":
		return c.handleShow(parts[1:], pipes)

	case "check":
		if len(parts) != 2 {
			return fmt.Errorf("check: usage: check <file>")
		}
		return c.handleCheck(ctx, parts[1])

	case "quit", "exit":
		return ErrExit

	case "help":
		c.help("")
		return nil

	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (c *CLI) dispatchConfig(ctx context.Context, line string) error {
	cmd, pipes := splitPipes(line)
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "load":
		return c.handleLoad(ctx, parts[1:])

	case "delete":
		if len(parts) < 2 {
			return fmt.Errorf("delete: missing path")
		}
		if err := c.store.DeleteFromInput(strings.Join(parts[1:], ".")); err != nil {
			return err
		}
		return nil

	case "show":
		if hasCompare(pipes) {
			return c.emit(c.store.ShowCompare(), nil)
		}
		set, rest := displaySet(pipes)
		tree := c.store.Candidate()
		if tree == nil {
			return configstore.ErrNotConfiguring
		}
		text, err := section(tree, parts[1:], set)
		if err != nil {
			return err
		}
		return c.emit(text, rest)

	case "compare":
		if len(parts) == 3 && parts[1] == "rollback" {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return fmt.Errorf("compare: invalid rollback %q", parts[2])
			}
			out, err := c.store.ShowCompareRollback(n)
			if err != nil {
				return err
			}
			return c.emit(out, pipes)
		}
		return c.emit(c.store.ShowCompare(), pipes)

	case "commit":
		return c.handleCommit(ctx, parts[1:])

	case "rollback":
		n := 0
		if len(parts) >= 2 {
			v, err := strconv.Atoi(parts[1])
			if err != nil {
				return fmt.Errorf("rollback: invalid number %q", parts[1])
			}
			n = v
		}
		if err := c.store.Rollback(n); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "load complete")
		return nil

	case "run":
		if len(parts) < 2 {
			return fmt.Errorf("run: missing command")
		}
		return c.dispatchOperational(ctx, strings.TrimSpace(strings.TrimPrefix(line, "run")))

	case "exit", "quit":
		if c.store.IsDirty() {
			fmt.Fprintln(c.out, "warning: uncommitted changes will be discarded")
		}
		c.store.ExitConfigure()
		fmt.Fprintln(c.out, "Exiting configuration mode")
		return nil

	case "help":
		c.help("")
		return nil

	default:
		return fmt.Errorf("unknown command: %s (in configuration mode)", parts[0])
	}
}

func (c *CLI) handleLoad(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("load: usage: load merge|override <file>")
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	switch args[0] {
	case "merge":
		res, err := c.store.LoadMerge(ctx, string(data))
		if res != nil {
			report.WriteDiagnostics(c.out, res.Diagnostics)
		}
		if err != nil {
			return err
		}
	case "override":
		if err := c.store.LoadOverride(string(data)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("load: unknown mode %q", args[0])
	}
	fmt.Fprintln(c.out, "load complete")
	return nil
}

func (c *CLI) handleCommit(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "check" {
		res, err := c.store.CommitCheck(ctx)
		if res != nil && len(res.Diagnostics) > 0 {
			report.WriteDiagnostics(c.out, res.Diagnostics)
		}
		if err != nil {
			return fmt.Errorf("commit check failed: %w", err)
		}
		fmt.Fprintln(c.out, "configuration check succeeds")
		return nil
	}

	comment := ""
	if len(args) >= 2 && args[0] == "comment" {
		comment = strings.Trim(strings.Join(args[1:], " "), `"`)
	}
	res, err := c.store.Commit(ctx, comment)
	if res != nil && len(res.Diagnostics) > 0 {
		report.WriteDiagnostics(c.out, res.Diagnostics)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "commit complete")
	return nil
}

// handleCheck merges a file against the active tree and prints the
// findings. Nothing is committed.
func (c *CLI) handleCheck(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := c.merger.MergeText(ctx, c.store.ShowActive(), string(data))
	if res == nil {
		return err
	}
	report.WriteDiagnostics(c.out, res.Diagnostics)
	if err != nil {
		return errors.New("check failed")
	}
	fmt.Fprintf(c.out, "check succeeds: %d policies\n", len(res.Policies))
	return nil
}

func (c *CLI) help(prefix string) {
	tree := cmdtree.OperationalTree
	if c.store.InConfigMode() {
		tree = cmdtree.ConfigTree
	}
	words := strings.Fields(prefix)
	partial := ""
	if len(words) > 0 && !strings.HasSuffix(prefix, " ") && prefix != "" {
		// "sh?" completes the last word; "show ?" lists its children.
		if _, ok := lookup(tree, words); !ok {
			partial = words[len(words)-1]
			words = words[:len(words)-1]
		}
	}
	cmdtree.WriteHelp(c.out, cmdtree.Complete(tree, words, partial, c.store.Active()))
}

// lookup reports whether words name a node in tree.
func lookup(tree map[string]*cmdtree.Node, words []string) (*cmdtree.Node, bool) {
	var node *cmdtree.Node
	current := tree
	for _, w := range words {
		n, ok := current[w]
		if !ok {
			return nil, false
		}
		node, current = n, n.Children
	}
	return node, node != nil
}

func (c *CLI) prompt() string {
	if c.store.InConfigMode() {
		return fmt.Sprintf("[edit]\n%s@%s# ", c.username, c.hostname)
	}
	return fmt.Sprintf("%s@%s> ", c.username, c.hostname)
}
