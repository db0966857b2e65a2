package cli

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/report"
)

// splitPipes separates "show ... | match x | count" into the command and
// its pipe stages.
func splitPipes(line string) (string, []string) {
	parts := strings.Split(line, "|")
	var pipes []string
	for _, p := range parts[1:] {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			pipes = append(pipes, p)
		}
	}
	return strings.TrimSpace(parts[0]), pipes
}

func hasCompare(pipes []string) bool {
	for _, p := range pipes {
		if p == "compare" {
			return true
		}
	}
	return false
}

// displaySet reports whether "display set" was requested and returns the
// remaining stages.
func displaySet(pipes []string) (bool, []string) {
	set := false
	var rest []string
	for _, p := range pipes {
		if p == "display set" {
			set = true
			continue
		}
		rest = append(rest, p)
	}
	return set, rest
}

// section renders the part of tree named by args, e.g. "security
// policies". No args renders the whole tree.
func section(tree *config.Node, args []string, set bool) (string, error) {
	if len(args) == 0 {
		if set {
			return tree.FormatSet(), nil
		}
		return tree.Format(), nil
	}
	if set {
		prefix := "set " + strings.Join(args, " ")
		var b strings.Builder
		for _, line := range strings.SplitAfter(tree.FormatSet(), "\n") {
			l := strings.TrimSuffix(line, "\n")
			if l == prefix || strings.HasPrefix(l, prefix+" ") {
				b.WriteString(line)
			}
		}
		return b.String(), nil
	}
	path, err := config.ParsePath(strings.Join(args, "."))
	if err != nil {
		return "", err
	}
	node := tree.Find(path)
	if node == nil {
		return "", fmt.Errorf("statement not found: %s", strings.Join(args, " "))
	}
	return node.Format(), nil
}

// emit applies pipe stages to text and writes the result.
func (c *CLI) emit(text string, pipes []string) error {
	var lines []string
	if text != "" {
		lines = strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	}
	for _, p := range pipes {
		fields := strings.Fields(p)
		switch fields[0] {
		case "match", "except":
			if len(fields) < 2 {
				return fmt.Errorf("%s: missing pattern", fields[0])
			}
			re, err := regexp.Compile(strings.Join(fields[1:], " "))
			if err != nil {
				return fmt.Errorf("%s: %w", fields[0], err)
			}
			keep := fields[0] == "match"
			var out []string
			for _, l := range lines {
				if re.MatchString(l) == keep {
					out = append(out, l)
				}
			}
			lines = out
		case "count":
			lines = []string{fmt.Sprintf("Count: %d lines", len(lines))}
		case "last":
			n := 10
			if len(fields) > 1 {
				v, err := strconv.Atoi(fields[1])
				if err != nil || v < 0 {
					return fmt.Errorf("last: invalid count %q", fields[1])
				}
				n = v
			}
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
		default:
			return fmt.Errorf("unknown pipe command: %s", p)
		}
	}
	for _, l := range lines {
		fmt.Fprintln(c.out, l)
	}
	return nil
}

func (c *CLI) handleShow(args []string, pipes []string) error {
	if len(args) == 0 {
		return fmt.Errorf("show: missing argument")
	}
	switch args[0] {
	case "configuration":
		set, rest := displaySet(pipes)
		text, err := section(c.store.Active(), args[1:], set)
		if err != nil {
			return err
		}
		return c.emit(text, rest)

	case "policies":
		res := c.store.ActiveConfig()
		if res == nil {
			fmt.Fprintln(c.out, "no active configuration")
			return nil
		}
		zone := ""
		if len(args) >= 3 && args[1] == "from-zone" {
			zone = args[2]
		}
		return c.emit(policyText(res.Policies, zone), pipes)

	case "diagnostics":
		res := c.store.ActiveConfig()
		if res == nil {
			fmt.Fprintln(c.out, "no active configuration")
			return nil
		}
		var b strings.Builder
		report.WriteDiagnostics(&b, res.Diagnostics)
		return c.emit(b.String(), pipes)

	case "system":
		if len(args) < 2 || args[1] != "rollback" {
			return fmt.Errorf("show system: usage: show system rollback [N]")
		}
		if len(args) >= 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("show system rollback: invalid number %q", args[2])
			}
			text, err := c.store.ShowRollback(n)
			if err != nil {
				return err
			}
			return c.emit(text, pipes)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%-4s %-20s %s\n", "0", "active", "")
		for i, e := range c.store.ListHistory() {
			fmt.Fprintf(&b, "%-4d %-20s %s\n", i+1, e.Timestamp.Format("2006-01-02 15:04:05"), e.Comment)
		}
		return c.emit(b.String(), pipes)

	default:
		return fmt.Errorf("unknown show target: %s", args[0])
	}
}

// policyText renders policies in device order, grouped by zone pair.
// An empty zone shows every context.
func policyText(policies []merge.Policy, zone string) string {
	var b strings.Builder
	header := ""
	index := 0
	for _, p := range policies {
		if zone != "" && p.From != zone {
			continue
		}
		h := fmt.Sprintf("From zone: %s, To zone: %s", p.From, p.To)
		if p.Global {
			h = "Global policies:"
		}
		if h != header {
			header = h
			fmt.Fprintln(&b, h)
		}
		index++
		fmt.Fprintf(&b, "  Policy: %s, Index: %d, Action: %s\n", p.Name, index, p.Action)
		fmt.Fprintf(&b, "    Source addresses: %s\n", prefixes(p.Source))
		fmt.Fprintf(&b, "    Destination addresses: %s\n", prefixes(p.Destination))
		fmt.Fprintf(&b, "    Applications: %s\n", strings.Join(p.Applications, ", "))
		if p.DSCP.Len() < 64 {
			fmt.Fprintf(&b, "    DSCP: %s\n", p.DSCP)
		}
		if p.Rewrite != nil {
			fmt.Fprintf(&b, "    Rewrite DSCP: %d\n", *p.Rewrite)
		}
		if p.Tunnel != "" {
			fmt.Fprintf(&b, "    Tunnel: %s\n", p.Tunnel)
		}
	}
	return b.String()
}

func prefixes(ps []netip.Prefix) string {
	if len(ps) == 0 {
		return "none"
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return strings.Join(out, ", ")
}
