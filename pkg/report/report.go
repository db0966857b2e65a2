// Package report encodes merge results for people and for tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/psaab/srxmerge/pkg/diag"
	"github.com/psaab/srxmerge/pkg/merge"
)

// Format selects an output encoding.
type Format string

const (
	Text Format = "text" // hierarchical configuration
	Set  Format = "set"  // flat set lines
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, Set, JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, set, json or yaml)", s)
}

// Document is the machine-readable form of a merge result. Field order is
// the output order.
type Document struct {
	ID          string         `json:"id" yaml:"id"`
	OK          bool           `json:"ok" yaml:"ok"`
	Config      string         `json:"config" yaml:"config"`
	Diagnostics diag.List      `json:"diagnostics" yaml:"diagnostics"`
	Policies    []merge.Policy `json:"policies" yaml:"policies"`
}

// NewDocument builds the document for res.
func NewDocument(res *merge.ResolvedConfig) Document {
	d := Document{
		ID:          res.ID,
		OK:          res.OK(),
		Diagnostics: res.Diagnostics,
		Policies:    res.Policies,
	}
	if res.Tree != nil {
		d.Config = res.Tree.Format()
	}
	if d.Diagnostics == nil {
		d.Diagnostics = diag.List{}
	}
	return d
}

// Write encodes res to w. Text and set formats carry only the tree; use
// WriteDiagnostics for the findings.
func Write(w io.Writer, res *merge.ResolvedConfig, f Format) error {
	switch f {
	case Text:
		_, err := io.WriteString(w, res.Tree.Format())
		return err
	case Set:
		_, err := io.WriteString(w, res.Tree.FormatSet())
		return err
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(res))
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(res)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// WriteDiagnostics prints one finding per line, followed by a summary.
func WriteDiagnostics(w io.Writer, diags diag.List) error {
	for _, d := range diags {
		if _, err := fmt.Fprintln(w, d.String()); err != nil {
			return err
		}
	}
	fatal := len(diags.Fatal())
	_, err := fmt.Fprintf(w, "%d fatal, %d warning\n", fatal, len(diags)-fatal)
	return err
}
