// Package diag defines the diagnostics produced while merging and
// validating a configuration document.
package diag

import (
	"fmt"
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
)

// Kind identifies the class of problem a diagnostic reports.
type Kind string

const (
	ParseError           Kind = "ParseError"
	UnknownReference     Kind = "UnknownReference"
	CyclicReference      Kind = "CyclicReference"
	DuplicatePolicyName  Kind = "DuplicatePolicyName"
	InvalidDscpValue     Kind = "InvalidDscpValue"
	PathConflict         Kind = "PathConflict"
	SuspiciousEmptyMatch Kind = "SuspiciousEmptyMatch"
	DuplicateName        Kind = "DuplicateName"
	MissingAction        Kind = "MissingAction"
	ConflictingAction    Kind = "ConflictingAction"
	InvalidAddress       Kind = "InvalidAddress"
)

// Severity says whether a diagnostic blocks emission of a resolved config.
type Severity int

const (
	Warning Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "warning"
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "fatal":
		*s = Fatal
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Diagnostic is one finding with the tree path it concerns.
type Diagnostic struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	Path     string   `json:"path" yaml:"path"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s %s at %s: %s", d.Severity, d.Kind, d.Path, d.Message)
}

// New builds a diagnostic for a tree path.
func New(kind Kind, sev Severity, path config.Path, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: sev,
		Path:     path.String(),
		Message:  fmt.Sprintf(format, args...),
	}
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) {
	*l = append(*l, d)
}

// Fatalf appends a fatal diagnostic.
func (l *List) Fatalf(kind Kind, path config.Path, format string, args ...any) {
	l.Add(New(kind, Fatal, path, format, args...))
}

// Warnf appends a warning.
func (l *List) Warnf(kind Kind, path config.Path, format string, args ...any) {
	l.Add(New(kind, Warning, path, format, args...))
}

// HasFatal reports whether any diagnostic is fatal.
func (l List) HasFatal() bool {
	for _, d := range l {
		if d.Severity == Fatal {
			return true
		}
	}
	return false
}

// Fatal returns only the fatal diagnostics.
func (l List) Fatal() List {
	return l.filter(Fatal)
}

// Warnings returns only the warnings.
func (l List) Warnings() List {
	return l.filter(Warning)
}

func (l List) filter(sev Severity) List {
	var out List
	for _, d := range l {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// OfKind returns the diagnostics of the given kind.
func (l List) OfKind(kind Kind) List {
	var out List
	for _, d := range l {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (l List) String() string {
	lines := make([]string, len(l))
	for i, d := range l {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
