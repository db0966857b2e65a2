// Package dscp maps Differentiated Services code point tokens to 6-bit
// values and provides a compact set type for match lists.
package dscp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Max is the largest valid code point.
const Max = 63

// classes maps each named per-hop behaviour to its code point. The table is
// injective so reverse lookup is unambiguous.
var classes = map[string]uint8{
	"be":   0,
	"cs1":  8,
	"af11": 10,
	"af12": 12,
	"af13": 14,
	"cs2":  16,
	"af21": 18,
	"af22": 20,
	"af23": 22,
	"cs3":  24,
	"af31": 26,
	"af32": 28,
	"af33": 30,
	"cs4":  32,
	"af41": 34,
	"af42": 36,
	"af43": 38,
	"cs5":  40,
	"ef":   46,
	"cs6":  48,
	"cs7":  56,
}

// aliases are accepted on input but never produced by Name.
var aliases = map[string]uint8{
	"cs0": 0,
}

var names [Max + 1]string

func init() {
	for name, code := range classes {
		names[code] = name
	}
}

// Classes returns the named classes sorted by code point.
func Classes() []string {
	out := make([]string, 0, len(classes))
	for name := range classes {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return classes[out[i]] < classes[out[j]] })
	return out
}

// Name returns the class name for a code point, or "" when the code point
// has no name.
func Name(code uint8) string {
	if code > Max {
		return ""
	}
	return names[code]
}

// Error reports a token that is not a valid code point, class or range.
type Error struct {
	Token  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid dscp value %q: %s", e.Token, e.Reason)
}

// Lookup resolves a single code point token: a class name, an alias, a
// decimal number 0-63 or a six digit binary literal ("b101110").
func Lookup(token string) (uint8, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if code, ok := classes[t]; ok {
		return code, nil
	}
	if code, ok := aliases[t]; ok {
		return code, nil
	}
	if len(t) == 7 && t[0] == 'b' {
		v, err := strconv.ParseUint(t[1:], 2, 8)
		if err != nil {
			return 0, &Error{Token: token, Reason: "malformed binary literal"}
		}
		return uint8(v), nil
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return 0, &Error{Token: token, Reason: "unknown class name"}
	}
	if v < 0 || v > Max {
		return 0, &Error{Token: token, Reason: fmt.Sprintf("out of range [0,%d]", Max)}
	}
	return uint8(v), nil
}

// Expand resolves a token that may also be an inclusive range ("af41-af43",
// "10-12"). A range whose low end exceeds its high end is rejected.
func Expand(token string) (Set, error) {
	if lo, hi, ok := strings.Cut(token, "-"); ok {
		a, err := Lookup(lo)
		if err != nil {
			return 0, &Error{Token: token, Reason: "bad range start: " + err.(*Error).Reason}
		}
		b, err := Lookup(hi)
		if err != nil {
			return 0, &Error{Token: token, Reason: "bad range end: " + err.(*Error).Reason}
		}
		if a > b {
			return 0, &Error{Token: token, Reason: "range start exceeds end"}
		}
		return Range(a, b), nil
	}
	code, err := Lookup(token)
	if err != nil {
		return 0, err
	}
	return Of(code), nil
}

// ParseList expands every token and returns the union.
func ParseList(tokens []string) (Set, error) {
	var s Set
	for _, t := range tokens {
		e, err := Expand(t)
		if err != nil {
			return 0, err
		}
		s = s.Union(e)
	}
	return s, nil
}
