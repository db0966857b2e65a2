package resolve

import (
	"sort"

	"github.com/psaab/srxmerge/pkg/diag"
)

// IsApplicationDefined reports whether name is predefined or user-defined.
func (ns *Namespace) IsApplicationDefined(name string) bool {
	if name == "any" {
		return true
	}
	if _, ok := PredefinedApplications[name]; ok {
		return true
	}
	_, ok := ns.apps[name]
	return ok
}

// ResolveApplication expands an application or application-set name into
// the sorted set of leaf application names it covers.
func (ns *Namespace) ResolveApplication(name string) ([]string, error) {
	acc := make(map[string]struct{})
	if err := ns.expandApp(name, nil, make(map[string]bool), acc); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(acc))
	for n := range acc {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// ResolveApplicationSet resolves every name and returns the union.
func (ns *Namespace) ResolveApplicationSet(names []string) ([]string, error) {
	acc := make(map[string]struct{})
	for _, n := range names {
		apps, err := ns.ResolveApplication(n)
		if err != nil {
			return nil, err
		}
		for _, a := range apps {
			acc[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(acc))
	for n := range acc {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (ns *Namespace) expandApp(name string, stack []string, onStack map[string]bool, acc map[string]struct{}) error {
	chain := append(append([]string(nil), stack...), name)
	if onStack[name] {
		return &Error{Kind: diag.CyclicReference, Space: "application", Name: chain[0], Chain: chain}
	}
	a, ok := ns.apps[name]
	if !ok {
		// User definitions shadow predefined names.
		if name == "any" {
			acc[name] = struct{}{}
			return nil
		}
		if _, ok := PredefinedApplications[name]; ok {
			acc[name] = struct{}{}
			return nil
		}
		return &Error{Kind: diag.UnknownReference, Space: "application", Name: name, Chain: chain}
	}
	if !a.IsSet {
		acc[name] = struct{}{}
		return nil
	}

	onStack[name] = true
	defer delete(onStack, name)
	for _, m := range a.Members {
		if err := ns.expandApp(m.Name, chain, onStack, acc); err != nil {
			return err
		}
	}
	return nil
}

// Builtin zone names that are always valid in zone-pair contexts.
var builtinZones = map[string]bool{
	"any":        true,
	"junos-host": true,
}

// ResolveZone checks that a zone name is defined. Without a zones stanza in
// the tree every name is accepted.
func (ns *Namespace) ResolveZone(name string) error {
	if builtinZones[name] || !ns.zonesDeclared {
		return nil
	}
	if _, ok := ns.zones[name]; ok {
		return nil
	}
	return &Error{Kind: diag.UnknownReference, Space: "zone", Name: name, Chain: []string{name}}
}

// ResolveZoneSet checks every name and returns them de-duplicated in input
// order.
func (ns *Namespace) ResolveZoneSet(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if err := ns.ResolveZone(n); err != nil {
			return nil, err
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

// Zones returns the declared zone names.
func (ns *Namespace) Zones() []string {
	out := make([]string, 0, len(ns.zones))
	for n := range ns.zones {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
