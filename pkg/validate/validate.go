// Package validate checks the semantic invariants of a merged
// configuration tree: reference integrity, policy name uniqueness, DSCP
// values and suspicious match sets.
package validate

import (
	"errors"
	"sort"
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/diag"
	"github.com/psaab/srxmerge/pkg/dscp"
	"github.com/psaab/srxmerge/pkg/resolve"
)

// Validate checks tree against its namespace and returns every finding in
// tree order. ns must have been built from tree.
func Validate(tree *config.Node, ns *resolve.Namespace) diag.List {
	v := &validator{tree: tree, ns: ns}
	v.checkNamespace()
	for _, c := range Contexts(tree) {
		v.checkContext(c)
	}
	v.sort()
	return v.diags
}

type validator struct {
	tree  *config.Node
	ns    *resolve.Namespace
	diags diag.List
}

// checkNamespace reports problems in the definitions themselves, whether or
// not a policy references them.
func (v *validator) checkNamespace() {
	for _, inv := range v.ns.Invalid() {
		v.diags.Fatalf(diag.InvalidAddress, inv.Path, "address %q: %s", inv.Name, inv.Reason)
	}
	for _, d := range v.ns.Duplicates() {
		v.diags.Warnf(diag.DuplicateName, d.Path, "%s %q already defined at %s", d.Space, d.Name, d.First)
	}
	for _, b := range v.ns.Books() {
		zones := b.Zones
		if len(zones) == 0 {
			zones = []string{""}
		}
		for _, e := range b.Entries {
			if !e.IsSet {
				continue
			}
			for _, z := range zones {
				if _, err := v.ns.ResolveEntry(b, e, z); err != nil {
					v.reference(e.Path, err)
					break
				}
			}
		}
	}
	for _, a := range v.ns.Applications() {
		if !a.IsSet {
			continue
		}
		if _, err := v.ns.ResolveApplication(a.Name); err != nil {
			v.reference(a.Path, err)
		}
	}
}

func (v *validator) reference(path config.Path, err error) {
	var re *resolve.Error
	if errors.As(err, &re) {
		v.diags.Fatalf(re.Kind, path, "%v", err)
		return
	}
	v.diags.Fatalf(diag.UnknownReference, path, "%v", err)
}

func (v *validator) checkContext(c Context) {
	if !c.Global {
		if c.To == "" {
			v.diags.Fatalf(diag.UnknownReference, c.Path, "zone pair %q has no to-zone", c.From)
		} else {
			for _, z := range []string{c.From, c.To} {
				if err := v.ns.ResolveZone(z); err != nil {
					v.reference(c.Path, err)
				}
			}
		}
	}

	seen := make(map[string]config.Path)
	for _, p := range c.Policies() {
		ppath := c.Path.Child(p.Keyword, p.Name)
		if first, ok := seen[p.Name]; ok {
			v.diags.Fatalf(diag.DuplicatePolicyName, ppath, "policy %q already defined at %s", p.Name, first)
		} else {
			seen[p.Name] = ppath
		}
		v.checkPolicy(c, p, ppath)
	}
}

func (v *validator) checkPolicy(c Context, p *config.Node, ppath config.Path) {
	if match := p.Child("match", ""); match != nil && match.Kind.IsBlock() {
		v.checkMatch(c, match, ppath.Child("match", ""))
	}

	then := p.Child("then", "")
	switch actions := Actions(then); {
	case len(actions) == 0:
		v.diags.Warnf(diag.MissingAction, ppath, "policy %q has no permit, deny or reject action", p.Name)
	case len(actions) > 1:
		v.diags.Warnf(diag.ConflictingAction, ppath.Child("then", ""), "policy %q has actions %s; %s takes effect",
			p.Name, strings.Join(actions, ", "), actions[0])
	}
	if then != nil && then.Kind.IsBlock() {
		if rw := then.Child("dscp", ""); rw != nil {
			v.checkRewrite(rw, ppath.Child("then", "").Child(rw.Keyword, rw.Name))
		}
	}
}

func (v *validator) checkMatch(c Context, match *config.Node, mpath config.Path) {
	for _, leaf := range match.Children {
		lpath := mpath.Child(leaf.Keyword, leaf.Name)
		vals, empty := Members(leaf)
		switch leaf.Keyword {
		case "source-address", "destination-address":
			if empty {
				v.diags.Warnf(diag.SuspiciousEmptyMatch, lpath, "empty %s list matches nothing; use any to match every address", leaf.Keyword)
			}
			zone := c.From
			if leaf.Keyword == "destination-address" {
				zone = c.To
			}
			for _, name := range vals {
				v.checkAddress(lpath, name, zone)
			}
		case "application":
			if empty {
				v.diags.Warnf(diag.SuspiciousEmptyMatch, lpath, "empty application list matches nothing; use any to match every application")
			}
			for _, name := range vals {
				if !v.ns.IsApplicationDefined(name) {
					v.diags.Fatalf(diag.UnknownReference, lpath, "application %q is not defined", name)
				}
			}
		case "from-zone", "to-zone":
			if !c.Global {
				continue
			}
			for _, z := range vals {
				if err := v.ns.ResolveZone(z); err != nil {
					v.reference(lpath, err)
				}
			}
		}
	}
	v.checkDSCP(match, mpath)
}

// checkAddress reports names that are not defined at all. Failures inside a
// defined set are already reported at the set's definition.
func (v *validator) checkAddress(path config.Path, name, zone string) {
	_, err := v.ns.ResolveAddress(name, zone)
	var re *resolve.Error
	if errors.As(err, &re) && re.Kind == diag.UnknownReference && len(re.Chain) == 1 {
		v.diags.Fatalf(diag.UnknownReference, path, "%v", err)
	}
}

func (v *validator) checkDSCP(match *config.Node, mpath config.Path) {
	inc := match.Child("dscp", "")
	exc := match.Child("dscp-except", "")
	if inc == nil && exc == nil {
		return
	}
	eff, incOK := v.dscpList(inc, mpath, dscp.All)
	except, excOK := v.dscpList(exc, mpath, 0)
	if !incOK || !excOK {
		return
	}
	if eff.Minus(except).Empty() {
		v.diags.Warnf(diag.SuspiciousEmptyMatch, mpath, "dscp match set is empty after removing dscp-except")
	}
}

// dscpList parses a dscp or dscp-except leaf. An absent leaf yields def.
func (v *validator) dscpList(leaf *config.Node, mpath config.Path, def dscp.Set) (dscp.Set, bool) {
	if leaf == nil {
		return def, true
	}
	vals, _ := Members(leaf)
	s, err := dscp.ParseList(vals)
	if err != nil {
		v.diags.Fatalf(diag.InvalidDscpValue, mpath.Child(leaf.Keyword, leaf.Name), "%v", err)
		return 0, false
	}
	return s, true
}

func (v *validator) checkRewrite(rw *config.Node, path config.Path) {
	vals, _ := Members(rw)
	if len(vals) != 1 {
		v.diags.Fatalf(diag.InvalidDscpValue, path, "dscp rewrite takes exactly one code point, got %d", len(vals))
		return
	}
	if _, err := dscp.Lookup(vals[0]); err != nil {
		v.diags.Fatalf(diag.InvalidDscpValue, path, "dscp rewrite: %v", err)
	}
}

// sort orders diagnostics by the position of their node in the tree.
// Diagnostics on the same node keep the order they were found in.
func (v *validator) sort() {
	pos := make(map[string]int)
	i := 0
	v.tree.Walk(nil, func(p config.Path, _ *config.Node) bool {
		key := p.String()
		if _, ok := pos[key]; !ok {
			pos[key] = i
		}
		i++
		return true
	})
	at := func(d diag.Diagnostic) int {
		if n, ok := pos[d.Path]; ok {
			return n
		}
		return i
	}
	sort.SliceStable(v.diags, func(a, b int) bool {
		return at(v.diags[a]) < at(v.diags[b])
	})
}
