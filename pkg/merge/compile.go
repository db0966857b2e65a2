package merge

import (
	"net/netip"
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/dscp"
	"github.com/psaab/srxmerge/pkg/resolve"
	"github.com/psaab/srxmerge/pkg/validate"
)

// Policy is a policy with every reference expanded, in the order a
// renderer must emit it.
type Policy struct {
	From   string `json:"from_zone" yaml:"from_zone"`
	To     string `json:"to_zone" yaml:"to_zone"`
	Global bool   `json:"global,omitempty" yaml:"global,omitempty"`
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`

	Source       []netip.Prefix `json:"source" yaml:"source"`
	Destination  []netip.Prefix `json:"destination" yaml:"destination"`
	Applications []string       `json:"applications" yaml:"applications"`

	// DSCP is the effective match set: dscp minus dscp-except. A policy
	// without either clause matches every code point.
	DSCP    dscp.Set `json:"-" yaml:"-"`
	DSCPSet []int    `json:"dscp" yaml:"dscp"`

	Action  string   `json:"action" yaml:"action"`
	Rewrite *int     `json:"rewrite,omitempty" yaml:"rewrite,omitempty"`
	Tunnel  string   `json:"tunnel,omitempty" yaml:"tunnel,omitempty"`
	Log     []string `json:"log,omitempty" yaml:"log,omitempty"`
}

// Compile builds the resolved policy view of tree. References that do not
// resolve leave the corresponding field empty; Validate reports them.
func Compile(tree *config.Node, ns *resolve.Namespace) []Policy {
	var out []Policy
	for _, c := range validate.Contexts(tree) {
		for _, p := range c.Policies() {
			out = append(out, compilePolicy(ns, c, p))
		}
	}
	return out
}

func compilePolicy(ns *resolve.Namespace, c validate.Context, p *config.Node) Policy {
	pol := Policy{
		From:   c.From,
		To:     c.To,
		Global: c.Global,
		Name:   p.Name,
		Path:   c.Path.Child(p.Keyword, p.Name).String(),
		DSCP:   dscp.All,
	}
	srcZone, dstZone := c.From, c.To
	if c.Global {
		pol.From, pol.To = "any", "any"
		srcZone, dstZone = "", ""
	}

	if match := p.Child("match", ""); match != nil && match.Kind.IsBlock() {
		pol.Source = addresses(ns, match.Child("source-address", ""), srcZone)
		pol.Destination = addresses(ns, match.Child("destination-address", ""), dstZone)
		if a := match.Child("application", ""); a != nil {
			vals, _ := validate.Members(a)
			pol.Applications, _ = ns.ResolveApplicationSet(vals)
		}
		if c.Global {
			if z := match.Child("from-zone", ""); z != nil {
				vals, _ := validate.Members(z)
				pol.From = strings.Join(vals, ",")
			}
			if z := match.Child("to-zone", ""); z != nil {
				vals, _ := validate.Members(z)
				pol.To = strings.Join(vals, ",")
			}
		}
		pol.DSCP = effectiveDSCP(match)
	}
	for _, code := range pol.DSCP.Codepoints() {
		pol.DSCPSet = append(pol.DSCPSet, int(code))
	}

	if then := p.Child("then", ""); then != nil && then.Kind.IsBlock() {
		pol.Action = validate.Action(then)
		if permit := then.Child("permit", ""); permit != nil && permit.Kind.IsBlock() {
			if vpn := permit.Find(config.Path{{Keyword: "tunnel"}, {Keyword: "ipsec-vpn"}}); vpn != nil {
				pol.Tunnel = vpn.Value
			}
		}
		if rw := then.Child("dscp", ""); rw != nil {
			if vals, _ := validate.Members(rw); len(vals) == 1 {
				if code, err := dscp.Lookup(vals[0]); err == nil {
					v := int(code)
					pol.Rewrite = &v
				}
			}
		}
		if l := then.Child("log", ""); l != nil {
			for _, c := range l.Children {
				pol.Log = append(pol.Log, c.Keyword)
			}
		}
	}
	return pol
}

// addresses resolves a match address leaf. An absent leaf matches any
// address.
func addresses(ns *resolve.Namespace, leaf *config.Node, zone string) []netip.Prefix {
	if leaf == nil {
		ps, _ := ns.ResolveAddress("any", zone)
		return ps
	}
	vals, _ := validate.Members(leaf)
	ps, err := ns.ResolveAddresses(vals, zone)
	if err != nil {
		return nil
	}
	return ps
}

func effectiveDSCP(match *config.Node) dscp.Set {
	eff := dscp.All
	if inc := match.Child("dscp", ""); inc != nil {
		vals, _ := validate.Members(inc)
		s, err := dscp.ParseList(vals)
		if err != nil {
			return 0
		}
		eff = s
	}
	if exc := match.Child("dscp-except", ""); exc != nil {
		vals, _ := validate.Members(exc)
		s, err := dscp.ParseList(vals)
		if err != nil {
			return 0
		}
		eff = eff.Minus(s)
	}
	return eff
}
