package resolve

import (
	"net/netip"
	"sort"

	"github.com/psaab/srxmerge/pkg/diag"
)

var (
	anyV4 = netip.PrefixFrom(netip.IPv4Unspecified(), 0)
	anyV6 = netip.PrefixFrom(netip.IPv6Unspecified(), 0)
)

// builtinAddress returns the predefined address names.
func builtinAddress(name string) ([]netip.Prefix, bool) {
	switch name {
	case "any":
		return []netip.Prefix{anyV4, anyV6}, true
	case "any-ipv4":
		return []netip.Prefix{anyV4}, true
	case "any-ipv6":
		return []netip.Prefix{anyV6}, true
	}
	return nil, false
}

// IsBuiltinAddress reports whether name is predefined.
func IsBuiltinAddress(name string) bool {
	_, ok := builtinAddress(name)
	return ok
}

// lookup finds name for a zone: zone-local books first, then global.
func (ns *Namespace) lookup(name, zone string) (*Address, *Book) {
	if zone != "" {
		for _, b := range ns.zoneBooks[zone] {
			if e := b.Lookup(name); e != nil {
				return e, b
			}
		}
	}
	if e := ns.global.Lookup(name); e != nil {
		return e, ns.global
	}
	return nil, nil
}

// ResolveAddress expands an address or address-set name visible from zone
// (empty for global scope only) into literal prefixes, sorted and free of
// duplicates.
func (ns *Namespace) ResolveAddress(name, zone string) ([]netip.Prefix, error) {
	if p, ok := builtinAddress(name); ok {
		return p, nil
	}
	e, book := ns.lookup(name, zone)
	if e == nil {
		return nil, &Error{Kind: diag.UnknownReference, Space: "address", Name: name, Zone: zone, Chain: []string{name}}
	}
	return ns.ResolveEntry(book, e, zone)
}

// ResolveEntry expands a specific address-book entry. Set members are looked
// up in the entry's own book first, then through the zone chain.
func (ns *Namespace) ResolveEntry(book *Book, e *Address, zone string) ([]netip.Prefix, error) {
	x := &expansion{
		ns:      ns,
		zone:    zone,
		onStack: make(map[*Address]bool),
		done:    make(map[*Address]bool),
		acc:     make(map[netip.Prefix]struct{}),
	}
	if err := x.expand(book, e); err != nil {
		return nil, err
	}
	return sortedPrefixes(x.acc), nil
}

// expansion carries the visited stack through one recursive expansion.
// done holds sets already folded into acc; a set shared by several parents
// is expanded once.
type expansion struct {
	ns      *Namespace
	zone    string
	stack   []string
	onStack map[*Address]bool
	done    map[*Address]bool
	acc     map[netip.Prefix]struct{}
}

func (x *expansion) expand(book *Book, e *Address) error {
	if x.done[e] {
		return nil
	}
	if x.onStack[e] {
		chain := append(append([]string(nil), x.stack...), e.Name)
		return &Error{Kind: diag.CyclicReference, Space: "address", Name: chain[0], Zone: x.zone, Chain: chain}
	}
	if !e.IsSet {
		if e.Prefix.IsValid() {
			x.acc[e.Prefix] = struct{}{}
		}
		return nil
	}

	x.onStack[e] = true
	x.stack = append(x.stack, e.Name)
	defer func() {
		x.stack = x.stack[:len(x.stack)-1]
		delete(x.onStack, e)
	}()

	for _, m := range e.Members {
		if p, ok := builtinAddress(m.Name); ok {
			for _, pp := range p {
				x.acc[pp] = struct{}{}
			}
			continue
		}
		next, nextBook := book.Lookup(m.Name), book
		if next == nil {
			next, nextBook = x.ns.lookup(m.Name, x.zone)
		}
		if next == nil {
			chain := append(append([]string(nil), x.stack...), m.Name)
			return &Error{Kind: diag.UnknownReference, Space: "address", Name: m.Name, Zone: x.zone, Chain: chain}
		}
		if err := x.expand(nextBook, next); err != nil {
			return err
		}
	}
	x.done[e] = true
	return nil
}

func sortedPrefixes(set map[netip.Prefix]struct{}) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Addr().Compare(b.Addr()); c != 0 {
			return c < 0
		}
		return a.Bits() < b.Bits()
	})
	return out
}

// ResolveAddresses resolves every name and returns the union.
func (ns *Namespace) ResolveAddresses(names []string, zone string) ([]netip.Prefix, error) {
	acc := make(map[netip.Prefix]struct{})
	for _, n := range names {
		ps, err := ns.ResolveAddress(n, zone)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			acc[p] = struct{}{}
		}
	}
	return sortedPrefixes(acc), nil
}
