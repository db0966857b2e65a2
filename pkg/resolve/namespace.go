// Package resolve builds the symbol namespace of a configuration tree and
// expands address-book, application and zone references.
package resolve

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/diag"
)

// GlobalBook is the name of the address book every zone falls back to.
const GlobalBook = "global"

// Error is a reference that could not be resolved.
type Error struct {
	Kind  diag.Kind // UnknownReference or CyclicReference
	Space string    // "address", "application" or "zone"
	Name  string
	Zone  string
	Chain []string // expansion stack, outermost first
}

func (e *Error) Error() string {
	where := ""
	if e.Zone != "" {
		where = fmt.Sprintf(" in zone %q", e.Zone)
	}
	switch e.Kind {
	case diag.CyclicReference:
		return fmt.Sprintf("%s %q%s: reference cycle %s", e.Space, e.Name, where, strings.Join(e.Chain, " -> "))
	default:
		if len(e.Chain) > 1 {
			return fmt.Sprintf("%s %q%s: not defined (referenced via %s)", e.Space, e.Name, where, strings.Join(e.Chain[:len(e.Chain)-1], " -> "))
		}
		return fmt.Sprintf("%s %q%s: not defined", e.Space, e.Name, where)
	}
}

// Member is one reference inside an address-set or application-set.
type Member struct {
	Name string
	Path config.Path
}

// Address is an address-book entry: a literal prefix or a set of names.
type Address struct {
	Name    string
	Path    config.Path
	IsSet   bool
	Prefix  netip.Prefix // valid for literal entries that parsed
	Members []Member     // for sets
}

// Book is one address book.
type Book struct {
	Name    string
	Path    config.Path
	Zones   []string // zones the book is attached to
	Entries []*Address

	byName map[string]*Address
}

func newBook(name string, path config.Path) *Book {
	return &Book{Name: name, Path: path, byName: make(map[string]*Address)}
}

// Lookup returns the entry with the given name in this book.
func (b *Book) Lookup(name string) *Address {
	if b == nil {
		return nil
	}
	return b.byName[name]
}

// Application is an application or application-set definition.
type Application struct {
	Name    string
	Path    config.Path
	IsSet   bool
	Members []Member
}

// Duplicate is a second definition of a name inside one scope. The first
// definition stays authoritative.
type Duplicate struct {
	Space string
	Name  string
	Path  config.Path
	First config.Path
}

// Invalid is an address entry whose prefix could not be parsed.
type Invalid struct {
	Name   string
	Path   config.Path
	Reason string
}

// Namespace holds every symbol defined by a configuration tree. It is
// read-only once built and safe for concurrent readers.
type Namespace struct {
	books     []*Book
	global    *Book
	zoneBooks map[string][]*Book

	apps     map[string]*Application
	appOrder []*Application

	zones         map[string]config.Path
	zonesDeclared bool

	duplicates []Duplicate
	invalid    []Invalid
}

var (
	pathAddressBook = config.Path{{Keyword: "security"}, {Keyword: "address-book"}}
	pathZones       = config.Path{{Keyword: "security"}, {Keyword: "zones"}}
	pathApps        = config.Path{{Keyword: "applications"}}
)

// Build constructs the namespace for a tree.
func Build(tree *config.Node) *Namespace {
	ns := &Namespace{
		zoneBooks: make(map[string][]*Book),
		apps:      make(map[string]*Application),
		zones:     make(map[string]config.Path),
	}

	if ab := tree.Find(pathAddressBook); ab != nil && ab.Kind.IsBlock() {
		for _, bn := range ab.Children {
			if !bn.Kind.IsBlock() {
				continue
			}
			name := bn.Label()
			book := ns.addBook(name, pathAddressBook.Child(bn.Keyword, bn.Name), bn)
			if name == GlobalBook && ns.global == nil {
				ns.global = book
			}
			for _, zone := range book.Zones {
				ns.zoneBooks[zone] = append(ns.zoneBooks[zone], book)
			}
		}
	}

	if zn := tree.Find(pathZones); zn != nil && zn.Kind.IsBlock() {
		ns.zonesDeclared = true
		for _, z := range zn.FindChildren("security-zone") {
			zpath := pathZones.Child(z.Keyword, z.Name)
			if first, ok := ns.zones[z.Name]; ok {
				ns.duplicates = append(ns.duplicates, Duplicate{Space: "zone", Name: z.Name, Path: zpath, First: first})
				continue
			}
			ns.zones[z.Name] = zpath
			if zb := z.FindChild("address-book"); zb != nil && zb.Kind.IsBlock() {
				book := ns.addBook("zone "+z.Name, zpath.Child(zb.Keyword, zb.Name), zb)
				book.Zones = []string{z.Name}
				// Zone-local book is searched before attached named books.
				ns.zoneBooks[z.Name] = append([]*Book{book}, ns.zoneBooks[z.Name]...)
			}
		}
	}

	if an := tree.Find(pathApps); an != nil && an.Kind.IsBlock() {
		for _, a := range an.Children {
			if a.Keyword != "application" && a.Keyword != "application-set" {
				continue
			}
			ns.addApplication(a, pathApps.Child(a.Keyword, a.Name))
		}
	}

	return ns
}

func (ns *Namespace) addBook(name string, path config.Path, n *config.Node) *Book {
	book := newBook(name, path)
	ns.books = append(ns.books, book)

	for _, c := range n.Children {
		cpath := path.Child(c.Keyword, c.Name)
		switch c.Keyword {
		case "address":
			ns.addEntry(book, addressEntry(ns, c, cpath))
		case "address-set":
			e := &Address{Name: c.Name, Path: cpath, IsSet: true}
			for _, m := range c.Children {
				if m.Keyword == "address" || m.Keyword == "address-set" {
					e.Members = append(e.Members, Member{Name: m.Name, Path: cpath.Child(m.Keyword, m.Name)})
				}
			}
			ns.addEntry(book, e)
		case "attach":
			for _, z := range c.FindChildren("zone") {
				book.Zones = append(book.Zones, z.Name)
			}
		}
	}
	return book
}

func (ns *Namespace) addEntry(book *Book, e *Address) {
	if first, ok := book.byName[e.Name]; ok {
		ns.duplicates = append(ns.duplicates, Duplicate{Space: "address", Name: e.Name, Path: e.Path, First: first.Path})
		return
	}
	book.byName[e.Name] = e
	book.Entries = append(book.Entries, e)
}

func addressEntry(ns *Namespace, n *config.Node, path config.Path) *Address {
	e := &Address{Name: n.Name, Path: path}
	raw := n.Value
	if n.Kind.IsBlock() {
		if p := n.FindChild("ip-prefix"); p != nil {
			raw = p.Value
		}
	}
	if raw == "" {
		ns.invalid = append(ns.invalid, Invalid{Name: n.Name, Path: path, Reason: "no prefix given"})
		return e
	}
	prefix, err := ParsePrefix(raw)
	if err != nil {
		ns.invalid = append(ns.invalid, Invalid{Name: n.Name, Path: path, Reason: err.Error()})
		return e
	}
	e.Prefix = prefix
	return e
}

// ParsePrefix accepts CIDR notation or a bare host address. Host bits are
// cleared.
func ParsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func (ns *Namespace) addApplication(n *config.Node, path config.Path) {
	if first, ok := ns.apps[n.Name]; ok {
		ns.duplicates = append(ns.duplicates, Duplicate{Space: "application", Name: n.Name, Path: path, First: first.Path})
		return
	}
	a := &Application{Name: n.Name, Path: path, IsSet: n.Keyword == "application-set"}
	if a.IsSet {
		for _, m := range n.Children {
			if m.Keyword == "application" || m.Keyword == "application-set" {
				a.Members = append(a.Members, Member{Name: m.Name, Path: path.Child(m.Keyword, m.Name)})
			}
		}
	}
	ns.apps[n.Name] = a
	ns.appOrder = append(ns.appOrder, a)
}

// Books returns every address book in tree order.
func (ns *Namespace) Books() []*Book {
	return ns.books
}

// Global returns the global address book, or nil when none is defined.
func (ns *Namespace) Global() *Book {
	return ns.global
}

// Applications returns user-defined applications and sets in tree order.
func (ns *Namespace) Applications() []*Application {
	return ns.appOrder
}

// Duplicates returns repeated definitions found while building.
func (ns *Namespace) Duplicates() []Duplicate {
	return ns.duplicates
}

// Invalid returns address entries with unusable prefixes.
func (ns *Namespace) Invalid() []Invalid {
	return ns.invalid
}

// ZonesDeclared reports whether the tree defines security zones. When it
// does not, zone names are not checked.
func (ns *Namespace) ZonesDeclared() bool {
	return ns.zonesDeclared
}
