package resolve

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/psaab/srxmerge/pkg/config"
	"github.com/psaab/srxmerge/pkg/diag"
)

func mustBuild(t *testing.T, text string) *Namespace {
	t.Helper()
	tree, err := config.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Build(tree)
}

func prefixStrings(ps []netip.Prefix) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

const books = `security {
    address-book {
        global {
            address h1 10.0.0.1/32;
            address n8 10.0.0.0/8;
            address v6 2001:db8::/32;
            address host 192.0.2.7;
            address-set web {
                address h1;
                address n8;
            }
            address-set mixed {
                address v6;
                address-set web;
            }
            address-set both {
                address-set web;
                address-set mixed;
            }
        }
    }
    zones {
        security-zone trust {
            address-book {
                address h1 172.16.0.1/32;
                address-set local {
                    address h1;
                    address host;
                }
            }
        }
        security-zone untrust;
    }
}`

func TestResolveLiteralAndSets(t *testing.T) {
	ns := mustBuild(t, books)
	tests := []struct {
		name, zone, want string
	}{
		{"h1", "", "10.0.0.1/32"},
		{"host", "", "192.0.2.7/32"},
		{"web", "", "10.0.0.0/8,10.0.0.1/32"},
		{"mixed", "", "10.0.0.0/8,10.0.0.1/32,2001:db8::/32"},
		{"h1", "trust", "172.16.0.1/32"},
		{"local", "trust", "172.16.0.1/32,192.0.2.7/32"},
		{"web", "trust", "10.0.0.0/8,10.0.0.1/32"},
		{"any-ipv4", "", "0.0.0.0/0"},
	}
	for _, tt := range tests {
		got, err := ns.ResolveAddress(tt.name, tt.zone)
		if err != nil {
			t.Errorf("ResolveAddress(%q, %q): %v", tt.name, tt.zone, err)
			continue
		}
		if s := prefixStrings(got); s != tt.want {
			t.Errorf("ResolveAddress(%q, %q) = %s, want %s", tt.name, tt.zone, s, tt.want)
		}
	}
}

func TestResolveUnionAssociative(t *testing.T) {
	ns := mustBuild(t, books)
	both, err := ns.ResolveAddress("both", "")
	if err != nil {
		t.Fatal(err)
	}
	separate, err := ns.ResolveAddresses([]string{"web", "mixed"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if prefixStrings(both) != prefixStrings(separate) {
		t.Errorf("set of sets %s != union %s", prefixStrings(both), prefixStrings(separate))
	}
}

func TestResolveUnknown(t *testing.T) {
	ns := mustBuild(t, books)
	_, err := ns.ResolveAddress("local", "")
	var re *Error
	if !errors.As(err, &re) || re.Kind != diag.UnknownReference {
		t.Fatalf("expected UnknownReference for zone-local name in global scope, got %v", err)
	}
	if _, err := ns.ResolveAddress("local", "untrust"); err == nil {
		t.Error("zone-local name leaked into another zone")
	}
}

func TestResolveCycle(t *testing.T) {
	ns := mustBuild(t, `security { address-book { global {
        address-set A { address-set B; }
        address-set B { address-set A; }
        address-set S { address-set S; }
        address-set C { address-set A; }
    } } }`)
	for _, name := range []string{"A", "B", "S", "C"} {
		_, err := ns.ResolveAddress(name, "")
		var re *Error
		if !errors.As(err, &re) || re.Kind != diag.CyclicReference {
			t.Errorf("%s: expected CyclicReference, got %v", name, err)
			continue
		}
		if re.Chain[len(re.Chain)-1] != re.Chain[0] && name != "C" {
			t.Errorf("%s: chain %v does not close", name, re.Chain)
		}
	}
}

func TestResolveSharedSetsOnce(t *testing.T) {
	// Each layer's two sets both reference the two sets below them.
	const layers = 40
	var b strings.Builder
	b.WriteString("security { address-book { global {\n")
	b.WriteString("    address h1 10.0.0.1/32;\n    address h2 10.0.0.2/32;\n")
	b.WriteString("    address-set L0a { address h1; }\n    address-set L0b { address h2; }\n")
	for i := 1; i <= layers; i++ {
		for _, side := range []string{"a", "b"} {
			fmt.Fprintf(&b, "    address-set L%d%s { address-set L%da; address-set L%db; }\n", i, side, i-1, i-1)
		}
	}
	b.WriteString("} } }\n")
	ns := mustBuild(t, b.String())

	start := time.Now()
	got, err := ns.ResolveAddress(fmt.Sprintf("L%da", layers), "")
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expansion took %v", elapsed)
	}
	if s := prefixStrings(got); s != "10.0.0.1/32,10.0.0.2/32" {
		t.Errorf("got %s", s)
	}
}

func TestResolveDanglingMember(t *testing.T) {
	ns := mustBuild(t, `security { address-book { global {
        address-set A { address missing; }
    } } }`)
	_, err := ns.ResolveAddress("A", "")
	var re *Error
	if !errors.As(err, &re) || re.Kind != diag.UnknownReference || re.Name != "missing" {
		t.Fatalf("expected UnknownReference for missing, got %v", err)
	}
	if !strings.Contains(err.Error(), "A") {
		t.Errorf("error %q does not name the referencing set", err)
	}
}

func TestAttachedBook(t *testing.T) {
	ns := mustBuild(t, `security { address-book {
        corp { address c1 198.51.100.0/24; attach { zone trust; } }
    } zones { security-zone trust; } }`)
	got, err := ns.ResolveAddress("c1", "trust")
	if err != nil {
		t.Fatal(err)
	}
	if prefixStrings(got) != "198.51.100.0/24" {
		t.Errorf("c1 = %s", prefixStrings(got))
	}
	if _, err := ns.ResolveAddress("c1", ""); err == nil {
		t.Error("attached book visible from global scope")
	}
}

func TestDuplicatesAndInvalid(t *testing.T) {
	ns := mustBuild(t, `security { address-book { global {
        address a 10.0.0.0/8;
        address a 11.0.0.0/8;
        address bad 10.0.0.0/99;
        address empty;
    } } }`)
	if d := ns.Duplicates(); len(d) != 1 || d[0].Name != "a" {
		t.Errorf("duplicates = %+v", d)
	}
	if inv := ns.Invalid(); len(inv) != 2 {
		t.Errorf("invalid = %+v", inv)
	}
	got, _ := ns.ResolveAddress("a", "")
	if prefixStrings(got) != "10.0.0.0/8" {
		t.Errorf("first definition not authoritative: %s", prefixStrings(got))
	}
}

func TestApplications(t *testing.T) {
	ns := mustBuild(t, `applications {
        application my-app { term t1 protocol tcp destination-port 8080; }
        application-set web { application junos-http; application my-app; }
        application-set all { application-set web; application junos-ssh; }
        application-set loop1 { application-set loop2; }
        application-set loop2 { application-set loop1; }
        application-set broken { application nope; }
    }`)

	got, err := ns.ResolveApplication("all")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "junos-http,junos-ssh,my-app" {
		t.Errorf("all = %v", got)
	}

	var re *Error
	if _, err := ns.ResolveApplication("loop1"); !errors.As(err, &re) || re.Kind != diag.CyclicReference {
		t.Errorf("loop1: %v", err)
	}
	if _, err := ns.ResolveApplication("broken"); !errors.As(err, &re) || re.Kind != diag.UnknownReference {
		t.Errorf("broken: %v", err)
	}
	if !ns.IsApplicationDefined("junos-https") || !ns.IsApplicationDefined("any") {
		t.Error("predefined applications not defined")
	}
}

func TestZones(t *testing.T) {
	ns := mustBuild(t, books)
	if !ns.ZonesDeclared() {
		t.Fatal("zones not declared")
	}
	if _, err := ns.ResolveZoneSet([]string{"trust", "untrust", "any", "trust"}); err != nil {
		t.Errorf("ResolveZoneSet: %v", err)
	}
	if err := ns.ResolveZone("dmz"); err == nil {
		t.Error("expected error for undefined zone")
	}

	open := mustBuild(t, `security { policies { } }`)
	if err := open.ResolveZone("dmz"); err != nil {
		t.Errorf("zones not declared, but ResolveZone failed: %v", err)
	}
}
