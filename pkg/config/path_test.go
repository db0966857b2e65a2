package config

import "testing"

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		n    int
	}{
		{"security", "security", 1},
		{"security.policies.from-zone.trust.to-zone.untrust", "security.policies.from-zone[trust to-zone untrust]", 3},
		{"security.policies.from-zone[trust to-zone untrust].policy[p1]", "security.policies.from-zone[trust to-zone untrust].policy[p1]", 4},
		{"security.policies.from-zone[ trust  to-zone untrust ]", "security.policies.from-zone[trust to-zone untrust]", 3},
		{"security.address-book.global.address-set._0", "security.address-book.global.address-set[_0]", 4},
		{"security.address-book.global.address[h1]", "security.address-book.global.address[h1]", 4},
		{"security.zones.security-zone.trust.address-book", "security.zones.security-zone[trust].address-book", 4},
		{"applications.application-set.web", "applications.application-set[web]", 2},
		{"system.host-name", "system.host-name", 2},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePath(tt.in)
			if err != nil {
				t.Fatalf("ParsePath(%q): %v", tt.in, err)
			}
			if len(p) != tt.n {
				t.Errorf("len = %d, want %d (%v)", len(p), tt.n, p)
			}
			if p.String() != tt.want {
				t.Errorf("String() = %q, want %q", p.String(), tt.want)
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, in := range []string{
		"security..policies",
		"security.",
		".security",
		"security.policy[p1",
		"security.policy[p1]x",
	} {
		if _, err := ParsePath(in); err == nil {
			t.Errorf("ParsePath(%q): expected error", in)
		}
	}
}

func TestPathHelpers(t *testing.T) {
	p := MustParsePath("security.policies.from-zone[a to-zone b]")
	c := p.Child("policy", "x")
	if len(p) != 3 {
		t.Error("Child modified receiver")
	}
	if !c.Parent().Equal(p) {
		t.Errorf("Parent() = %s", c.Parent())
	}
	if c.Last() != (Segment{"policy", "x"}) {
		t.Errorf("Last() = %v", c.Last())
	}
	if !c.HasPrefix(p) || p.HasPrefix(c) {
		t.Error("HasPrefix wrong")
	}

	// Appending to a parent must not clobber the child's storage.
	parent := c.Parent()
	_ = append(parent, Segment{"policy", "y"})
	if c.Last().Name != "x" {
		t.Error("Parent shares capacity with child")
	}
}
