package config

import (
	"testing"
)

func sampleTree() *Node {
	root := NewTree()
	root.Append(NewStanza("security",
		NewStanza("policies",
			NewBlock("from-zone", "trust to-zone untrust",
				NewBlock("policy", "p1",
					NewStanza("match", NewSet("destination-address", "a", "b")),
					NewStanza("then", NewLeaf("permit", "", "")),
				),
				NewBlock("policy", "p2"),
			),
		),
	))
	return root
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleTree()
	c := orig.Clone()
	if !c.Equal(orig) {
		t.Fatal("clone not equal to original")
	}

	set := c.Find(MustParsePath("security.policies.from-zone[trust to-zone untrust].policy[p1].match.destination-address"))
	set.Values[0] = "changed"
	c.Find(MustParsePath("security.policies")).Append(NewStanza("global"))

	origSet := orig.Find(MustParsePath("security.policies.from-zone[trust to-zone untrust].policy[p1].match.destination-address"))
	if origSet.Values[0] != "a" {
		t.Error("clone shares Values storage with original")
	}
	if orig.Find(MustParsePath("security.policies.global")) != nil {
		t.Error("clone shares Children storage with original")
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *Node)
		equal  bool
	}{
		{"identical", func(n *Node) {}, true},
		{"position ignored", func(n *Node) { n.Children[0].Line = 42 }, true},
		{"value differs", func(n *Node) {
			n.Find(MustParsePath("security.policies.from-zone[trust to-zone untrust].policy[p1].match.destination-address")).Values[1] = "c"
		}, false},
		{"order differs", func(n *Node) {
			zp := n.Find(MustParsePath("security.policies.from-zone[trust to-zone untrust]"))
			zp.Children[0], zp.Children[1] = zp.Children[1], zp.Children[0]
		}, false},
		{"verb differs", func(n *Node) { n.Children[0].Verb = VerbReplace }, false},
		{"kind differs", func(n *Node) { n.Children[0].Kind = KindKeyedBlock }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := sampleTree()
			b := sampleTree()
			tt.mutate(b)
			if got := a.Equal(b); got != tt.equal {
				t.Errorf("Equal = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestWalkOrder(t *testing.T) {
	var seen []string
	sampleTree().Walk(nil, func(p Path, n *Node) bool {
		if n.Keyword == "policy" {
			seen = append(seen, p.String())
			return false
		}
		return true
	})
	want := []string{
		"security.policies.from-zone[trust to-zone untrust].policy[p1]",
		"security.policies.from-zone[trust to-zone untrust].policy[p2]",
	}
	if len(seen) != len(want) {
		t.Fatalf("visited %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("visit %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestRemove(t *testing.T) {
	zp := sampleTree().Find(MustParsePath("security.policies.from-zone[trust to-zone untrust]"))
	if !zp.Remove(Ident{"policy", "p1"}) {
		t.Fatal("Remove returned false for existing child")
	}
	if zp.Remove(Ident{"policy", "p1"}) {
		t.Error("second Remove returned true")
	}
	if len(zp.Children) != 1 || zp.Children[0].Name != "p2" {
		t.Errorf("children after remove: %+v", zp.Children)
	}
}

func TestIndex(t *testing.T) {
	zp := sampleTree().Find(MustParsePath("security.policies.from-zone[trust to-zone untrust]"))
	zp.Append(NewBlock("policy", "p1"))
	idx := zp.Index()
	if idx[Ident{"policy", "p1"}] != 0 {
		t.Errorf("index of first p1 = %d", idx[Ident{"policy", "p1"}])
	}
	if idx[Ident{"policy", "p2"}] != 1 {
		t.Errorf("index of p2 = %d", idx[Ident{"policy", "p2"}])
	}
}

func TestKindCompatible(t *testing.T) {
	if !KindStanza.Compatible(KindKeyedBlock) {
		t.Error("stanza and keyed block should be compatible")
	}
	if !KindLeafSet.Compatible(KindLeafScalar) {
		t.Error("leaf kinds should be compatible")
	}
	if KindLeafScalar.Compatible(KindStanza) {
		t.Error("leaf and stanza should conflict")
	}
}
