package dscp

import (
	"errors"
	"testing"
)

func TestClassRoundTrip(t *testing.T) {
	for _, name := range Classes() {
		code, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if got := Name(code); got != name {
			t.Errorf("Name(Lookup(%q)) = %q", name, got)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		token string
		want  uint8
	}{
		{"be", 0},
		{"cs0", 0},
		{"AF41", 34},
		{"af42", 36},
		{"ef", 46},
		{"cs7", 56},
		{"34", 34},
		{"0", 0},
		{"63", 63},
		{"b111000", 56},
		{"b000101", 5},
	}
	for _, tt := range tests {
		got, err := Lookup(tt.token)
		if err != nil {
			t.Errorf("Lookup(%q): %v", tt.token, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Lookup(%q) = %d, want %d", tt.token, got, tt.want)
		}
	}
}

func TestLookupInvalid(t *testing.T) {
	for _, token := range []string{"64", "-1", "af44", "b12", "b1111111", "bogus", ""} {
		_, err := Lookup(token)
		var de *Error
		if !errors.As(err, &de) {
			t.Errorf("Lookup(%q): expected *Error, got %v", token, err)
		}
	}
}

func TestExpandRange(t *testing.T) {
	s, err := Expand("af41-af42")
	if err != nil {
		t.Fatal(err)
	}
	if s != Of(34, 35, 36) {
		t.Errorf("af41-af42 = %s", s)
	}

	if _, err := Expand("20-10"); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := Expand("10-99"); err == nil {
		t.Error("expected error for out of range end")
	}
}

func TestParseListAndSubtract(t *testing.T) {
	match, err := ParseList([]string{"af41", "34", "af41-af42", "5"})
	if err != nil {
		t.Fatal(err)
	}
	except, err := ParseList([]string{"be", "35"})
	if err != nil {
		t.Fatal(err)
	}
	eff := match.Minus(except)
	want := Of(5, 34, 36)
	if eff != want {
		t.Errorf("effective = %s, want %s", eff, want)
	}
	if eff.Len() != 3 {
		t.Errorf("Len = %d", eff.Len())
	}
}

func TestSetOps(t *testing.T) {
	s := Of(0, 63, 200)
	if !s.Contains(0) || !s.Contains(63) || s.Contains(200) {
		t.Errorf("Of ignored bounds: %s", s)
	}
	if got := s.Codepoints(); len(got) != 2 || got[0] != 0 || got[1] != 63 {
		t.Errorf("Codepoints = %v", got)
	}
	if All.Len() != 64 {
		t.Errorf("All.Len = %d", All.Len())
	}
	if !Of(1).Minus(Of(1)).Empty() {
		t.Error("Minus self not empty")
	}
	if got := Of(0, 34, 7).String(); got != "{be 7 af41}" {
		t.Errorf("String = %q", got)
	}
}
