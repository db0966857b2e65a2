package dscp

import (
	"math/bits"
	"strconv"
	"strings"
)

// Set is a set of code points, one bit per value.
type Set uint64

// All contains every code point.
const All Set = ^Set(0)

// Of returns the set holding the given code points. Values above Max are
// ignored.
func Of(codes ...uint8) Set {
	var s Set
	for _, c := range codes {
		s = s.Add(c)
	}
	return s
}

// Range returns the inclusive range [lo, hi].
func Range(lo, hi uint8) Set {
	var s Set
	for c := int(lo); c <= int(hi) && c <= Max; c++ {
		s |= 1 << uint(c)
	}
	return s
}

// Add returns s with code added.
func (s Set) Add(code uint8) Set {
	if code > Max {
		return s
	}
	return s | 1<<code
}

// Contains reports whether code is in s.
func (s Set) Contains(code uint8) bool {
	return code <= Max && s&(1<<code) != 0
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set { return s | o }

// Minus returns s − o.
func (s Set) Minus(o Set) Set { return s &^ o }

// Len returns the number of code points in s.
func (s Set) Len() int { return bits.OnesCount64(uint64(s)) }

// Empty reports whether s has no members.
func (s Set) Empty() bool { return s == 0 }

// Codepoints returns the members in ascending order.
func (s Set) Codepoints() []uint8 {
	out := make([]uint8, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, uint8(bits.TrailingZeros64(v)))
	}
	return out
}

// String renders members by class name where one exists.
func (s Set) String() string {
	parts := make([]string, 0, s.Len())
	for _, c := range s.Codepoints() {
		if n := Name(c); n != "" {
			parts = append(parts, n)
		} else {
			parts = append(parts, strconv.Itoa(int(c)))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}
