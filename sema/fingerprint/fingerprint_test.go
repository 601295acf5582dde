package fingerprint

import (
	"fmt"
	"testing"
)

func TestIncludeContains(t *testing.T) {
	var fp FingerPrint

	names := []string{"foo", "bar", "at:put:", "<init>", "", "x"}
	for _, name := range names {
		fp.Include(HashString(name))
	}

	// No false negatives: every included name must test positive.
	for _, name := range names {
		if !fp.Contains(HashString(name)) {
			t.Errorf("Contains(%q) = false after Include", name)
		}
	}
}

func TestNoFalseNegativesBulk(t *testing.T) {
	var fp FingerPrint
	for i := 0; i < 10000; i++ {
		fp.Include(HashString(fmt.Sprintf("member%d", i)))
	}
	for i := 0; i < 10000; i++ {
		if !fp.Contains(HashString(fmt.Sprintf("member%d", i))) {
			t.Fatalf("Contains(member%d) = false after Include", i)
		}
	}
}

func TestEmptyExcludes(t *testing.T) {
	var fp FingerPrint
	if !fp.IsEmpty() {
		t.Error("zero FingerPrint should be empty")
	}
	if fp.Contains(HashString("anything")) {
		t.Error("empty FingerPrint should contain nothing")
	}
}

func TestIncludeAll(t *testing.T) {
	var a, b FingerPrint
	a.Include(HashString("left"))
	b.Include(HashString("right"))

	a.IncludeAll(&b)

	if !a.Contains(HashString("left")) {
		t.Error("union lost its own entry")
	}
	if !a.Contains(HashString("right")) {
		t.Error("union missing the other side's entry")
	}
	// b is unchanged.
	if b.Contains(HashString("left")) && b.Contains(HashString("right")) {
		// "left" may collide with "right"'s bit; only flag the case where
		// both are set yet b was never given "left" explicitly.
		if HashString("left")&mask != HashString("right")&mask {
			t.Error("IncludeAll mutated its argument")
		}
	}
}

func TestWordBoundaryBits(t *testing.T) {
	// Drive specific bit positions, including word boundaries.
	var fp FingerPrint
	for _, bit := range []uint64{0, 1, 63, 64, 127, 128, 511} {
		fp.Include(bit) // hash == bit index for hashes < NumBits
		if !fp.Contains(bit) {
			t.Errorf("bit %d not set after Include", bit)
		}
	}
	if fp.Contains(2) {
		t.Error("bit 2 set without Include")
	}
}

func TestHashStringStable(t *testing.T) {
	// FNV-1a of "a" is a fixed, well-known value; guard against accidental
	// changes to the hash function, which would invalidate pickled data.
	const fnvA uint64 = 0xaf63dc4c8601ec8c
	if h := HashString("a"); h != fnvA {
		t.Errorf("HashString(a) = %#x, want %#x", h, fnvA)
	}
	if HashString("foo") == HashString("bar") {
		t.Error("distinct names should not trivially collide")
	}
}
