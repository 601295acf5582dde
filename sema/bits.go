package sema

import "encoding/binary"

// ---------------------------------------------------------------------------
// Superclass bit sets
// ---------------------------------------------------------------------------

// ClassBits is an immutable set of symbol ids, packed one bit per id.
// Every class caches one describing its full ancestry, which turns
// "is C a subclass of B" into a single bit probe.
type ClassBits struct {
	words []uint64
}

// Contains reports whether id is in the set.
func (b *ClassBits) Contains(id SymID) bool {
	w := int(id >> 6)
	if w >= len(b.words) {
		return false
	}
	return b.words[w]&(1<<(id&63)) != 0
}

// Count returns the number of ids in the set.
func (b *ClassBits) Count() int {
	n := 0
	for _, w := range b.words {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}

// BitsTable interns ClassBits by content, so classes with the same
// ancestry share one instance and equal sets compare with ==.
type BitsTable struct {
	table map[string]*ClassBits
}

// NewBitsTable creates an empty interning table.
func NewBitsTable() *BitsTable {
	return &BitsTable{table: make(map[string]*ClassBits)}
}

// Intern returns the canonical ClassBits for the given words. Trailing
// zero words are not significant.
func (t *BitsTable) Intern(words []uint64) *ClassBits {
	n := len(words)
	for n > 0 && words[n-1] == 0 {
		n--
	}
	key := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(key[i*8:], words[i])
	}
	if b, ok := t.table[string(key)]; ok {
		return b
	}
	b := &ClassBits{words: append([]uint64(nil), words[:n]...)}
	t.table[string(key)] = b
	return b
}

// Len returns the number of distinct interned sets.
func (t *BitsTable) Len() int { return len(t.table) }

// ---------------------------------------------------------------------------
// Mutable id sets
// ---------------------------------------------------------------------------

// idSet is the mutable builder behind ClassBits. The base-class traversal
// uses two of them to tell "already linearized" from "currently on the
// walk stack".
type idSet struct {
	words []uint64
}

func (s *idSet) add(id SymID) {
	w := int(id >> 6)
	for w >= len(s.words) {
		s.words = append(s.words, 0)
	}
	s.words[w] |= 1 << (id & 63)
}

func (s *idSet) remove(id SymID) {
	w := int(id >> 6)
	if w < len(s.words) {
		s.words[w] &^= 1 << (id & 63)
	}
}

func (s *idSet) has(id SymID) bool {
	w := int(id >> 6)
	return w < len(s.words) && s.words[w]&(1<<(id&63)) != 0
}
