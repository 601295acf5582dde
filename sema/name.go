package sema

import "github.com/chazu/corvus/sema/fingerprint"

// ---------------------------------------------------------------------------
// NameTable: Interned identifiers
// ---------------------------------------------------------------------------

// Name is an interned identifier. Names are compared by id; the NameTable
// that interned them recovers the spelling and the precomputed hash.
//
// The zero Name (NoName) is reserved and never names a declaration.
type Name uint32

// NoName marks the absence of a name.
const NoName Name = 0

// IsValid reports whether the name refers to an interned identifier.
func (n Name) IsValid() bool { return n != NoName }

// NameTable interns identifier spellings to numeric ids.
//
// Interning buys fast equality and map keys, and lets the table compute each
// name's fingerprint hash exactly once, at intern time. The table is
// append-only and owned by a Context; the engine is single-threaded, so no
// locking is done here.
type NameTable struct {
	byName map[string]Name
	byID   []string // id -> spelling; index 0 is the reserved empty entry
	hashes []uint64 // id -> fingerprint hash, parallel to byID
}

// NewNameTable creates a new name table with only the reserved NoName entry.
func NewNameTable() *NameTable {
	t := &NameTable{
		byName: make(map[string]Name),
		byID:   make([]string, 1, 256),
		hashes: make([]uint64, 1, 256),
	}
	return t
}

// Intern returns the id for a spelling, creating a new entry if needed.
// Interning the empty string returns NoName.
func (t *NameTable) Intern(s string) Name {
	if s == "" {
		return NoName
	}
	if id, ok := t.byName[s]; ok {
		return id
	}
	id := Name(len(t.byID))
	t.byName[s] = id
	t.byID = append(t.byID, s)
	t.hashes = append(t.hashes, fingerprint.HashString(s))
	return id
}

// Lookup returns the id for a spelling without creating a new entry.
func (t *NameTable) Lookup(s string) (Name, bool) {
	id, ok := t.byName[s]
	return id, ok
}

// Str returns the spelling for an id, or "<no name>" for NoName and out-of-range ids.
func (t *NameTable) Str(n Name) string {
	if n == NoName || int(n) >= len(t.byID) {
		return "<no name>"
	}
	return t.byID[n]
}

// Hash returns the fingerprint hash for an id, computed when it was interned.
func (t *NameTable) Hash(n Name) uint64 {
	if int(n) >= len(t.hashes) {
		return 0
	}
	return t.hashes[n]
}

// Len returns the number of interned names, excluding the reserved entry.
func (t *NameTable) Len() int {
	return len(t.byID) - 1
}

// ---------------------------------------------------------------------------
// Standard names
// ---------------------------------------------------------------------------

// StdNames holds names the engine treats specially, interned once per table.
type StdNames struct {
	Root         Name // "<root>": the root symbol
	EmptyPackage Name // "<empty>": the top-level package of unplaced symbols
	Init         Name // "<init>": ordinary primary constructor
	TraitInit    Name // "<trait-init>": trait initializer
	PackageObj   Name // "package": package object wrapper
	Core         Name // "core": the package holding the standard classes
	Any          Name
	Nothing      Name
	Null         Name
}

func newStdNames(t *NameTable) StdNames {
	return StdNames{
		Root:         t.Intern("<root>"),
		EmptyPackage: t.Intern("<empty>"),
		Init:         t.Intern("<init>"),
		TraitInit:    t.Intern("<trait-init>"),
		PackageObj:   t.Intern("package"),
		Core:         t.Intern("core"),
		Any:          t.Intern("Any"),
		Nothing:      t.Intern("Nothing"),
		Null:         t.Intern("Null"),
	}
}
