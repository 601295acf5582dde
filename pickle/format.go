// Package pickle reads and writes Corvus symbol pickles: CBOR artifacts
// (conventionally .cvp files) carrying a compiled package tree's classes,
// modules, and terms.
//
// A pickle is a flat symbol table plus a name table, sealed with a content
// hash. Reading one installs lazy symbols: classes and modules carry
// completers that materialize their members on first read, so loading a
// pickle costs little until the symbols are actually used. References to
// definitions the pickle does not contain are recorded by full name and
// resolved against the reading context's symbol tree; unresolvable ones
// degrade to stub symbols with a diagnostic.
package pickle

// Tool identifies the producer in the file header.
const Tool = "corvus"

// FormatVersion is the highest pickle format this package reads and the
// version it writes.
const FormatVersion = 1

// FileExt is the conventional pickle file extension.
const FileExt = ".cvp"

// SymRef indexes File.Syms, 1-based. 0 means "no symbol"; in Owner fields
// it stands for the reading context's root package.
type SymRef uint32

// NameRef indexes File.Names, 1-based. 0 means "no name".
type NameRef uint32

// SymKind discriminates symbol entries.
type SymKind uint8

const (
	// KindPackage is a package along the pickled tree's owner spine. On
	// read it is reused when the tree already has it.
	KindPackage SymKind = iota + 1
	// KindClass is a class with parents and declarations.
	KindClass
	// KindTerm is a term member: a value, method, or type parameter.
	KindTerm
	// KindModule is the value half of a module; Link names its class half.
	KindModule
	// KindModuleClass is the class half of a module; Link names its value.
	KindModuleClass
	// KindExternal is a reference to a definition outside this pickle,
	// recorded as a '.'-separated full name.
	KindExternal
)

// TypeKind discriminates type encodings.
type TypeKind uint8

const (
	// TypeSymRef references a class or term symbol. The reference prefix
	// is not recorded; readers rebuild the natural one from the symbol's
	// owner.
	TypeSymRef TypeKind = iota + 1
	// TypeThis is a class's self type; Sym names the class.
	TypeThis
	// TypeAnd is an intersection; Left and Right are its branches.
	TypeAnd
	// TypeOr is a union; Left and Right are its branches.
	TypeOr
	// TypeMethod is a method info with Params and Res.
	TypeMethod
	// TypeBounds is a type-parameter info; Left is the lower bound and
	// Right the upper, either may be absent.
	TypeBounds
	// TypeErr preserves the info of a symbol that had already failed to
	// resolve when the pickle was written.
	TypeErr
)

// File is a pickled symbol world. Hash is the SHA-256 of the file's
// canonical encoding with the hash field zeroed; Seal computes it and
// Verify checks it.
type File struct {
	Tool    string     `cbor:"1,keyasint"`
	Version uint32     `cbor:"2,keyasint"`
	Names   []string   `cbor:"3,keyasint,omitempty"`
	Syms    []SymEntry `cbor:"4,keyasint,omitempty"`
	Roots   []SymRef   `cbor:"5,keyasint,omitempty"`
	Hash    [32]byte   `cbor:"6,keyasint"`
}

// SymEntry describes one symbol. Which fields are meaningful depends on
// Kind; unused fields are omitted from the encoding.
//
// For KindExternal, Name holds the '.'-joined full name and IsClass picks
// the class-sided match. For KindModule, Flags are the value half's and
// the class half's details live in the linked entry. Decls lists member
// entries in declaration order; members record the class as their Owner
// in turn, which is how a member reached before its class completes finds
// its way back.
type SymEntry struct {
	Kind    SymKind    `cbor:"1,keyasint"`
	Name    NameRef    `cbor:"2,keyasint,omitempty"`
	Owner   SymRef     `cbor:"3,keyasint,omitempty"`
	Flags   uint64     `cbor:"4,keyasint,omitempty"`
	Within  SymRef     `cbor:"5,keyasint,omitempty"`
	Info    *TypeEnc   `cbor:"6,keyasint,omitempty"`
	Parents []TypeEnc  `cbor:"7,keyasint,omitempty"`
	Decls   []SymRef   `cbor:"8,keyasint,omitempty"`
	Annots  []AnnotEnc `cbor:"9,keyasint,omitempty"`
	Link    SymRef     `cbor:"10,keyasint,omitempty"`
	IsClass bool       `cbor:"11,keyasint,omitempty"`
}

// TypeEnc encodes one type. Left and Right carry the branches of
// intersections and unions and the bounds of TypeBounds; Params and Res
// carry method shapes; Msg carries error-type text.
type TypeEnc struct {
	Kind   TypeKind  `cbor:"1,keyasint"`
	Sym    SymRef    `cbor:"2,keyasint,omitempty"`
	Left   *TypeEnc  `cbor:"3,keyasint,omitempty"`
	Right  *TypeEnc  `cbor:"4,keyasint,omitempty"`
	Params []TypeEnc `cbor:"5,keyasint,omitempty"`
	Res    *TypeEnc  `cbor:"6,keyasint,omitempty"`
	Msg    string    `cbor:"7,keyasint,omitempty"`
}

// AnnotEnc encodes one annotation.
type AnnotEnc struct {
	Cls        SymRef   `cbor:"1,keyasint"`
	Args       []string `cbor:"2,keyasint,omitempty"`
	ClassLocal bool     `cbor:"3,keyasint,omitempty"`
}
