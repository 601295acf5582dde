package sema

// ---------------------------------------------------------------------------
// Type representation
// ---------------------------------------------------------------------------

// Type is the minimal type representation the denotation engine works
// against. The full Corvus type system (inference, subtyping beyond class
// derivation) lives above this layer; the engine only needs the shapes it
// projects base types through.
//
// Types are compared by pointer identity. The engine's caches key on the
// instances callers hand in, so callers that want cache hits must reuse
// instances; the memoized ThisType and TypeConstructor accessors on
// ClassDenotation exist for exactly that reason.
type Type interface {
	// Exists reports whether this is a real type. Only NoType answers false.
	Exists() bool
}

// TypeProxy is a type that stands for another type and can be unwrapped.
type TypeProxy interface {
	Type
	// Underlying returns the type this proxy stands for. May force
	// completion of the symbols involved.
	Underlying(ctx *Context) Type
}

// ---------------------------------------------------------------------------
// Ground types
// ---------------------------------------------------------------------------

type noType struct{}

func (*noType) Exists() bool { return false }

// NoType marks the absence of a type: a failed base-type projection, an
// uninitialized field. Never a valid member info.
var NoType Type = (*noType)(nil)

type noPrefix struct{}

func (*noPrefix) Exists() bool { return true }

// NoPrefix is the prefix of symbols that are not selected from anything:
// locals, parameters, and roots. Accessibility treats a NoPrefix selection
// as trivially allowed.
var NoPrefix Type = &noPrefix{}

// ErrType is the info of symbols that failed to resolve. It exists (so
// dependents keep going) but answers nothing useful.
type ErrType struct {
	Msg string
}

func (*ErrType) Exists() bool { return true }

// NewErrType creates an error type carrying a human-readable reason.
func NewErrType(msg string) *ErrType { return &ErrType{Msg: msg} }

// ---------------------------------------------------------------------------
// References and proxies
// ---------------------------------------------------------------------------

// TypeRef is a reference to a symbol seen through a prefix type.
type TypeRef struct {
	Prefix Type
	Sym    *Symbol
}

func (*TypeRef) Exists() bool { return true }

// Underlying unwraps to the referenced symbol's info.
func (t *TypeRef) Underlying(ctx *Context) Type {
	return t.Sym.Denot().Info(ctx)
}

// ThisType is the type of a class's `this`.
type ThisType struct {
	Cls *Symbol
}

func (*ThisType) Exists() bool { return true }

// Underlying unwraps to the class's info.
func (t *ThisType) Underlying(ctx *Context) Type {
	return t.Cls.Denot().Info(ctx)
}

// ---------------------------------------------------------------------------
// Composite types
// ---------------------------------------------------------------------------

// AndType is an intersection of two types.
type AndType struct {
	Left, Right Type
}

func (*AndType) Exists() bool { return true }

// OrType is a union of two types.
type OrType struct {
	Left, Right Type
}

func (*OrType) Exists() bool { return true }

// Glb returns the greatest lower bound of two types. NoType is the neutral
// element; equal inputs collapse.
func Glb(a, b Type) Type {
	switch {
	case !a.Exists():
		return b
	case !b.Exists():
		return a
	case a == b:
		return a
	default:
		return &AndType{Left: a, Right: b}
	}
}

// Lub returns the least upper bound of two types. A missing side makes the
// whole bound missing: a union only has a base type if both branches do.
func Lub(a, b Type) Type {
	switch {
	case !a.Exists() || !b.Exists():
		return NoType
	case a == b:
		return a
	default:
		return &OrType{Left: a, Right: b}
	}
}

// ---------------------------------------------------------------------------
// Class info
// ---------------------------------------------------------------------------

// ClassInfo is the info of a completed class: where it sits, what it
// extends, and what it declares.
type ClassInfo struct {
	Prefix       Type    // the type the class is selected from
	Cls          *Symbol // the class this info describes
	ClassParents []Type  // declared parents, in declaration order
	Decls        *Scope  // declared members, in declaration order
}

func (*ClassInfo) Exists() bool { return true }

// ---------------------------------------------------------------------------
// Member infos
// ---------------------------------------------------------------------------

// MethodType is the info of a method member.
type MethodType struct {
	Params []Type
	Result Type
}

func (*MethodType) Exists() bool { return true }

// TypeBounds is the info of a type-parameter or abstract type member.
type TypeBounds struct {
	Lo, Hi Type
}

func (*TypeBounds) Exists() bool { return true }

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

// Signature is the erased shape of a method: the class names of its
// parameter types, in order. Two members override each other only if their
// names and signatures match.
type Signature []Name

// NotAMethod is the signature of non-method members.
var NotAMethod Signature = nil

// Sig computes the signature of a method type: each parameter erased to
// the name of the class it derives from, or NoName when that cannot be
// determined.
func (mt *MethodType) Sig(ctx *Context) Signature {
	sig := make(Signature, len(mt.Params))
	for i, p := range mt.Params {
		if cls := ClassSymOf(ctx, p); cls.Exists() {
			sig[i] = cls.Name()
		}
	}
	return sig
}

// SigOf returns the signature of an arbitrary member info.
func SigOf(ctx *Context, info Type) Signature {
	if mt, ok := info.(*MethodType); ok {
		return mt.Sig(ctx)
	}
	return NotAMethod
}

// Matches reports whether two signatures are the same shape.
func (s Signature) Matches(other Signature) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Structural queries
// ---------------------------------------------------------------------------

// ClassSymOf returns the class symbol a type denotes, or NoSymbol.
// Intersections and unions denote no single class.
func ClassSymOf(ctx *Context, tp Type) *Symbol {
	switch t := tp.(type) {
	case *TypeRef:
		if t.Sym.IsClass() {
			return t.Sym
		}
		if u := t.Underlying(ctx); u != tp {
			return ClassSymOf(ctx, u)
		}
		return NoSymbol
	case *ThisType:
		return t.Cls
	case *ClassInfo:
		return t.Cls
	default:
		return NoSymbol
	}
}

// DerivesFrom reports whether tp's class derives from cls, decomposing
// intersections (either side suffices) and unions (both sides must).
func DerivesFrom(ctx *Context, tp Type, cls *Symbol) bool {
	switch t := tp.(type) {
	case *AndType:
		return DerivesFrom(ctx, t.Left, cls) || DerivesFrom(ctx, t.Right, cls)
	case *OrType:
		return DerivesFrom(ctx, t.Left, cls) && DerivesFrom(ctx, t.Right, cls)
	case *ClassInfo:
		if cd := t.Cls.Class(); cd != nil {
			return cd.IsNonBottomSubClass(ctx, cls)
		}
		return false
	case *TypeRef:
		if cd := t.Sym.Class(); cd != nil {
			return cd.IsNonBottomSubClass(ctx, cls)
		}
		if u := t.Underlying(ctx); u != tp {
			return DerivesFrom(ctx, u, cls)
		}
		return false
	case *ThisType:
		if cd := t.Cls.Class(); cd != nil {
			return cd.IsNonBottomSubClass(ctx, cls)
		}
		return false
	default:
		return false
	}
}

// cacheableType reports whether a type shape may be used as a base-type
// cache key. Sentinels and error types are not worth an entry.
func cacheableType(tp Type) bool {
	switch tp.(type) {
	case *TypeRef, *ThisType, *AndType, *OrType, *ClassInfo:
		return true
	default:
		return false
	}
}
