package sema

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// SymID is a dense per-context symbol identifier. IDs index the interned
// superclass bit sets, so they must stay small and contiguous; a Context
// hands them out starting at 1.
type SymID uint32

// NoSymID is the id of NoSymbol.
const NoSymID SymID = 0

// Symbol is the stable identity of a definition. Everything mutable or
// lazily computed about it lives in its denotation; the symbol itself is
// just an id plus a pointer, safe to hold across completion.
type Symbol struct {
	id    SymID
	denot *SymDenotation
}

// NoSymbol is the absent symbol. It exists so lookups can return a
// non-nil sentinel whose queries all answer "nothing" instead of panicking.
var NoSymbol = newNoSymbol()

func newNoSymbol() *Symbol {
	sym := &Symbol{id: NoSymID}
	sym.denot = &SymDenotation{
		symbol:        sym,
		name:          NoName,
		state:         stateReady,
		info:          NoType,
		privateWithin: sym,
	}
	sym.denot.owner = sym
	return sym
}

// ID returns the symbol's dense identifier.
func (s *Symbol) ID() SymID { return s.id }

// Exists reports whether this is a real symbol.
func (s *Symbol) Exists() bool { return s != nil && s.id != NoSymID }

// Denot returns the symbol's denotation.
func (s *Symbol) Denot() *SymDenotation { return s.denot }

// Name returns the symbol's name. Never forces completion.
func (s *Symbol) Name() Name { return s.denot.name }

// Owner returns the symbol's owning symbol. Never forces completion.
// NoSymbol owns itself, which keeps owner-chain walks total.
func (s *Symbol) Owner() *Symbol { return s.denot.owner }

// Pos returns the symbol's source position, if known.
func (s *Symbol) Pos() SrcPos { return s.denot.pos }

// IsClass reports whether the symbol denotes a class. The class tag is
// fixed at creation, so this never forces completion.
func (s *Symbol) IsClass() bool { return s.denot.classData != nil }

// IsTerm reports whether the symbol denotes a term-level definition
// (a value, method, or module value).
func (s *Symbol) IsTerm() bool { return s.Exists() && s.denot.classData == nil }

// Class returns the symbol's class denotation, or nil for non-classes.
func (s *Symbol) Class() *ClassDenotation { return s.denot.classData }

// IsStatic reports whether the symbol is a package- or module-level
// definition reachable without an instance.
func (s *Symbol) IsStatic(ctx *Context) bool {
	if !s.Exists() {
		return false
	}
	return s.denot.Flags(ctx).Is(Static) || s.Owner().isStaticOwner(ctx)
}

func (s *Symbol) isStaticOwner(ctx *Context) bool {
	if !s.Exists() {
		return false
	}
	fs := s.denot.Flags(ctx)
	return fs.Is(Package) || fs.Is(ModuleClass) && s.IsStatic(ctx)
}

// IsContainedIn reports whether the symbol sits inside boundary on the
// owner chain. A symbol is contained in itself. Once the walk reaches a
// package, only package boundaries can still match.
func (s *Symbol) IsContainedIn(ctx *Context, boundary *Symbol) bool {
	cur := s
	for {
		if cur == boundary {
			return true
		}
		if !cur.Exists() {
			return false
		}
		if cur.denot.Flags(ctx).Is(Package) && !boundary.denot.Flags(ctx).Is(Package) {
			return false
		}
		cur = cur.Owner()
	}
}

// DerivesFrom reports whether the symbol is a class deriving from base.
func (s *Symbol) DerivesFrom(ctx *Context, base *Symbol) bool {
	cd := s.Class()
	return cd != nil && cd.IsNonBottomSubClass(ctx, base)
}

// EnclosingClass returns the closest enclosing class symbol, including
// the symbol itself.
func (s *Symbol) EnclosingClass(ctx *Context) *Symbol {
	for cur := s; cur.Exists(); cur = cur.Owner() {
		if cur.IsClass() {
			return cur
		}
	}
	return NoSymbol
}
