package pickle

import (
	"fmt"

	"github.com/chazu/corvus/sema"
)

// pickler assembles a File from live symbols. Assignment and encoding
// are separate passes so entries can reference each other freely:
// assign reserves a ref for every covered definition, encode fills the
// entries in.
type pickler struct {
	ctx     *sema.Context
	names   []string
	nameRef map[sema.Name]NameRef
	entries []SymEntry
	symOf   []*sema.Symbol // entry -> local symbol; nil for externals
	refs    map[*sema.Symbol]SymRef
	roots   []SymRef
}

// Pickle assembles a pickle holding the given roots and everything they
// declare, transitively. Roots may be classes, module values, or whole
// packages; pickling forces completion of every definition it covers, so
// a cycle among the pickled classes surfaces as an error here. The file
// is unsealed; WriteFile seals it.
func Pickle(ctx *sema.Context, roots ...*sema.Symbol) (*File, error) {
	p := &pickler{
		ctx:     ctx,
		nameRef: make(map[sema.Name]NameRef),
		refs:    make(map[*sema.Symbol]SymRef),
	}
	var err error
	if cyc := sema.CatchCyclic(func() { err = p.run(roots) }); cyc != nil {
		return nil, fmt.Errorf("pickle: %w", cyc)
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("pickled %d roots into %d entries", len(p.roots), len(p.entries))
	return &File{
		Tool:    Tool,
		Version: FormatVersion,
		Names:   p.names,
		Syms:    p.entries,
		Roots:   p.roots,
	}, nil
}

func (p *pickler) run(roots []*sema.Symbol) error {
	for _, root := range roots {
		if !root.Exists() {
			return fmt.Errorf("pickle: cannot pickle a missing symbol")
		}
		p.roots = append(p.roots, p.assign(root))
	}
	// externals reserved during encoding are filled in on creation, so a
	// stable bound over the local entries is enough
	for i, n := 0, len(p.entries); i < n; i++ {
		if sym := p.symOf[i]; sym != nil {
			if err := p.encode(SymRef(i+1), sym); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Assignment pass
// ---------------------------------------------------------------------------

// newEntry reserves an entry slot. sym is recorded for the encoding pass;
// externals pass nil and fill their entry immediately.
func (p *pickler) newEntry(sym *sema.Symbol, kind SymKind) SymRef {
	p.entries = append(p.entries, SymEntry{Kind: kind})
	p.symOf = append(p.symOf, sym)
	ref := SymRef(len(p.entries))
	if sym != nil {
		p.refs[sym] = ref
	}
	return ref
}

// assign reserves entries for sym and everything it declares, forcing
// completion along the way.
func (p *pickler) assign(sym *sema.Symbol) SymRef {
	if ref, ok := p.refs[sym]; ok {
		return ref
	}
	d := sym.Denot()
	p.assignSpine(d.Owner())
	switch {
	case d.RawFlags().Is(sema.Package):
		ref := p.newEntry(sym, KindPackage)
		p.assignDecls(sym)
		return ref
	case sym.IsTerm() && d.RawFlags().Is(sema.Module) && d.ModuleClass().Exists():
		return p.assignModulePair(sym)
	case sym.IsClass() && d.RawFlags().Is(sema.ModuleClass) && d.SourceModule().Exists():
		p.assignModulePair(d.SourceModule())
		return p.refs[sym]
	case sym.IsClass():
		ref := p.newEntry(sym, KindClass)
		p.assignDecls(sym)
		return ref
	default:
		return p.newEntry(sym, KindTerm)
	}
}

// assignModulePair reserves adjacent entries for a module's value and
// class halves and walks the class's declarations.
func (p *pickler) assignModulePair(mod *sema.Symbol) SymRef {
	if ref, ok := p.refs[mod]; ok {
		return ref
	}
	cls := mod.Denot().ModuleClass()
	valRef := p.newEntry(mod, KindModule)
	clsRef := p.newEntry(cls, KindModuleClass)
	p.entries[valRef-1].Link = clsRef
	p.entries[clsRef-1].Link = valRef
	p.assignDecls(cls)
	return valRef
}

func (p *pickler) assignDecls(cls *sema.Symbol) {
	for _, decl := range cls.Class().Decls(p.ctx).All() {
		p.assign(decl)
	}
}

// assignSpine reserves package entries for the owner chain above a
// pickled definition without pickling the packages' other contents, so
// the reader can anchor the tree. A non-package enclosure outside the
// pickled set is recorded by full name instead.
func (p *pickler) assignSpine(owner *sema.Symbol) SymRef {
	if !owner.Exists() || owner == p.ctx.Defs().RootPackage {
		return 0
	}
	if ref, ok := p.refs[owner]; ok {
		return ref
	}
	if !owner.Denot().RawFlags().Is(sema.Package) {
		return p.external(owner)
	}
	p.assignSpine(owner.Owner())
	return p.newEntry(owner, KindPackage)
}

// external reserves a reference entry for a definition outside the
// pickled set, keyed by its '.'-joined full name.
func (p *pickler) external(sym *sema.Symbol) SymRef {
	ref := p.newEntry(nil, KindExternal)
	p.refs[sym] = ref
	e := &p.entries[ref-1]
	e.Name = p.nameOf(sym.Denot().FullName(p.ctx, '.'))
	e.IsClass = sym.IsClass()
	return ref
}

// ---------------------------------------------------------------------------
// Encoding pass
// ---------------------------------------------------------------------------

func (p *pickler) nameOf(n sema.Name) NameRef {
	if !n.IsValid() {
		return 0
	}
	if ref, ok := p.nameRef[n]; ok {
		return ref
	}
	p.names = append(p.names, p.ctx.NameStr(n))
	ref := NameRef(len(p.names))
	p.nameRef[n] = ref
	return ref
}

// symRefOf returns sym's entry, reserving an external entry when the
// symbol is outside the pickled set.
func (p *pickler) symRefOf(sym *sema.Symbol) SymRef {
	if !sym.Exists() {
		return 0
	}
	if ref, ok := p.refs[sym]; ok {
		return ref
	}
	return p.external(sym)
}

func (p *pickler) ownerRefOf(owner *sema.Symbol) SymRef {
	if !owner.Exists() || owner == p.ctx.Defs().RootPackage {
		return 0
	}
	return p.symRefOf(owner)
}

// encode fills in a reserved entry. It works on a copy and writes back
// by index at the end: reserving external entries along the way grows
// p.entries, which can move the backing array under a held pointer.
func (p *pickler) encode(ref SymRef, sym *sema.Symbol) error {
	d := sym.Denot()
	e := p.entries[ref-1]
	defer func() { p.entries[ref-1] = e }()
	e.Name = p.nameOf(d.Name())
	e.Owner = p.ownerRefOf(d.Owner())
	// Frozen is cache state, not meaning; an unpickled class starts open
	e.Flags = uint64(d.Flags(p.ctx).Without(sema.Frozen))
	if e.Kind == KindPackage || e.Kind == KindModule {
		// packages carry nothing else; a module value re-derives its
		// details from its class half on read
		return nil
	}
	if w := d.PrivateWithin(p.ctx); w.Exists() {
		e.Within = p.symRefOf(w)
	}
	for _, a := range d.Annotations(p.ctx) {
		e.Annots = append(e.Annots, AnnotEnc{
			Cls:        p.symRefOf(a.Cls),
			Args:       a.Args,
			ClassLocal: a.ClassLocal,
		})
	}
	switch e.Kind {
	case KindClass, KindModuleClass:
		info, ok := d.Info(p.ctx).(*sema.ClassInfo)
		if !ok {
			return fmt.Errorf("pickle: class %s has no class info", p.ctx.SymFullName(sym))
		}
		for _, parent := range info.ClassParents {
			te, err := p.encodeType(parent)
			if err != nil {
				return fmt.Errorf("pickle: parent of %s: %w", p.ctx.SymFullName(sym), err)
			}
			e.Parents = append(e.Parents, *te)
		}
		if info.Decls != nil {
			for _, decl := range info.Decls.All() {
				dRef, ok := p.refs[decl]
				if !ok {
					return fmt.Errorf("pickle: %s gained declaration %s mid-pickle",
						p.ctx.SymFullName(sym), p.ctx.SymName(decl))
				}
				e.Decls = append(e.Decls, dRef)
			}
		}
	case KindTerm:
		te, err := p.encodeType(d.Info(p.ctx))
		if err != nil {
			return fmt.Errorf("pickle: info of %s: %w", p.ctx.SymFullName(sym), err)
		}
		e.Info = te
	}
	return nil
}

func (p *pickler) encodeType(tp sema.Type) (*TypeEnc, error) {
	switch t := tp.(type) {
	case *sema.TypeRef:
		return &TypeEnc{Kind: TypeSymRef, Sym: p.symRefOf(t.Sym)}, nil
	case *sema.ThisType:
		return &TypeEnc{Kind: TypeThis, Sym: p.symRefOf(t.Cls)}, nil
	case *sema.AndType:
		return p.encodeComposite(TypeAnd, t.Left, t.Right)
	case *sema.OrType:
		return p.encodeComposite(TypeOr, t.Left, t.Right)
	case *sema.MethodType:
		enc := &TypeEnc{Kind: TypeMethod}
		for _, param := range t.Params {
			pe, err := p.encodeType(param)
			if err != nil {
				return nil, err
			}
			enc.Params = append(enc.Params, *pe)
		}
		res, err := p.encodeType(t.Result)
		if err != nil {
			return nil, err
		}
		enc.Res = res
		return enc, nil
	case *sema.TypeBounds:
		enc := &TypeEnc{Kind: TypeBounds}
		if t.Lo != nil && t.Lo.Exists() {
			lo, err := p.encodeType(t.Lo)
			if err != nil {
				return nil, err
			}
			enc.Left = lo
		}
		if t.Hi != nil && t.Hi.Exists() {
			hi, err := p.encodeType(t.Hi)
			if err != nil {
				return nil, err
			}
			enc.Right = hi
		}
		return enc, nil
	case *sema.ErrType:
		return &TypeEnc{Kind: TypeErr, Msg: t.Msg}, nil
	default:
		return nil, fmt.Errorf("cannot encode %T", tp)
	}
}

func (p *pickler) encodeComposite(kind TypeKind, left, right sema.Type) (*TypeEnc, error) {
	l, err := p.encodeType(left)
	if err != nil {
		return nil, err
	}
	r, err := p.encodeType(right)
	if err != nil {
		return nil, err
	}
	return &TypeEnc{Kind: kind, Left: l, Right: r}, nil
}
