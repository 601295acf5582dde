package pickle

import (
	"fmt"
	"strings"

	"github.com/chazu/corvus/sema"
)

// reader materializes symbols from a validated file. Entries are created
// at three moments: packages and package-level definitions during
// Unpickle, type parameters when their class symbol is created, and
// everything else when the owning class's completer runs.
type reader struct {
	file   *File
	source string
	names  []sema.Name    // interned names, parallel to file.Names
	syms   []*sema.Symbol // created symbols, parallel to file.Syms
}

// Unpickle installs a pickle's symbols into the context's tree, anchored
// at the root package. Packages along the pickled spine are reused when
// the tree already has them; everything else comes in lazy, so forcing a
// class runs its unpickling completer and only then materializes its
// members. Returns the pickle's root symbols.
//
// source names the artifact in diagnostics, typically its file path.
func Unpickle(ctx *sema.Context, f *File, source string) ([]*sema.Symbol, error) {
	if err := checkRefs(f); err != nil {
		return nil, err
	}
	r := &reader{
		file:   f,
		source: source,
		names:  make([]sema.Name, len(f.Names)),
		syms:   make([]*sema.Symbol, len(f.Syms)),
	}
	for i, s := range f.Names {
		r.names[i] = ctx.Names().Intern(s)
	}
	for i := range f.Syms {
		e := &f.Syms[i]
		if e.Kind == KindExternal || e.Kind == KindModuleClass {
			// externals resolve on demand; a module class is created
			// together with its value half
			continue
		}
		if r.packageLevel(e) {
			r.symAt(ctx, SymRef(i+1))
		}
	}
	roots := make([]*sema.Symbol, 0, len(f.Roots))
	for _, ref := range f.Roots {
		roots = append(roots, r.symAt(ctx, ref))
	}
	log.Debugf("unpickled %s: %d entries, %d roots", source, len(f.Syms), len(f.Roots))
	return roots, nil
}

// packageLevel reports whether an entry sits directly in a package (or
// the root), and so must be installed eagerly for lookups to find it.
func (r *reader) packageLevel(e *SymEntry) bool {
	if e.Owner == 0 {
		return true
	}
	return r.file.Syms[e.Owner-1].Kind == KindPackage
}

func (r *reader) nameAt(ref NameRef) sema.Name {
	if ref == 0 {
		return sema.NoName
	}
	return r.names[ref-1]
}

// symAt returns the symbol for an entry, creating it if needed. A member
// entry reached before its class completed materializes by forcing the
// class.
func (r *reader) symAt(ctx *sema.Context, ref SymRef) *sema.Symbol {
	if ref == 0 {
		return sema.NoSymbol
	}
	if sym := r.syms[ref-1]; sym != nil {
		return sym
	}
	e := &r.file.Syms[ref-1]
	if e.Kind == KindExternal {
		sym := r.resolveExternal(ctx, e)
		r.syms[ref-1] = sym
		return sym
	}
	owner := r.ownerAt(ctx, e.Owner)
	if sym := r.syms[ref-1]; sym != nil {
		// creating the owner materialized it (a type parameter)
		return sym
	}
	if !owner.Denot().RawFlags().Is(sema.Package) {
		owner.Denot().Info(ctx)
		if sym := r.syms[ref-1]; sym != nil {
			return sym
		}
		// the owner completed without materializing this entry; it can
		// only have come from somewhere other than this pickle
		isClass := e.Kind == KindClass || e.Kind == KindModuleClass
		stub := ctx.NewStubSymbol(owner, r.nameAt(e.Name), isClass, r.source)
		r.syms[ref-1] = stub
		return stub
	}
	return r.create(ctx, ref, e, owner, true)
}

func (r *reader) ownerAt(ctx *sema.Context, ref SymRef) *sema.Symbol {
	if ref == 0 {
		return ctx.Defs().RootPackage
	}
	return r.symAt(ctx, ref)
}

// create materializes an entry under owner. When enter is set the new
// symbol is entered into the owner's scope; member creation leaves that
// to the completer assembling the declaration scope.
func (r *reader) create(ctx *sema.Context, ref SymRef, e *SymEntry, owner *sema.Symbol, enter bool) *sema.Symbol {
	switch e.Kind {
	case KindPackage:
		name := r.nameAt(e.Name)
		if existing := findPackage(ctx, owner, name); existing.Exists() {
			r.syms[ref-1] = existing
			return existing
		}
		pkg := ctx.NewPackageSymbol(owner, name)
		r.syms[ref-1] = pkg
		owner.Class().Enter(ctx, pkg)
		return pkg
	case KindClass:
		sym := r.newClass(ctx, ref, e, owner)
		if enter {
			owner.Class().Enter(ctx, sym)
		}
		return sym
	case KindModule:
		return r.createPair(ctx, ref, e, owner, enter)
	case KindModuleClass:
		r.createPair(ctx, e.Link, &r.file.Syms[e.Link-1], owner, enter)
		return r.syms[ref-1]
	default: // KindTerm
		sym := ctx.NewLazySymbol(owner, r.nameAt(e.Name), sema.FlagSet(e.Flags), &symUnpickler{r: r, idx: ref})
		r.syms[ref-1] = sym
		if enter {
			owner.Class().Enter(ctx, sym)
		}
		return sym
	}
}

// newClass creates a lazy class symbol for an entry. The symbol is cached
// before its type parameters are materialized so the parameter infos can
// reference the class.
func (r *reader) newClass(ctx *sema.Context, ref SymRef, e *SymEntry, owner *sema.Symbol) *sema.Symbol {
	c := &classUnpickler{r: r, idx: ref}
	sym := ctx.NewClassSymbol(owner, r.nameAt(e.Name), sema.FlagSet(e.Flags), c)
	r.syms[ref-1] = sym
	c.pre = r.preScope(ctx, e, sym)
	return sym
}

// createPair materializes a module's value and class halves together.
// valRef names the KindModule entry; both halves are cached, and when
// enter is set both are entered into the owning package.
func (r *reader) createPair(ctx *sema.Context, valRef SymRef, e *SymEntry, owner *sema.Symbol, enter bool) *sema.Symbol {
	clsEntry := &r.file.Syms[e.Link-1]
	c := &classUnpickler{r: r, idx: e.Link}
	mod := ctx.NewLazyModuleSymbol(owner, r.nameAt(e.Name),
		sema.FlagSet(e.Flags), sema.FlagSet(clsEntry.Flags), c)
	cls := mod.Denot().ModuleClass()
	r.syms[valRef-1] = mod
	r.syms[e.Link-1] = cls
	c.pre = r.preScope(ctx, clsEntry, cls)
	if enter {
		owner.Class().Enter(ctx, mod)
		owner.Class().Enter(ctx, cls)
	}
	return mod
}

// newMember materializes a declaration of cls without entering it
// anywhere; the caller is assembling the declaration scope.
func (r *reader) newMember(ctx *sema.Context, ref SymRef, cls *sema.Symbol) *sema.Symbol {
	e := &r.file.Syms[ref-1]
	return r.create(ctx, ref, e, cls, false)
}

// preScope materializes a class's type parameters ahead of completion so
// TypeParams can answer without forcing the class.
func (r *reader) preScope(ctx *sema.Context, e *SymEntry, cls *sema.Symbol) *sema.Scope {
	pre := sema.NewScope()
	for _, dRef := range e.Decls {
		de := &r.file.Syms[dRef-1]
		if !sema.FlagSet(de.Flags).Is(sema.TypeParam) {
			continue
		}
		sym := r.syms[dRef-1]
		if sym == nil {
			sym = r.newMember(ctx, dRef, cls)
		}
		pre.Enter(sym)
	}
	return pre
}

// findPackage looks for an existing package of the given name in owner's
// scope.
func findPackage(ctx *sema.Context, owner *sema.Symbol, name sema.Name) *sema.Symbol {
	for _, s := range owner.Class().Decls(ctx).LookupAll(name) {
		if s.IsClass() && s.Denot().RawFlags().Is(sema.Package) {
			return s
		}
	}
	return sema.NoSymbol
}

// ---------------------------------------------------------------------------
// External references
// ---------------------------------------------------------------------------

// resolveExternal finds the definition an external entry names, walking
// the context's tree from the root package. Definitions missing from the
// tree degrade: packages come into being on demand, anything else becomes
// a stub entered where the definition should have been.
func (r *reader) resolveExternal(ctx *sema.Context, e *SymEntry) *sema.Symbol {
	full := ctx.NameStr(r.nameAt(e.Name))
	segs := strings.Split(full, ".")
	cur := ctx.Defs().RootPackage
	for i, seg := range segs {
		last := i == len(segs)-1
		name := ctx.Names().Intern(seg)
		wantClass := !last || e.IsClass
		next := findIn(ctx, cur, name, wantClass)
		if !next.Exists() && i == 0 {
			// definitions outside any named package pickle with bare names
			next = findIn(ctx, ctx.Defs().EmptyPackage, name, wantClass)
			if next.Exists() && last {
				return next
			}
		}
		if !next.Exists() {
			if !last && cur.Denot().RawFlags().Is(sema.Package) {
				pkg := ctx.NewPackageSymbol(cur, name)
				cur.Class().Enter(ctx, pkg)
				cur = pkg
				continue
			}
			log.Debugf("stubbing %s (missing %s) referenced from %s", full, seg, r.source)
			stub := ctx.NewStubSymbol(cur, name, wantClass, r.source)
			if !cur.Denot().RawFlags().Is(sema.Frozen) {
				cur.Class().Enter(ctx, stub)
			}
			if last {
				return stub
			}
			cur = stub
			continue
		}
		cur = next
	}
	return cur
}

// findIn looks a name up in a package's scope or a class's members,
// falling through to a package object when a package misses. Full names
// skip package objects, so that is where such members reappear.
func findIn(ctx *sema.Context, owner *sema.Symbol, name sema.Name, wantClass bool) *sema.Symbol {
	if owner.Class() == nil {
		return sema.NoSymbol
	}
	if owner.Denot().RawFlags().Is(sema.Package) {
		for _, s := range owner.Class().Decls(ctx).LookupAll(name) {
			if s.IsClass() == wantClass {
				return s
			}
		}
		if po := owner.Class().Decls(ctx).Lookup(ctx.Std().PackageObj); po != nil {
			if mc := po.Denot().ModuleClass(); mc.Exists() {
				return pickMember(ctx, mc, name, wantClass)
			}
			if po.IsClass() {
				return pickMember(ctx, po, name, wantClass)
			}
		}
		return sema.NoSymbol
	}
	return pickMember(ctx, owner, name, wantClass)
}

func pickMember(ctx *sema.Context, cls *sema.Symbol, name sema.Name, wantClass bool) *sema.Symbol {
	for _, s := range cls.Class().MembersNamed(ctx, name) {
		if s.IsClass() == wantClass {
			return s
		}
	}
	return sema.NoSymbol
}

// ---------------------------------------------------------------------------
// Completers
// ---------------------------------------------------------------------------

// classUnpickler completes a pickled class. Parents decode eagerly since
// the hierarchy is what forcing a class is for; members materialize as
// lazy symbols whose own completers decode their details.
type classUnpickler struct {
	r   *reader
	idx SymRef
	pre *sema.Scope
}

// DeclScope exposes the type parameters without forcing the class.
func (c *classUnpickler) DeclScope() *sema.Scope { return c.pre }

func (c *classUnpickler) Complete(ctx *sema.Context, d *sema.SymDenotation) {
	e := &c.r.file.Syms[c.idx-1]
	cls := d.Symbol()
	decls := sema.NewScope()
	for _, dRef := range e.Decls {
		sym := c.r.syms[dRef-1]
		if sym == nil {
			sym = c.r.newMember(ctx, dRef, cls)
		}
		decls.Enter(sym)
	}
	parents := make([]sema.Type, 0, len(e.Parents))
	for i := range e.Parents {
		parents = append(parents, c.r.decodeType(ctx, &e.Parents[i]))
	}
	d.SetInfo(&sema.ClassInfo{
		Prefix:       naturalPrefix(ctx, d.Owner()),
		Cls:          cls,
		ClassParents: parents,
		Decls:        decls,
	})
	c.r.applyCommon(ctx, e, d)
	log.Debugf("completed pickled class %s", ctx.SymFullName(cls))
}

// symUnpickler completes a pickled term member.
type symUnpickler struct {
	r   *reader
	idx SymRef
}

func (c *symUnpickler) Complete(ctx *sema.Context, d *sema.SymDenotation) {
	e := &c.r.file.Syms[c.idx-1]
	d.SetInfo(c.r.decodeType(ctx, e.Info))
	c.r.applyCommon(ctx, e, d)
}

// applyCommon installs the access boundary and annotations shared by all
// entry kinds.
func (r *reader) applyCommon(ctx *sema.Context, e *SymEntry, d *sema.SymDenotation) {
	if e.Within != 0 {
		d.SetPrivateWithin(r.symAt(ctx, e.Within))
	}
	for _, a := range e.Annots {
		d.AddAnnotation(sema.Annotation{
			Cls:        r.symAt(ctx, a.Cls),
			Args:       a.Args,
			ClassLocal: a.ClassLocal,
		})
	}
}

// ---------------------------------------------------------------------------
// Type decoding
// ---------------------------------------------------------------------------

// decodeType rebuilds a type. Reference prefixes are the natural ones:
// class references reuse the memoized type constructor, term references
// are seen through their owner's this-type.
func (r *reader) decodeType(ctx *sema.Context, te *TypeEnc) sema.Type {
	switch te.Kind {
	case TypeSymRef:
		sym := r.symAt(ctx, te.Sym)
		if cd := sym.Class(); cd != nil {
			return cd.TypeConstructor(ctx)
		}
		return &sema.TypeRef{Prefix: naturalPrefix(ctx, sym.Owner()), Sym: sym}
	case TypeThis:
		sym := r.symAt(ctx, te.Sym)
		if cd := sym.Class(); cd != nil {
			return cd.ThisType(ctx)
		}
		return sema.NewErrType("this-type of non-class " + ctx.SymFullName(sym))
	case TypeAnd:
		return &sema.AndType{Left: r.decodeType(ctx, te.Left), Right: r.decodeType(ctx, te.Right)}
	case TypeOr:
		return &sema.OrType{Left: r.decodeType(ctx, te.Left), Right: r.decodeType(ctx, te.Right)}
	case TypeMethod:
		params := make([]sema.Type, len(te.Params))
		for i := range te.Params {
			params[i] = r.decodeType(ctx, &te.Params[i])
		}
		return &sema.MethodType{Params: params, Result: r.decodeType(ctx, te.Res)}
	case TypeBounds:
		tb := &sema.TypeBounds{Lo: sema.NoType, Hi: sema.NoType}
		if te.Left != nil {
			tb.Lo = r.decodeType(ctx, te.Left)
		}
		if te.Right != nil {
			tb.Hi = r.decodeType(ctx, te.Right)
		}
		return tb
	case TypeErr:
		return sema.NewErrType(te.Msg)
	default:
		return sema.NewErrType(fmt.Sprintf("unknown pickled type kind %d", te.Kind))
	}
}

// naturalPrefix is the prefix a definition is seen through: the owner's
// this-type for members of classes and packages, no prefix at the root.
func naturalPrefix(ctx *sema.Context, owner *sema.Symbol) sema.Type {
	if owner.Exists() && owner.IsClass() {
		return owner.Class().ThisType(ctx)
	}
	return sema.NoPrefix
}
