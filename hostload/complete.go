package hostload

import (
	"go/types"

	"github.com/chazu/corvus/sema"
)

// classLoader completes a mirrored class from its go/types object.
// Interface embeddings and embedded struct fields become parents, so
// Go's composition surfaces as ordinary ancestry; methods declared
// directly on the type become members, and promoted ones are left to
// member lookup through the parents.
type classLoader struct {
	l   *Loader
	obj *types.TypeName
	pre *sema.Scope
}

// DeclScope exposes the type parameters without forcing the class.
func (c *classLoader) DeclScope() *sema.Scope { return c.pre }

func (c *classLoader) Complete(ctx *sema.Context, d *sema.SymDenotation) {
	l := c.l
	cls := d.Symbol()
	named := c.obj.Type().(*types.Named)

	decls := sema.NewScope()
	c.pre.ForEach(decls.Enter)

	var parents []sema.Type
	switch u := named.Underlying().(type) {
	case *types.Interface:
		for i := 0; i < u.NumEmbeddeds(); i++ {
			if p := l.embeddedParent(ctx, u.EmbeddedType(i)); p != nil {
				parents = append(parents, p)
			}
		}
		for i := 0; i < u.NumExplicitMethods(); i++ {
			if m := u.ExplicitMethod(i); m.Exported() {
				decls.Enter(l.funcSym(ctx, cls, m))
			}
		}
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if f.Embedded() {
				if p := l.embeddedParent(ctx, f.Type()); p != nil {
					parents = append(parents, p)
				}
				continue
			}
			if f.Exported() {
				info := l.mapType(ctx, f.Type())
				decls.Enter(ctx.NewSymbol(cls, ctx.Names().Intern(f.Name()), sema.EmptyFlags, info))
			}
		}
	}

	if !types.IsInterface(named) {
		mset := types.NewMethodSet(types.NewPointer(named))
		for i := 0; i < mset.Len(); i++ {
			sel := mset.At(i)
			fn, ok := sel.Obj().(*types.Func)
			if !ok || !fn.Exported() {
				continue
			}
			// promoted methods come through parents
			if len(sel.Index()) > 1 {
				continue
			}
			decls.Enter(l.funcSym(ctx, cls, fn))
		}
	}

	if len(parents) == 0 {
		parents = []sema.Type{ctx.Defs().AnyType(ctx)}
	}
	d.SetInfo(&sema.ClassInfo{
		Prefix:       hostPrefix(ctx, d.Owner()),
		Cls:          cls,
		ClassParents: parents,
		Decls:        decls,
	})
	log.Debugf("completed host class %s", ctx.SymFullName(cls))
}

// moduleLoader completes the package object class holding a Go
// package's term-level exports.
type moduleLoader struct {
	l   *Loader
	pkg *types.Package
}

func (c *moduleLoader) Complete(ctx *sema.Context, d *sema.SymDenotation) {
	l := c.l
	cls := d.Symbol()
	decls := sema.NewScope()
	scope := c.pkg.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}
		switch o := obj.(type) {
		case *types.Func:
			decls.Enter(l.funcSym(ctx, cls, o))
		case *types.Const, *types.Var:
			info := l.mapType(ctx, o.Type())
			decls.Enter(ctx.NewSymbol(cls, ctx.Names().Intern(o.Name()), sema.EmptyFlags, info))
		}
	}
	d.SetInfo(&sema.ClassInfo{
		Prefix:       hostPrefix(ctx, d.Owner()),
		Cls:          cls,
		ClassParents: []sema.Type{ctx.Defs().AnyType(ctx)},
		Decls:        decls,
	})
	log.Debugf("completed package object of %s", c.pkg.Path())
}

// funcSym mirrors a Go function as a method member. Parameters and a
// single result map through mapType; no results and multiple results
// both surface as the dynamic top.
func (l *Loader) funcSym(ctx *sema.Context, owner *sema.Symbol, fn *types.Func) *sema.Symbol {
	sig := fn.Type().(*types.Signature)
	params := sig.Params()
	mt := &sema.MethodType{
		Params: make([]sema.Type, params.Len()),
		Result: ctx.Defs().AnyType(ctx),
	}
	for i := 0; i < params.Len(); i++ {
		mt.Params[i] = l.mapType(ctx, params.At(i).Type())
	}
	if res := sig.Results(); res.Len() == 1 {
		mt.Result = l.mapType(ctx, res.At(0).Type())
	}
	return ctx.NewSymbol(owner, ctx.Names().Intern(fn.Name()), sema.Method, mt)
}

// embeddedParent maps an embedded type to a parent reference. Pointers
// unwrap; only exported defined types qualify.
func (l *Loader) embeddedParent(ctx *sema.Context, t types.Type) sema.Type {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	named, ok := t.(*types.Named)
	if !ok || named.Obj().Pkg() == nil || !named.Obj().Exported() {
		return nil
	}
	return l.classFor(ctx, named.Obj()).Class().TypeConstructor(ctx)
}

// mapType projects a Go type into the engine's type representation.
// Defined types become references to their mirrored class, pointers are
// transparent, type parameters refer to their mirrored symbol, and
// every other shape (builtins, slices, maps, funcs, tuples, anonymous
// structs and interfaces) surfaces as core.Any.
func (l *Loader) mapType(ctx *sema.Context, t types.Type) sema.Type {
	switch u := types.Unalias(t).(type) {
	case *types.Pointer:
		return l.mapType(ctx, u.Elem())
	case *types.Named:
		if u.Obj().Pkg() == nil {
			// universe-scope names: error, comparable
			return ctx.Defs().AnyType(ctx)
		}
		return l.classFor(ctx, u.Obj()).Class().TypeConstructor(ctx)
	case *types.TypeParam:
		if sym, ok := l.tparams[u.Obj()]; ok {
			return &sema.TypeRef{Prefix: sema.NoPrefix, Sym: sym}
		}
		return ctx.Defs().AnyType(ctx)
	default:
		return ctx.Defs().AnyType(ctx)
	}
}

// hostPrefix is the prefix a mirrored definition is seen through.
func hostPrefix(ctx *sema.Context, owner *sema.Symbol) sema.Type {
	if owner.Exists() && owner.IsClass() {
		return owner.Class().ThisType(ctx)
	}
	return sema.NoPrefix
}
