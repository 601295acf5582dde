package sema

// ---------------------------------------------------------------------------
// Standard definitions
// ---------------------------------------------------------------------------

// StdDefs holds the definitions every Corvus program starts from: the
// package roots and the extremal classes of the hierarchy. They are
// bootstrapped once per context, fully completed.
type StdDefs struct {
	// RootPackage terminates every owner chain.
	RootPackage *Symbol
	// EmptyPackage holds top-level definitions that name no package.
	EmptyPackage *Symbol
	// CorePackage is `core`, home of the standard classes.
	CorePackage *Symbol

	// AnyClass is `core.Any`, the top of the hierarchy.
	AnyClass *Symbol
	// NothingClass is `core.Nothing`, the bottom with no values.
	NothingClass *Symbol
	// NullClass is `core.Null`, the bottom inhabited by the null value.
	NullClass *Symbol
}

func newStdDefs(ctx *Context) *StdDefs {
	std := ctx.Std()
	d := &StdDefs{}

	d.RootPackage = ctx.NewPackageSymbol(NoSymbol, std.Root)
	d.EmptyPackage = ctx.NewPackageSymbol(d.RootPackage, std.EmptyPackage)
	d.CorePackage = ctx.NewPackageSymbol(d.RootPackage, std.Core)
	rootScope := d.RootPackage.Class().Decls(ctx)
	rootScope.Enter(d.EmptyPackage)
	rootScope.Enter(d.CorePackage)

	coreScope := d.CorePackage.Class().Decls(ctx)
	d.AnyClass = ctx.NewCompleteClassSymbol(d.CorePackage, std.Any, EmptyFlags, nil, NewScope())
	anyRef := d.AnyClass.Class().TypeConstructor(ctx)
	d.NothingClass = ctx.NewCompleteClassSymbol(d.CorePackage, std.Nothing, EmptyFlags, []Type{anyRef}, NewScope())
	d.NullClass = ctx.NewCompleteClassSymbol(d.CorePackage, std.Null, EmptyFlags, []Type{anyRef}, NewScope())
	coreScope.Enter(d.AnyClass)
	coreScope.Enter(d.NothingClass)
	coreScope.Enter(d.NullClass)

	return d
}

// IsEffectiveRoot reports whether sym terminates qualified names: the
// root package or the empty package.
func (d *StdDefs) IsEffectiveRoot(sym *Symbol) bool {
	return sym == d.RootPackage || sym == d.EmptyPackage
}

// IsBottomClass reports whether sym is one of the two canonical bottoms.
func (d *StdDefs) IsBottomClass(sym *Symbol) bool {
	return sym == d.NothingClass || sym == d.NullClass
}

// AnyType returns the reference type of core.Any, the default parent.
func (d *StdDefs) AnyType(ctx *Context) Type {
	return d.AnyClass.Class().TypeConstructor(ctx)
}
