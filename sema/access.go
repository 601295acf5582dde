package sema

// ---------------------------------------------------------------------------
// Accessibility
// ---------------------------------------------------------------------------

// AccessBoundary returns the outermost symbol within which this
// definition may be referenced. base is the class the check is made
// against; it becomes the boundary for plainly protected members.
func (d *SymDenotation) AccessBoundary(ctx *Context, base *Symbol) *Symbol {
	fs := d.Flags(ctx)
	switch {
	case fs.Is(PrivateOrLocal):
		return d.owner
	case fs.IsAll(StaticProtected):
		return ctx.Defs().RootPackage
	case d.PrivateWithin(ctx).Exists() && !ctx.ErasedTypes():
		return d.PrivateWithin(ctx)
	case fs.Is(Protected):
		return base
	default:
		return ctx.Defs().RootPackage
	}
}

// IsAccessibleFrom reports whether the definition may be referenced with
// prefix type pre from the context's current owner. superAccess marks a
// super-call selection, which loosens the protected rules. Failed
// protected accesses report a diagnostic before answering false.
func (d *SymDenotation) IsAccessibleFrom(ctx *Context, pre Type, superAccess bool) bool {
	if pre == NoPrefix {
		return true
	}
	if d.Info(ctx) == NoType {
		return false
	}
	fs := d.flags
	boundary := d.AccessBoundary(ctx, d.owner)

	accessWithin := func(b *Symbol) bool {
		if ctx.Owner().IsContainedIn(ctx, b) {
			return true
		}
		linked := b.Denot().LinkedClass()
		return linked.Exists() && ctx.Owner().IsContainedIn(ctx, linked)
	}

	// A local member may only be selected on its own class's this, or on
	// a subclass's this when it is also protected.
	correctThisType := func() bool {
		t, ok := pre.(*ThisType)
		if !ok {
			return true
		}
		return t.Cls == d.owner || fs.Is(Protected) && t.Cls.DerivesFrom(ctx, d.owner)
	}

	protectedOK := func() bool {
		cls := enclosingSubClass(ctx, d.owner)
		if !cls.Exists() {
			ctx.Error(d.pos,
				"access to protected %s not permitted: no class enclosing %s is a subclass of %s where the target is defined",
				ctx.SymName(d.symbol), ctx.SymFullName(ctx.Owner()), ctx.SymFullName(d.owner))
			return false
		}
		// static members are exempt from the prefix conformance check
		if d.owner.Denot().Is(ctx, ModuleClass) {
			return true
		}
		if cd := cls.Class(); cd != nil && cd.BaseTypeOf(ctx, pre).Exists() {
			return true
		}
		ctx.Error(d.pos,
			"access to protected %s not permitted: prefix type does not conform to %s where the access takes place",
			ctx.SymName(d.symbol), ctx.SymFullName(cls))
		return false
	}

	_, preIsThis := pre.(*ThisType)
	return boundary.IsTerm() ||
		boundary == ctx.Defs().RootPackage ||
		accessWithin(boundary) && (!fs.Is(Local) || correctThisType()) ||
		fs.Is(Protected) && (superAccess || preIsThis || ctx.ErasedTypes() || protectedOK())
}

// enclosingSubClass returns the closest class enclosing the current owner
// that derives from base.
func enclosingSubClass(ctx *Context, base *Symbol) *Symbol {
	for o := ctx.Owner(); o.Exists(); o = o.Owner() {
		if o.IsClass() && o.DerivesFrom(ctx, base) {
			return o
		}
	}
	return NoSymbol
}
