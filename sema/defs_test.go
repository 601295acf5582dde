package sema

import "testing"

func TestBootstrapShape(t *testing.T) {
	ctx, _ := newTestContext()
	d := ctx.Defs()

	if !d.RootPackage.Exists() || !d.RootPackage.Denot().Is(ctx, Package) {
		t.Fatal("the root package should exist")
	}
	rootScope := d.RootPackage.Class().Decls(ctx)
	if rootScope.Lookup(ctx.Std().EmptyPackage) != d.EmptyPackage {
		t.Error("the empty package should be declared in the root")
	}
	if rootScope.Lookup(ctx.Std().Core) != d.CorePackage {
		t.Error("the core package should be declared in the root")
	}
	coreScope := d.CorePackage.Class().Decls(ctx)
	for _, sym := range []*Symbol{d.AnyClass, d.NothingClass, d.NullClass} {
		if coreScope.Lookup(sym.Name()) != sym {
			t.Errorf("%s should be declared in core", ctx.SymName(sym))
		}
	}
	if got := ctx.SymFullName(d.NothingClass); got != "core.Nothing" {
		t.Errorf("full name = %q, want %q", got, "core.Nothing")
	}
}

func TestBootstrapHierarchy(t *testing.T) {
	ctx, _ := newTestContext()
	d := ctx.Defs()

	if bcs := d.AnyClass.Class().BaseClasses(ctx); len(bcs) != 1 || bcs[0] != d.AnyClass {
		t.Errorf("BaseClasses(Any) = %v, want just Any", bcs)
	}
	bcs := d.NothingClass.Class().BaseClasses(ctx)
	if len(bcs) != 2 || bcs[0] != d.NothingClass || bcs[1] != d.AnyClass {
		t.Errorf("BaseClasses(Nothing) = %v, want [Nothing Any]", bcs)
	}
	if !d.NullClass.Class().IsNonBottomSubClass(ctx, d.AnyClass) {
		t.Error("Null should derive from Any")
	}
}

func TestIsEffectiveRoot(t *testing.T) {
	ctx, _ := newTestContext()
	d := ctx.Defs()
	if !d.IsEffectiveRoot(d.RootPackage) || !d.IsEffectiveRoot(d.EmptyPackage) {
		t.Error("the root and empty packages terminate qualified names")
	}
	if d.IsEffectiveRoot(d.CorePackage) {
		t.Error("ordinary packages do not terminate qualified names")
	}
}

func TestIsBottomClass(t *testing.T) {
	ctx, _ := newTestContext()
	d := ctx.Defs()
	if !d.IsBottomClass(d.NothingClass) || !d.IsBottomClass(d.NullClass) {
		t.Error("Nothing and Null are the bottom classes")
	}
	if d.IsBottomClass(d.AnyClass) {
		t.Error("Any is not a bottom class")
	}
}

func TestAnyTypeIsMemoized(t *testing.T) {
	ctx, _ := newTestContext()
	if ctx.Defs().AnyType(ctx) != ctx.Defs().AnyType(ctx) {
		t.Error("AnyType should return the same reference every time")
	}
	if ClassSymOf(ctx, ctx.Defs().AnyType(ctx)) != ctx.Defs().AnyClass {
		t.Error("AnyType should reference the Any class")
	}
}
