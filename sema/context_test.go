package sema

import "testing"

func TestDerivedContextsShareBase(t *testing.T) {
	ctx, _ := newTestContext()
	cls := mkClass(ctx, "Here")

	derived := ctx.WithOwner(cls)
	if derived.Owner() != cls {
		t.Error("WithOwner should set the owner")
	}
	if ctx.Owner() != ctx.Defs().RootPackage {
		t.Error("the original context should be unchanged")
	}
	if derived.Names() != ctx.Names() || derived.Defs() != ctx.Defs() {
		t.Error("derived contexts should share the base tables")
	}

	erased := ctx.WithErasedTypes(true)
	if !erased.ErasedTypes() || ctx.ErasedTypes() {
		t.Error("WithErasedTypes should only affect the derived context")
	}
}

func TestAdvanceRunIsSharedAcrossDerived(t *testing.T) {
	ctx, _ := newTestContext()
	if ctx.Run() != FirstRunID {
		t.Fatalf("Run = %d, want %d", ctx.Run(), FirstRunID)
	}
	derived := ctx.WithErasedTypes(true)
	ctx.AdvanceRun()
	if ctx.Run() != FirstRunID+1 {
		t.Errorf("Run = %d, want %d", ctx.Run(), FirstRunID+1)
	}
	if derived.Run() != ctx.Run() {
		t.Error("runs are base state, visible through every derived context")
	}
}

func TestSettingsDefaults(t *testing.T) {
	if got := (Settings{}).memberCacheSize(); got != DefaultMemberCacheSize {
		t.Errorf("default cache size = %d, want %d", got, DefaultMemberCacheSize)
	}
	if got := (Settings{MemberCacheSize: 3}).memberCacheSize(); got != 3 {
		t.Errorf("configured cache size = %d, want 3", got)
	}
}

func TestSymbolIDsAreDense(t *testing.T) {
	ctx, _ := newTestContext()
	a := mkClass(ctx, "A")
	b := mkClass(ctx, "B")
	if b.ID() != a.ID()+1 {
		t.Errorf("ids %d, %d should be consecutive", a.ID(), b.ID())
	}
	if a.ID() == NoSymID {
		t.Error("real symbols should never get the reserved id")
	}
}
