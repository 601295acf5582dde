package hostload

import (
	"testing"

	"github.com/chazu/corvus/sema"
)

func newWorld(t *testing.T) (*sema.Context, *sema.StoreReporter) {
	t.Helper()
	rep := &sema.StoreReporter{}
	return sema.NewContext(sema.WithReporter(rep)), rep
}

func lookupClass(t *testing.T, ctx *sema.Context, pkg *sema.Symbol, name string) *sema.Symbol {
	t.Helper()
	for _, s := range pkg.Class().Decls(ctx).LookupAll(ctx.Names().Intern(name)) {
		if s.IsClass() {
			return s
		}
	}
	t.Fatalf("class %s not found in %s", name, ctx.SymFullName(pkg))
	return nil
}

// packageObject returns the module class holding a package's term-level
// exports.
func packageObject(t *testing.T, ctx *sema.Context, pkg *sema.Symbol) *sema.Symbol {
	t.Helper()
	po := pkg.Class().Decls(ctx).Lookup(ctx.Std().PackageObj)
	if po == nil {
		t.Fatalf("no package object in %s", ctx.SymFullName(pkg))
	}
	mc := po.Denot().ModuleClass()
	if !mc.Exists() {
		t.Fatalf("package object of %s has no module class", ctx.SymFullName(pkg))
	}
	return mc
}

func baseNames(ctx *sema.Context, syms []*sema.Symbol) []string {
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = ctx.SymName(s)
	}
	return names
}

func TestLoadStrings(t *testing.T) {
	ctx, rep := newWorld(t)
	ld := New(ctx)

	pkg, err := ld.Load("strings")
	if err != nil {
		t.Fatalf("Load(strings): %v", err)
	}
	if got := ctx.SymFullName(pkg); got != "go.strings" {
		t.Errorf("package full name: got %q, want %q", got, "go.strings")
	}

	builder := lookupClass(t, ctx, pkg, "Builder")
	ws := builder.Class().Member(ctx, ctx.Names().Intern("WriteString"))
	if !ws.Exists() {
		t.Fatal("Builder has no WriteString member")
	}
	if !ws.Denot().Is(ctx, sema.Method) {
		t.Error("WriteString should carry the method flag")
	}
	mt, ok := ws.Denot().Info(ctx).(*sema.MethodType)
	if !ok {
		t.Fatalf("WriteString info: got %T, want *sema.MethodType", ws.Denot().Info(ctx))
	}
	if len(mt.Params) != 1 {
		t.Errorf("WriteString: got %d params, want 1", len(mt.Params))
	}

	bases := builder.Class().BaseClasses(ctx)
	if len(bases) != 2 || bases[0] != builder || bases[1] != ctx.Defs().AnyClass {
		t.Errorf("Builder bases: got %v, want [Builder Any]", baseNames(ctx, bases))
	}
	if n := rep.ErrorCount(); n != 0 {
		t.Errorf("expected no diagnostics, got %d", n)
	}
}

func TestLoadIsLazy(t *testing.T) {
	ctx, _ := newWorld(t)
	ld := New(ctx)

	pkg, err := ld.Load("strings")
	if err != nil {
		t.Fatalf("Load(strings): %v", err)
	}
	reader := lookupClass(t, ctx, pkg, "Reader")
	if reader.Denot().IsCompleted() {
		t.Fatal("loading alone should not complete Reader")
	}
	if !reader.Class().Member(ctx, ctx.Names().Intern("Len")).Exists() {
		t.Error("expected Reader.Len after forcing")
	}
	if !reader.Denot().IsCompleted() {
		t.Error("member lookup should have completed Reader")
	}
}

func TestLoadTwiceReturnsSameSymbol(t *testing.T) {
	ctx, _ := newWorld(t)
	ld := New(ctx)

	a, err := ld.Load("strings")
	if err != nil {
		t.Fatalf("Load(strings): %v", err)
	}
	b, err := ld.Load("strings")
	if err != nil {
		t.Fatalf("Load(strings) again: %v", err)
	}
	if a != b {
		t.Error("loading the same path twice should reuse the package symbol")
	}
}

func TestPackageObjectHoldsFunctions(t *testing.T) {
	ctx, rep := newWorld(t)
	ld := New(ctx)

	pkg, err := ld.Load("strings")
	if err != nil {
		t.Fatalf("Load(strings): %v", err)
	}
	po := packageObject(t, ctx, pkg)
	if po.Denot().IsCompleted() {
		t.Fatal("package object should stay pending until a member is needed")
	}
	contains := po.Class().Member(ctx, ctx.Names().Intern("Contains"))
	if !contains.Exists() {
		t.Fatal("strings package object has no Contains")
	}
	mt, ok := contains.Denot().Info(ctx).(*sema.MethodType)
	if !ok {
		t.Fatalf("Contains info: got %T, want *sema.MethodType", contains.Denot().Info(ctx))
	}
	if len(mt.Params) != 2 {
		t.Errorf("Contains: got %d params, want 2", len(mt.Params))
	}
	// the synthetic wrapper is invisible in qualified names
	if got := ctx.SymFullName(contains); got != "go.strings.Contains" {
		t.Errorf("Contains full name: got %q, want %q", got, "go.strings.Contains")
	}
	if n := rep.ErrorCount(); n != 0 {
		t.Errorf("expected no diagnostics, got %d", n)
	}
}

func TestInterfaceEmbeddingBecomesAncestry(t *testing.T) {
	ctx, rep := newWorld(t)
	ld := New(ctx)

	pkg, err := ld.Load("io")
	if err != nil {
		t.Fatalf("Load(io): %v", err)
	}
	rw := lookupClass(t, ctx, pkg, "ReadWriter")
	reader := lookupClass(t, ctx, pkg, "Reader")
	writer := lookupClass(t, ctx, pkg, "Writer")

	if !rw.Denot().RawFlags().Is(sema.Trait) {
		t.Error("ReadWriter should be marked as a trait")
	}
	if !rw.Class().IsSubClass(ctx, reader) || !rw.Class().IsSubClass(ctx, writer) {
		t.Errorf("ReadWriter bases: got %v, want Reader and Writer among them",
			baseNames(ctx, rw.Class().BaseClasses(ctx)))
	}
	if !rw.Class().IsSubClass(ctx, ctx.Defs().AnyClass) {
		t.Error("ReadWriter should derive from core.Any")
	}

	read := rw.Class().Member(ctx, ctx.Names().Intern("Read"))
	if !read.Exists() {
		t.Fatal("ReadWriter should inherit Read from Reader")
	}
	if read.Owner() != reader {
		t.Errorf("Read owner: got %s, want Reader", ctx.SymFullName(read.Owner()))
	}
	if n := rep.ErrorCount(); n != 0 {
		t.Errorf("expected no diagnostics, got %d", n)
	}
}

func TestStructEmbeddingAndCrossPackageRefs(t *testing.T) {
	ctx, rep := newWorld(t)
	ld := New(ctx)

	pkg, err := ld.Load("bufio")
	if err != nil {
		t.Fatalf("Load(bufio): %v", err)
	}
	rw := lookupClass(t, ctx, pkg, "ReadWriter")
	reader := lookupClass(t, ctx, pkg, "Reader")
	if !rw.Class().IsSubClass(ctx, reader) {
		t.Errorf("ReadWriter bases: got %v, want Reader among them",
			baseNames(ctx, rw.Class().BaseClasses(ctx)))
	}
	if !rw.Class().Member(ctx, ctx.Names().Intern("ReadString")).Exists() {
		t.Error("ReadWriter should reach ReadString through Reader")
	}

	// forcing the package object pulls io.Reader into the tree without
	// another load
	po := packageObject(t, ctx, pkg)
	nr := po.Class().Member(ctx, ctx.Names().Intern("NewReader"))
	if !nr.Exists() {
		t.Fatal("bufio package object has no NewReader")
	}
	mt := nr.Denot().Info(ctx).(*sema.MethodType)
	if len(mt.Params) != 1 {
		t.Fatalf("NewReader: got %d params, want 1", len(mt.Params))
	}
	ioReader := sema.ClassSymOf(ctx, mt.Params[0])
	if !ioReader.Exists() {
		t.Fatal("NewReader parameter should reference a mirrored class")
	}
	if got := ctx.SymFullName(ioReader); got != "go.io.Reader" {
		t.Errorf("parameter class: got %q, want %q", got, "go.io.Reader")
	}
	if ioReader.Denot().IsCompleted() {
		t.Error("go.io.Reader should stay pending until forced")
	}
	if res := sema.ClassSymOf(ctx, mt.Result); res != reader {
		t.Errorf("NewReader result: got %s, want bufio.Reader", ctx.SymFullName(res))
	}

	if !po.Class().Member(ctx, ctx.Names().Intern("MaxScanTokenSize")).Exists() {
		t.Error("bufio package object has no MaxScanTokenSize")
	}
	if n := rep.ErrorCount(); n != 0 {
		t.Errorf("expected no diagnostics, got %d", n)
	}
}

func TestGenericTypeParameters(t *testing.T) {
	ctx, _ := newWorld(t)
	ld := New(ctx)

	pkg, err := ld.Load("iter")
	if err != nil {
		t.Fatalf("Load(iter): %v", err)
	}
	seq := lookupClass(t, ctx, pkg, "Seq")
	params := seq.Class().TypeParams(ctx)
	if len(params) != 1 {
		t.Fatalf("Seq type params: got %d, want 1", len(params))
	}
	if got := ctx.SymName(params[0]); got != "V" {
		t.Errorf("type param name: got %q, want %q", got, "V")
	}
	if !params[0].Denot().RawFlags().Is(sema.TypeParam) {
		t.Error("type param should carry the TypeParam flag")
	}
	if seq.Denot().IsCompleted() {
		t.Error("reading type params should not force the class")
	}
	tb, ok := params[0].Denot().Info(ctx).(*sema.TypeBounds)
	if !ok {
		t.Fatalf("type param info: got %T, want *sema.TypeBounds", params[0].Denot().Info(ctx))
	}
	if cls := sema.ClassSymOf(ctx, tb.Hi); cls != ctx.Defs().AnyClass {
		t.Errorf("upper bound: got %s, want core.Any", ctx.SymFullName(cls))
	}
}

func TestLoadBadPath(t *testing.T) {
	ctx, _ := newWorld(t)
	ld := New(ctx)
	if _, err := ld.Load("corvus/definitely/not/a/package"); err == nil {
		t.Error("expected error for nonexistent package")
	}
}
