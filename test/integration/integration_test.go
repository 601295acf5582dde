package integration_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/corvus/hostload"
	"github.com/chazu/corvus/manifest"
	"github.com/chazu/corvus/pickle"
	"github.com/chazu/corvus/sema"
	"github.com/chazu/corvus/symdex"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

// newWorld creates a fresh context with a recording reporter.
func newWorld(t *testing.T) (*sema.Context, *sema.StoreReporter) {
	t.Helper()
	rep := &sema.StoreReporter{}
	return sema.NewContext(sema.WithReporter(rep)), rep
}

func intern(ctx *sema.Context, s string) sema.Name { return ctx.Names().Intern(s) }

// definePackage creates a package under owner and enters it.
func definePackage(t *testing.T, ctx *sema.Context, owner *sema.Symbol, name string) *sema.Symbol {
	t.Helper()
	pkg := ctx.NewPackageSymbol(owner, intern(ctx, name))
	owner.Class().Enter(ctx, pkg)
	return pkg
}

// defineClass creates a completed class with the given parent classes
// and enters it into its owner.
func defineClass(t *testing.T, ctx *sema.Context, owner *sema.Symbol, name string, parents ...*sema.Symbol) *sema.Symbol {
	t.Helper()
	ps := make([]sema.Type, 0, len(parents))
	for _, p := range parents {
		ps = append(ps, p.Class().TypeConstructor(ctx))
	}
	cls := ctx.NewCompleteClassSymbol(owner, intern(ctx, name), sema.EmptyFlags, ps, sema.NewScope())
	owner.Class().Enter(ctx, cls)
	return cls
}

// defineVal adds a value member to a class.
func defineVal(t *testing.T, ctx *sema.Context, cls *sema.Symbol, name string, info sema.Type) *sema.Symbol {
	t.Helper()
	m := ctx.NewSymbol(cls, intern(ctx, name), sema.EmptyFlags, info)
	cls.Class().Enter(ctx, m)
	return m
}

// resolve walks a dotted path from the root package, failing the test on
// a missing segment.
func resolve(t *testing.T, ctx *sema.Context, path string) *sema.Symbol {
	t.Helper()
	cur := ctx.Defs().RootPackage
	for _, seg := range strings.Split(path, ".") {
		next := cur.Class().Decls(ctx).Lookup(intern(ctx, seg))
		if next == nil {
			t.Fatalf("resolve %s: segment %q not found", path, seg)
		}
		cur = next
	}
	return cur
}

// writeWorld pickles roots and writes the result, failing the test on
// any error.
func writeWorld(t *testing.T, ctx *sema.Context, path string, roots ...*sema.Symbol) {
	t.Helper()
	f, err := pickle.Pickle(ctx, roots...)
	if err != nil {
		t.Fatalf("Pickle: %v", err)
	}
	if err := pickle.WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

// loadWorld reads a pickle and installs it into ctx.
func loadWorld(t *testing.T, ctx *sema.Context, path string) []*sema.Symbol {
	t.Helper()
	f, err := pickle.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile %s: %v", path, err)
	}
	roots, err := pickle.Unpickle(ctx, f, path)
	if err != nil {
		t.Fatalf("Unpickle %s: %v", path, err)
	}
	return roots
}

// writeManifest writes a corvus.toml into dir.
func writeManifest(t *testing.T, dir string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "corvus.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile corvus.toml: %v", err)
	}
}

// buildGeoWorld populates ctx with the geo library used across the
// pipeline tests: Point with a coordinate, Circle extending it.
func buildGeoWorld(t *testing.T, ctx *sema.Context) *sema.Symbol {
	t.Helper()
	geo := definePackage(t, ctx, ctx.Defs().RootPackage, "geo")
	point := defineClass(t, ctx, geo, "Point", ctx.Defs().AnyClass)
	defineVal(t, ctx, point, "x", ctx.Defs().AnyType(ctx))
	defineClass(t, ctx, geo, "Circle", point)
	return geo
}

// ---------------------------------------------------------------------------
// Full project build cycle: manifest -> resolver -> pickles -> fresh world
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ProjectBuildCycle(t *testing.T) {
	tmp := t.TempDir()
	libDir := filepath.Join(tmp, "libgeo")
	appDir := filepath.Join(tmp, "app")

	writeManifest(t, libDir,
		`[project]`,
		`name = "libgeo"`,
		`namespace = "geo"`,
	)
	writeManifest(t, appDir,
		`[project]`,
		`name = "app"`,
		`namespace = "app"`,
		``,
		`[dependencies.geo]`,
		`path = "../libgeo"`,
	)

	// build the library's pickle the way `corvus pickle` would
	libMan, err := manifest.Load(libDir)
	if err != nil {
		t.Fatalf("Load(libgeo): %v", err)
	}
	libCtx, _ := newWorld(t)
	buildGeoWorld(t, libCtx)
	writeWorld(t, libCtx, libMan.PickleOutputPath(), resolve(t, libCtx, "geo"))

	// resolve the app's dependencies and assemble its world
	appMan, err := manifest.Load(appDir)
	if err != nil {
		t.Fatalf("Load(app): %v", err)
	}
	deps, err := manifest.NewResolver(appMan).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(deps) != 1 || deps[0].Name != "geo" {
		t.Fatalf("deps = %+v, want one dependency named geo", deps)
	}
	if deps[0].Namespace != "geo" {
		t.Errorf("namespace = %s, want geo (from the producer manifest)", deps[0].Namespace)
	}
	if deps[0].PicklePath != libMan.PickleOutputPath() {
		t.Errorf("pickle path = %s, want %s", deps[0].PicklePath, libMan.PickleOutputPath())
	}

	appCtx, appRep := newWorld(t)
	loadWorld(t, appCtx, deps[0].PicklePath)

	app := definePackage(t, appCtx, appCtx.Defs().RootPackage, "app")
	circle := resolve(t, appCtx, "geo.Circle")
	disc := defineClass(t, appCtx, app, "Disc", circle)
	defineVal(t, appCtx, disc, "label", appCtx.Defs().AnyType(appCtx))
	writeWorld(t, appCtx, appMan.PickleOutputPath(), app)
	if appRep.ErrorCount() != 0 {
		t.Fatalf("diagnostics while building app: %v", appRep.Diags)
	}

	// a consumer loads both pickles, dependency first
	ctx, rep := newWorld(t)
	loadWorld(t, ctx, deps[0].PicklePath)
	loadWorld(t, ctx, appMan.PickleOutputPath())

	discR := resolve(t, ctx, "app.Disc")
	bases := discR.Class().BaseClasses(ctx)
	wantBases := []string{"Disc", "Circle", "Point", "Any"}
	if len(bases) != len(wantBases) {
		t.Fatalf("Disc has %d base classes, want %d", len(bases), len(wantBases))
	}
	for i, want := range wantBases {
		if got := ctx.SymName(bases[i]); got != want {
			t.Errorf("base %d = %s, want %s", i, got, want)
		}
	}
	// the inherited coordinate resolves through two pickle boundaries
	x := discR.Class().Member(ctx, intern(ctx, "x"))
	if !x.Exists() {
		t.Fatal("Disc does not inherit x from geo.Point")
	}
	if ctx.SymFullName(x.Owner()) != "geo.Point" {
		t.Errorf("x is owned by %s, want geo.Point", ctx.SymFullName(x.Owner()))
	}
	if rep.ErrorCount() != 0 {
		t.Errorf("diagnostics in the consumer world: %v", rep.Diags)
	}

	// resolution pinned the dependency's pickle in the lock file
	lf, err := manifest.ReadLock(appMan.LockFilePath())
	if err != nil {
		t.Fatalf("ReadLock: %v", err)
	}
	if lf == nil {
		t.Fatal("no lock file written")
	}
	locked := lf.FindLockedDep("geo")
	if locked == nil {
		t.Fatal("geo not pinned in the lock file")
	}
	if len(locked.Hash) != 64 {
		t.Errorf("lock hash = %q, want a sha-256 hex digest", locked.Hash)
	}
}

// ---------------------------------------------------------------------------
// Library evolution: external references rebind against a newer library
// ---------------------------------------------------------------------------

func TestIntegrationE2E_LibraryEvolution(t *testing.T) {
	tmp := t.TempDir()
	libPath := filepath.Join(tmp, "geo.cvp")
	appPath := filepath.Join(tmp, "app.cvp")

	// version 1 of the library
	v1, _ := newWorld(t)
	buildGeoWorld(t, v1)
	writeWorld(t, v1, libPath, resolve(t, v1, "geo"))

	// the app builds against v1 and pickles only its own package, so
	// geo.Point stays an external reference
	appCtx, _ := newWorld(t)
	loadWorld(t, appCtx, libPath)
	app := definePackage(t, appCtx, appCtx.Defs().RootPackage, "app")
	defineClass(t, appCtx, app, "Widget", resolve(t, appCtx, "geo.Point"))
	writeWorld(t, appCtx, appPath, app)

	// version 2 grows a second coordinate
	v2, _ := newWorld(t)
	geo := buildGeoWorld(t, v2)
	point := resolve(t, v2, "geo.Point")
	defineVal(t, v2, point, "y", v2.Defs().AnyType(v2))
	writeWorld(t, v2, libPath, geo)

	// the unchanged app pickle now resolves against v2
	ctx, rep := newWorld(t)
	loadWorld(t, ctx, libPath)
	loadWorld(t, ctx, appPath)

	widget := resolve(t, ctx, "app.Widget")
	y := widget.Class().Member(ctx, intern(ctx, "y"))
	if !y.Exists() {
		t.Fatal("Widget does not see the member added in the newer library")
	}
	if got := resolve(t, ctx, "geo.Point"); !widget.Class().IsSubClass(ctx, got) {
		t.Error("Widget's parent is not the newer library's Point")
	}
	if rep.ErrorCount() != 0 {
		t.Errorf("unexpected diagnostics: %v", rep.Diags)
	}
}

// ---------------------------------------------------------------------------
// Member caches across mutation
// ---------------------------------------------------------------------------

func TestIntegrationE2E_MemberCacheLifecycle(t *testing.T) {
	ctx, _ := newWorld(t)
	pkg := definePackage(t, ctx, ctx.Defs().RootPackage, "shapes")
	base := defineClass(t, ctx, pkg, "Base", ctx.Defs().AnyClass)
	defineVal(t, ctx, base, "area", ctx.Defs().AnyType(ctx))
	sub := defineClass(t, ctx, pkg, "Sub", base)

	if !base.Class().HasKnownSubclasses() {
		t.Fatal("defining Sub did not register it with Base")
	}

	// first lookups miss, repeats hit
	if !sub.Class().Member(ctx, intern(ctx, "area")).Exists() {
		t.Fatal("Sub does not inherit area")
	}
	if sub.Class().Member(ctx, intern(ctx, "absent")).Exists() {
		t.Fatal("found a member that was never declared")
	}
	sub.Class().Member(ctx, intern(ctx, "area"))
	st := sub.Class().MemberCacheStats()
	if st.Misses != 2 || st.Hits != 1 {
		t.Errorf("stats = %d misses / %d hits, want 2 / 1", st.Misses, st.Hits)
	}
	if st.Len != 2 {
		t.Errorf("cache holds %d entries, want 2", st.Len)
	}
	if st.HitRate() <= 0 {
		t.Error("hit rate should be positive after a repeat lookup")
	}

	// the parent's fingerprint covers inherited and own names
	fp := base.Class().MemberFingerprint(ctx)
	if !fp.Contains(ctx.Names().Hash(intern(ctx, "area"))) {
		t.Error("fingerprint does not cover the declared member")
	}

	// entering drops the stale cache entry, so the new member is visible
	defineVal(t, ctx, sub, "tint", ctx.Defs().AnyType(ctx))
	tint := sub.Class().Member(ctx, intern(ctx, "tint"))
	if !tint.Exists() {
		t.Fatal("freshly entered member not found")
	}

	// deleting makes the name unresolvable again
	sub.Class().Delete(ctx, tint)
	if sub.Class().Member(ctx, intern(ctx, "tint")).Exists() {
		t.Error("deleted member still resolves")
	}
}

// ---------------------------------------------------------------------------
// Symbol index snapshots
// ---------------------------------------------------------------------------

func TestIntegrationE2E_SymbolIndexSnapshot(t *testing.T) {
	tmp := t.TempDir()
	libPath := filepath.Join(tmp, "geo.cvp")

	wctx, _ := newWorld(t)
	buildGeoWorld(t, wctx)
	writeWorld(t, wctx, libPath, resolve(t, wctx, "geo"))

	ctx, _ := newWorld(t)
	loadWorld(t, ctx, libPath)

	store, err := symdex.Open(filepath.Join(tmp, "corvus.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	snap, err := store.Snapshot(ctx, "nightly")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// geo.Point, geo.Circle, and the three core classes
	if snap.Classes < 5 {
		t.Errorf("snapshot recorded %d classes, want at least 5", snap.Classes)
	}

	point, err := store.Class(snap.ID, "geo.Point")
	if err != nil {
		t.Fatalf("Class(geo.Point): %v", err)
	}
	if len(point.Parents) != 1 || point.Parents[0] != "core.Any" {
		t.Errorf("Point parents = %v, want [core.Any]", point.Parents)
	}
	members, err := store.Members(snap.ID, "geo.Point")
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0].Name != "x" || members[0].Kind != symdex.KindValue {
		t.Errorf("Point members = %+v, want [x value]", members)
	}
	declaring, err := store.ClassesDeclaring(snap.ID, "x")
	if err != nil {
		t.Fatalf("ClassesDeclaring: %v", err)
	}
	if len(declaring) != 1 || declaring[0] != "geo.Point" {
		t.Errorf("classes declaring x = %v, want [geo.Point]", declaring)
	}
	if _, err := store.Class(snap.ID, "geo.Bogus"); !errors.Is(err, symdex.ErrNotFound) {
		t.Errorf("Class(geo.Bogus) = %v, want ErrNotFound", err)
	}

	// a second snapshot lists first
	later, err := store.Snapshot(ctx, "after-review")
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	runs, err := store.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != later.ID || runs[1].ID != snap.ID {
		t.Errorf("runs = %+v, want newest first", runs)
	}
	if runs[1].Classes != snap.Classes {
		t.Errorf("run class count = %d, want %d", runs[1].Classes, snap.Classes)
	}
}

// ---------------------------------------------------------------------------
// Host mirror pickled and reloaded
// ---------------------------------------------------------------------------

func TestIntegrationE2E_HostMirrorPickled(t *testing.T) {
	tmp := t.TempDir()
	goPath := filepath.Join(tmp, "go.cvp")

	wctx, wrep := newWorld(t)
	if _, err := hostload.New(wctx).Load("strings"); err != nil {
		t.Fatalf("Load(strings): %v", err)
	}
	writeWorld(t, wctx, goPath, resolve(t, wctx, "go"))
	if wrep.ErrorCount() != 0 {
		t.Fatalf("diagnostics while mirroring: %v", wrep.Diags)
	}

	ctx, rep := newWorld(t)
	loadWorld(t, ctx, goPath)

	var builder *sema.Symbol
	for _, s := range resolve(t, ctx, "go.strings").Class().Decls(ctx).LookupAll(intern(ctx, "Builder")) {
		if s.IsClass() {
			builder = s
			break
		}
	}
	if builder == nil {
		t.Fatal("go.strings.Builder did not survive the pickle")
	}
	ws := builder.Class().Member(ctx, intern(ctx, "WriteString"))
	if !ws.Exists() || !ws.Denot().RawFlags().Is(sema.Method) {
		t.Fatal("Builder.WriteString missing or unflagged after reload")
	}
	if _, ok := ws.Denot().Info(ctx).(*sema.MethodType); !ok {
		t.Errorf("WriteString info = %T, want *sema.MethodType", ws.Denot().Info(ctx))
	}
	if rep.ErrorCount() != 0 {
		t.Errorf("diagnostics after reload: %v", rep.Diags)
	}
}

// ---------------------------------------------------------------------------
// Cycles surface as errors, not hangs
// ---------------------------------------------------------------------------

func TestIntegrationE2E_CyclicWorldReported(t *testing.T) {
	ctx, _ := newWorld(t)
	pkg := definePackage(t, ctx, ctx.Defs().RootPackage, "loop")

	var a, b *sema.Symbol
	a = ctx.NewClassSymbol(pkg, intern(ctx, "A"), sema.EmptyFlags,
		&sema.ClassCompleter{Fn: func(cctx *sema.Context, d *sema.SymDenotation) {
			b.Denot().Info(cctx)
		}})
	b = ctx.NewClassSymbol(pkg, intern(ctx, "B"), sema.EmptyFlags,
		&sema.ClassCompleter{Fn: func(cctx *sema.Context, d *sema.SymDenotation) {
			a.Denot().Info(cctx)
		}})
	pkg.Class().Enter(ctx, a)
	pkg.Class().Enter(ctx, b)

	err := a.Denot().EnsureCompleted(ctx)
	if err == nil {
		t.Fatal("expected a cyclic reference error")
	}
	var cyc *sema.CyclicReference
	if !errors.As(err, &cyc) {
		t.Fatalf("error = %v, want *CyclicReference", err)
	}
	if cyc.Sym != a {
		t.Errorf("cycle blamed %s, want A", ctx.SymName(cyc.Sym))
	}

	// the cycle keeps reporting, and the rest of the world still works
	if err := a.Denot().EnsureCompleted(ctx); err == nil {
		t.Error("re-forcing the cyclic class should fail again")
	}
	sane := defineClass(t, ctx, pkg, "Sane", ctx.Defs().AnyClass)
	if err := sane.Denot().EnsureCompleted(ctx); err != nil {
		t.Errorf("unrelated class failed to complete: %v", err)
	}
}
