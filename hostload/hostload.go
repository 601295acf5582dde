// Package hostload mirrors Go packages into a Corvus context as host
// symbols. A loaded package becomes a package chain under `go` (so
// "encoding/json" surfaces as go.encoding.json); its exported types
// become lazy classes, and its package-level functions, constants, and
// variables collect behind a synthetic package object. Nothing is
// introspected until a class is forced, so loading a package costs one
// go/packages call and a scope's worth of pending symbols.
package hostload

import (
	"fmt"
	"go/types"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/tools/go/packages"

	"github.com/chazu/corvus/sema"
)

var log = commonlog.GetLogger("corvus.hostload")

// Loader materializes Go packages as Corvus symbols. All loads through
// one Loader share a class table, so a Go type referenced from several
// packages maps to one class symbol. A type mentioned in a signature
// but never loaded comes into being lazily, in its own package chain,
// without another go/packages call.
type Loader struct {
	ctx     *sema.Context
	goName  sema.Name
	classes map[*types.TypeName]*sema.Symbol
	tparams map[*types.TypeName]*sema.Symbol
	loaded  map[string]*sema.Symbol
}

// New creates a loader materializing into ctx.
func New(ctx *sema.Context) *Loader {
	return &Loader{
		ctx:     ctx,
		goName:  ctx.Names().Intern("go"),
		classes: make(map[*types.TypeName]*sema.Symbol),
		tparams: make(map[*types.TypeName]*sema.Symbol),
		loaded:  make(map[string]*sema.Symbol),
	}
}

// Load brings a Go package into the context and returns its package
// symbol. Exported defined types come in as lazy classes; package-level
// functions, constants, and variables come in behind a lazy package
// object. Loading the same import path twice returns the first result.
func (l *Loader) Load(importPath string) (*sema.Symbol, error) {
	if pkgSym, ok := l.loaded[importPath]; ok {
		return pkgSym, nil
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("hostload: loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("hostload: no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("hostload: package errors in %s: %v", importPath, pkgs[0].Errors)
	}
	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("hostload: type information not available for %s", importPath)
	}

	ctx := l.ctx
	pkgSym := l.packageFor(ctx, pkg.Types)
	scope := pkg.Types.Scope()
	numClasses, numTerms := 0, 0
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}
		switch o := obj.(type) {
		case *types.TypeName:
			// aliases resolve through mapType; only defined types get a
			// class of their own
			if o.IsAlias() {
				continue
			}
			if _, ok := o.Type().(*types.Named); ok {
				l.classFor(ctx, o)
				numClasses++
			}
		case *types.Func, *types.Const, *types.Var:
			numTerms++
		}
	}
	if numTerms > 0 {
		l.enterPackageObject(ctx, pkgSym, pkg.Types)
	}
	l.loaded[importPath] = pkgSym
	log.Debugf("loaded %s: %d classes, %d package-level terms", importPath, numClasses, numTerms)
	return pkgSym, nil
}

// enterPackageObject installs the module pair holding a package's
// term-level exports. The class half carries PackageObject so full
// names read go.strings.Contains, not go.strings.package.Contains.
func (l *Loader) enterPackageObject(ctx *sema.Context, pkgSym *sema.Symbol, pkg *types.Package) {
	std := ctx.Std()
	if pkgSym.Class().Decls(ctx).Contains(std.PackageObj) {
		return
	}
	mod := ctx.NewLazyModuleSymbol(pkgSym, std.PackageObj,
		sema.Synthetic|sema.Static, sema.Synthetic|sema.Static|sema.PackageObject,
		&moduleLoader{l: l, pkg: pkg})
	pkgSym.Class().Enter(ctx, mod)
	pkgSym.Class().Enter(ctx, mod.Denot().ModuleClass())
}

// packageFor returns the Corvus package mirroring a Go package,
// creating the chain go.<path segments> on first use. Path segments
// become package names as they are, dots and hyphens included.
func (l *Loader) packageFor(ctx *sema.Context, pkg *types.Package) *sema.Symbol {
	cur := ensurePackage(ctx, ctx.Defs().RootPackage, l.goName)
	for _, seg := range strings.Split(pkg.Path(), "/") {
		cur = ensurePackage(ctx, cur, ctx.Names().Intern(seg))
	}
	return cur
}

// classFor returns the class symbol mirroring a defined Go type,
// creating a lazy one in the type's package on first use. Creation also
// materializes the type parameters, so TypeParams answers without
// forcing the class.
func (l *Loader) classFor(ctx *sema.Context, obj *types.TypeName) *sema.Symbol {
	if sym, ok := l.classes[obj]; ok {
		return sym
	}
	pkgSym := l.packageFor(ctx, obj.Pkg())
	name := ctx.Names().Intern(obj.Name())
	for _, s := range pkgSym.Class().Decls(ctx).LookupAll(name) {
		// a previous load of the same path mirrored it already
		if s.IsClass() {
			l.classes[obj] = s
			return s
		}
	}
	var flags sema.FlagSet
	if types.IsInterface(obj.Type()) {
		flags |= sema.Trait
	}
	c := &classLoader{l: l, obj: obj}
	sym := ctx.NewClassSymbol(pkgSym, name, flags, c)
	l.classes[obj] = sym
	pkgSym.Class().Enter(ctx, sym)
	c.pre = l.preScope(ctx, obj, sym)
	return sym
}

// preScope materializes a defined type's type parameters ahead of
// completion. The class symbol is already cached when this runs, so a
// recursive constraint resolves to the class being created.
func (l *Loader) preScope(ctx *sema.Context, obj *types.TypeName, cls *sema.Symbol) *sema.Scope {
	pre := sema.NewScope()
	tps := obj.Type().(*types.Named).TypeParams()
	for i := 0; tps != nil && i < tps.Len(); i++ {
		tp := tps.At(i)
		bounds := &sema.TypeBounds{Lo: sema.NoType, Hi: l.mapType(ctx, tp.Constraint())}
		sym := ctx.NewSymbol(cls, ctx.Names().Intern(tp.Obj().Name()), sema.TypeParam, bounds)
		l.tparams[tp.Obj()] = sym
		pre.Enter(sym)
	}
	return pre
}

// ensurePackage finds or creates a child package of owner.
func ensurePackage(ctx *sema.Context, owner *sema.Symbol, name sema.Name) *sema.Symbol {
	for _, s := range owner.Class().Decls(ctx).LookupAll(name) {
		if s.IsClass() && s.Denot().RawFlags().Is(sema.Package) {
			return s
		}
	}
	pkg := ctx.NewPackageSymbol(owner, name)
	owner.Class().Enter(ctx, pkg)
	return pkg
}
