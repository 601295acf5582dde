package sema

import (
	"fmt"
	"os"
)

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// RunID identifies one compiler run. Caches whose results depend on the
// whole class hierarchy are tagged with the run that produced them and
// rebuilt when a later run reads them.
type RunID uint32

// FirstRunID is the run a fresh context starts in.
const FirstRunID RunID = 1

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// DefaultMemberCacheSize is the per-class member lookup cache capacity
// used when the embedder does not configure one.
const DefaultMemberCacheSize = 8

// Settings tunes the engine. Zero values mean defaults.
type Settings struct {
	// MemberCacheSize bounds each class's member lookup cache.
	MemberCacheSize int
}

func (s Settings) memberCacheSize() int {
	if s.MemberCacheSize > 0 {
		return s.MemberCacheSize
	}
	return DefaultMemberCacheSize
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// ContextBase is the state shared by every context derived from one
// NewContext call: the interning tables, the standard definitions, the
// symbol id allocator, and the current run.
type ContextBase struct {
	names    *NameTable
	std      StdNames
	bits     *BitsTable
	defs     *StdDefs
	reporter Reporter
	settings Settings

	runID     RunID
	nextSymID SymID
}

// Context is the engine's working state: the shared base plus the current
// lexical owner and phase. Derived contexts (WithOwner, WithErasedTypes)
// are shallow copies sharing the same base.
//
// The engine is single-threaded: a Context and the symbols created
// through it must be confined to one goroutine.
type Context struct {
	base        *ContextBase
	owner       *Symbol
	erasedTypes bool
}

// Option configures a new context.
type Option func(*ContextBase)

// WithReporter routes diagnostics to r instead of standard error.
func WithReporter(r Reporter) Option {
	return func(b *ContextBase) { b.reporter = r }
}

// WithSettings applies engine tuning.
func WithSettings(s Settings) Option {
	return func(b *ContextBase) { b.settings = s }
}

// NewContext creates a fresh engine context with the standard definitions
// bootstrapped. The initial owner is the root package.
func NewContext(opts ...Option) *Context {
	base := &ContextBase{
		names:     NewNameTable(),
		bits:      NewBitsTable(),
		reporter:  &ConsoleReporter{W: os.Stderr},
		runID:     FirstRunID,
		nextSymID: 1,
	}
	base.std = newStdNames(base.names)
	for _, opt := range opts {
		opt(base)
	}
	ctx := &Context{base: base}
	base.defs = newStdDefs(ctx)
	ctx.owner = base.defs.RootPackage
	return ctx
}

// Names returns the context's name table.
func (ctx *Context) Names() *NameTable { return ctx.base.names }

// Std returns the interned standard names.
func (ctx *Context) Std() StdNames { return ctx.base.std }

// Bits returns the superclass bit set interning table.
func (ctx *Context) Bits() *BitsTable { return ctx.base.bits }

// Defs returns the standard definitions.
func (ctx *Context) Defs() *StdDefs { return ctx.base.defs }

// Settings returns the engine tuning.
func (ctx *Context) Settings() Settings { return ctx.base.settings }

// Run returns the current run id.
func (ctx *Context) Run() RunID { return ctx.base.runID }

// AdvanceRun starts a new run. Run-tagged caches are invalidated lazily:
// each is rebuilt the first time it is read in the new run.
func (ctx *Context) AdvanceRun() RunID {
	ctx.base.runID++
	log.Debugf("advanced to run %d", ctx.base.runID)
	return ctx.base.runID
}

// Owner returns the current lexical owner, the vantage point for
// accessibility checks.
func (ctx *Context) Owner() *Symbol { return ctx.owner }

// WithOwner returns a derived context whose current owner is sym.
func (ctx *Context) WithOwner(sym *Symbol) *Context {
	c := *ctx
	c.owner = sym
	return &c
}

// ErasedTypes reports whether the active phase has erased fine-grained
// types. Late phases relax prefix-sensitive accessibility.
func (ctx *Context) ErasedTypes() bool { return ctx.erasedTypes }

// WithErasedTypes returns a derived context with the erasure phase flag
// set accordingly.
func (ctx *Context) WithErasedTypes(erased bool) *Context {
	c := *ctx
	c.erasedTypes = erased
	return &c
}

// ---------------------------------------------------------------------------
// Reporting
// ---------------------------------------------------------------------------

// Report delivers a diagnostic to the configured reporter.
func (ctx *Context) Report(d Diagnostic) {
	ctx.base.reporter.Report(d)
}

// Error reports an error diagnostic at pos.
func (ctx *Context) Error(pos SrcPos, format string, args ...any) {
	ctx.Report(Diagnostic{Sev: SevError, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Warning reports a warning diagnostic at pos.
func (ctx *Context) Warning(pos SrcPos, format string, args ...any) {
	ctx.Report(Diagnostic{Sev: SevWarning, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// NameStr returns the string behind an interned name.
func (ctx *Context) NameStr(n Name) string { return ctx.base.names.Str(n) }

// SymName returns a symbol's bare name as a string.
func (ctx *Context) SymName(sym *Symbol) string { return ctx.NameStr(sym.Name()) }

// SymFullName returns a symbol's dot-separated full name as a string.
func (ctx *Context) SymFullName(sym *Symbol) string {
	if !sym.Exists() {
		return "<none>"
	}
	return ctx.NameStr(sym.Denot().FullName(ctx, '.'))
}

// ---------------------------------------------------------------------------
// Symbol creation
// ---------------------------------------------------------------------------

func (ctx *Context) allocID() SymID {
	id := ctx.base.nextSymID
	ctx.base.nextSymID++
	return id
}

func (ctx *Context) newSym(owner *Symbol, name Name, flags FlagSet, isClass bool) *Symbol {
	sym := &Symbol{id: ctx.allocID()}
	d := &SymDenotation{
		symbol: sym,
		owner:  owner,
		name:   name,
		flags:  flags,
		state:  statePending,
	}
	if isClass {
		d.classData = &ClassDenotation{common: d}
	}
	sym.denot = d
	return sym
}

// NewSymbol creates a completed term symbol.
func (ctx *Context) NewSymbol(owner *Symbol, name Name, flags FlagSet, info Type) *Symbol {
	sym := ctx.newSym(owner, name, flags, false)
	d := sym.denot
	d.info = info
	d.privateWithin = NoSymbol
	d.state = stateReady
	return sym
}

// NewLazySymbol creates a term symbol whose denotation completes on first
// read through the given completer.
func (ctx *Context) NewLazySymbol(owner *Symbol, name Name, flags FlagSet, c Completer) *Symbol {
	sym := ctx.newSym(owner, name, flags, false)
	sym.denot.completer = c
	return sym
}

// NewClassSymbol creates a class symbol whose denotation completes on
// first read through the given completer. The completer must install a
// *ClassInfo.
func (ctx *Context) NewClassSymbol(owner *Symbol, name Name, flags FlagSet, c Completer) *Symbol {
	sym := ctx.newSym(owner, name, flags, true)
	sym.denot.completer = c
	return sym
}

// NewCompleteClassSymbol creates a class symbol with parents and decls
// known up front.
func (ctx *Context) NewCompleteClassSymbol(owner *Symbol, name Name, flags FlagSet, parents []Type, decls *Scope) *Symbol {
	sym := ctx.newSym(owner, name, flags, true)
	d := sym.denot
	d.info = &ClassInfo{
		Prefix:       classPrefix(ctx, owner),
		Cls:          sym,
		ClassParents: parents,
		Decls:        decls,
	}
	d.privateWithin = NoSymbol
	d.state = stateReady
	d.classData.registerAsSubclass(ctx)
	return sym
}

// NewCompleteModuleSymbol creates a module value together with its module
// class, both completed. It returns the module value; the class is
// reachable through ModuleClass.
func (ctx *Context) NewCompleteModuleSymbol(owner *Symbol, name Name, modFlags, clsFlags FlagSet, parents []Type, decls *Scope) *Symbol {
	cls := ctx.NewCompleteClassSymbol(owner, ctx.moduleClassName(name), clsFlags|ModuleClass, parents, decls)
	mod := ctx.NewSymbol(owner, name, modFlags|Module, cls.Class().TypeConstructor(ctx))
	mod.denot.moduleClass = cls
	cls.denot.sourceModule = mod
	return mod
}

// NewLazyModuleSymbol creates a module value together with its module
// class. The class completes through c (wrapped so it can reach the
// module value); the module value completes by copying from the class.
func (ctx *Context) NewLazyModuleSymbol(owner *Symbol, name Name, modFlags, clsFlags FlagSet, c Completer) *Symbol {
	mcc := &ModuleClassCompleter{Inner: c}
	cls := ctx.NewClassSymbol(owner, ctx.moduleClassName(name), clsFlags|ModuleClass, mcc)
	mod := ctx.NewLazySymbol(owner, name, modFlags|Module, &ModuleCompleter{ModuleClass: cls})
	mcc.ModuleVal = mod
	mod.denot.moduleClass = cls
	cls.denot.sourceModule = mod
	return mod
}

// NewPackageSymbol creates a package with an empty, growable scope.
func (ctx *Context) NewPackageSymbol(owner *Symbol, name Name) *Symbol {
	return ctx.NewCompleteClassSymbol(owner, name, Package|Static, nil, NewScope())
}

// NewStubSymbol creates a symbol standing in for a reference that could
// not be resolved. Reading it reports the failure once and installs an
// inert info. source names where the dangling reference came from.
func (ctx *Context) NewStubSymbol(owner *Symbol, name Name, isClass bool, source string) *Symbol {
	stub := &StubCompleter{Source: source}
	if isClass {
		return ctx.NewClassSymbol(owner, name, Synthetic, stub)
	}
	return ctx.NewLazySymbol(owner, name, Synthetic, stub)
}

func (ctx *Context) moduleClassName(name Name) Name {
	return ctx.base.names.Intern(ctx.NameStr(name) + "$")
}

func classPrefix(ctx *Context, owner *Symbol) Type {
	if owner.Exists() && owner.IsClass() {
		return owner.Class().ThisType(ctx)
	}
	return NoPrefix
}
