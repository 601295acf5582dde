package sema

import (
	"fmt"
	"slices"
)

// ---------------------------------------------------------------------------
// Completion states
// ---------------------------------------------------------------------------

// A denotation moves through exactly one forward pass: pending until the
// first read, in-progress while its completer runs, ready forever after.
// There is no way back.
type completionState uint8

const (
	statePending completionState = iota
	stateInProgress
	stateReady
)

// ---------------------------------------------------------------------------
// Cyclic references
// ---------------------------------------------------------------------------

// CyclicReference reports that resolving a definition required resolving
// itself. It is delivered by panic from deep inside the engine and meant
// to be recovered at an operation boundary; EnsureCompleted and
// CatchCyclic do that and hand it back as an ordinary error.
type CyclicReference struct {
	Sym *Symbol
	// Path is the symbol's rendered name, captured when the cycle was hit
	// so the error is printable without a context.
	Path string
}

func (e *CyclicReference) Error() string {
	return "cyclic reference involving " + e.Path
}

func newCyclic(ctx *Context, sym *Symbol) *CyclicReference {
	return &CyclicReference{Sym: sym, Path: ctx.SymFullName(sym)}
}

// CatchCyclic runs f and converts a CyclicReference panic into an error.
// Any other panic passes through.
func CatchCyclic(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CyclicReference); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	f()
	return nil
}

// ---------------------------------------------------------------------------
// Annotations
// ---------------------------------------------------------------------------

// Annotation marks a definition with an annotation class and optional
// rendered arguments.
type Annotation struct {
	Cls  *Symbol
	Args []string
	// ClassLocal keeps the annotation off the module value when a module
	// class's annotations are copied over.
	ClassLocal bool
}

// AppliesToModule reports whether a module value inherits this annotation
// from its module class.
func (a Annotation) AppliesToModule() bool { return !a.ClassLocal }

// Matches reports whether the annotation's class is cls or derives from it.
func (a Annotation) Matches(ctx *Context, cls *Symbol) bool {
	return a.Cls.Exists() && (a.Cls == cls || a.Cls.DerivesFrom(ctx, cls))
}

// ---------------------------------------------------------------------------
// SymDenotation
// ---------------------------------------------------------------------------

// SymDenotation is what a symbol means: its owner and name, its flags,
// its type, its access boundary, and its annotations. Identity (owner,
// name, position) is fixed at creation and readable at any time; the
// rest is only meaningful once the denotation is completed, and every
// accessor that needs it forces completion first.
//
// Completion is one-shot. A lazily created denotation carries a
// Completer; the first forcing read runs it, and re-entering a
// denotation that is mid-completion panics with *CyclicReference.
type SymDenotation struct {
	symbol *Symbol
	owner  *Symbol
	name   Name
	pos    SrcPos

	state     completionState
	completer Completer

	flags         FlagSet
	info          Type
	privateWithin *Symbol
	annotations   []Annotation

	// module value <-> module class links, fixed at creation
	moduleClass  *Symbol
	sourceModule *Symbol
	// companion class link, set by RegisterCompanions
	companion *Symbol

	// non-nil exactly when the symbol denotes a class
	classData *ClassDenotation
}

// Symbol returns the symbol this denotation describes.
func (d *SymDenotation) Symbol() *Symbol { return d.symbol }

// Name returns the denoted name. Never forces completion.
func (d *SymDenotation) Name() Name { return d.name }

// Owner returns the owning symbol. Never forces completion.
func (d *SymDenotation) Owner() *Symbol { return d.owner }

// Pos returns the source position, if known.
func (d *SymDenotation) Pos() SrcPos { return d.pos }

// SetPos records where the definition came from.
func (d *SymDenotation) SetPos(p SrcPos) { d.pos = p }

// IsCompleted reports whether the denotation has been filled in. It never
// forces completion.
func (d *SymDenotation) IsCompleted() bool { return d.state == stateReady }

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func (d *SymDenotation) ensureCompleted(ctx *Context) {
	switch d.state {
	case stateReady:
		return
	case stateInProgress:
		panic(newCyclic(ctx, d.symbol))
	}
	c := d.completer
	if c == nil {
		panic(fmt.Sprintf("SymDenotation.ensureCompleted: pending %s has no completer", ctx.NameStr(d.name)))
	}
	d.state = stateInProgress
	log.Debugf("completing %s", ctx.NameStr(d.name))
	c.Complete(ctx, d)
	if d.info == nil {
		panic(fmt.Sprintf("SymDenotation.ensureCompleted: completer for %s left no info", ctx.NameStr(d.name)))
	}
	if d.privateWithin == nil {
		d.privateWithin = NoSymbol
	}
	d.completer = nil
	d.state = stateReady
	if d.classData != nil {
		d.classData.registerAsSubclass(ctx)
	}
}

// EnsureCompleted forces completion, returning a *CyclicReference as an
// error instead of letting it propagate as a panic.
func (d *SymDenotation) EnsureCompleted(ctx *Context) error {
	return CatchCyclic(func() { d.ensureCompleted(ctx) })
}

// Info returns the denoted type, forcing completion.
func (d *SymDenotation) Info(ctx *Context) Type {
	d.ensureCompleted(ctx)
	return d.info
}

// SetInfo overwrites the denoted type. Intended for completers and for
// tools that patch loaded symbols.
func (d *SymDenotation) SetInfo(tp Type) { d.info = tp }

// Flags returns the flag set, forcing completion.
func (d *SymDenotation) Flags(ctx *Context) FlagSet {
	d.ensureCompleted(ctx)
	return d.flags
}

// RawFlags returns the flags set so far without forcing completion.
// Creation-time flags (access, structure, type-parameter marks) are
// reliable here; completer-added flags are not until IsCompleted.
func (d *SymDenotation) RawFlags() FlagSet { return d.flags }

// Is reports whether any flag of mask is set, forcing completion.
func (d *SymDenotation) Is(ctx *Context, mask FlagSet) bool {
	return d.Flags(ctx).Is(mask)
}

// SetFlag adds flags to the denotation.
func (d *SymDenotation) SetFlag(mask FlagSet) { d.flags |= mask }

// ResetFlag removes flags. Frozen is one-way and cannot be removed.
func (d *SymDenotation) ResetFlag(mask FlagSet) {
	if mask.Is(Frozen) {
		panic("SymDenotation.ResetFlag: Frozen cannot be cleared")
	}
	d.flags &^= mask
}

// PrivateWithin returns the access-boundary symbol, NoSymbol if none,
// forcing completion.
func (d *SymDenotation) PrivateWithin(ctx *Context) *Symbol {
	d.ensureCompleted(ctx)
	return d.privateWithin
}

// SetPrivateWithin records a qualified-access boundary.
func (d *SymDenotation) SetPrivateWithin(sym *Symbol) { d.privateWithin = sym }

// Annotations returns the annotations in declaration order, forcing
// completion.
func (d *SymDenotation) Annotations(ctx *Context) []Annotation {
	d.ensureCompleted(ctx)
	return d.annotations
}

// AddAnnotation appends an annotation.
func (d *SymDenotation) AddAnnotation(a Annotation) {
	d.annotations = append(d.annotations, a)
}

// HasAnnotation reports whether any annotation's class is cls or a
// subclass of it.
func (d *SymDenotation) HasAnnotation(ctx *Context, cls *Symbol) bool {
	for _, a := range d.Annotations(ctx) {
		if a.Matches(ctx, cls) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Module and companion links
// ---------------------------------------------------------------------------

// ModuleClass returns the class side of a module value, NoSymbol for
// anything else. The link is fixed at creation and never forces.
func (d *SymDenotation) ModuleClass() *Symbol {
	if d.moduleClass == nil {
		return NoSymbol
	}
	return d.moduleClass
}

// SourceModule returns the value side of a module class, NoSymbol for
// anything else. The link is fixed at creation and never forces.
func (d *SymDenotation) SourceModule() *Symbol {
	if d.sourceModule == nil {
		return NoSymbol
	}
	return d.sourceModule
}

// LinkedClass returns the companion on the other side of a class /
// module-class pair, NoSymbol when none was registered.
func (d *SymDenotation) LinkedClass() *Symbol {
	if d.companion == nil {
		return NoSymbol
	}
	return d.companion
}

// RegisterCompanions links a class with the module class of its companion
// module, in both directions.
func RegisterCompanions(class, module *Symbol) {
	mc := module.Denot().ModuleClass()
	if !class.Exists() || !mc.Exists() {
		return
	}
	class.denot.companion = mc
	mc.denot.companion = class
}

// ---------------------------------------------------------------------------
// Full names
// ---------------------------------------------------------------------------

// FullName returns the symbol's qualified name with the given separator.
// The owner chain is walked upward, package-object wrappers are skipped,
// and the walk stops at the effective root. Class results are memoized
// per separator.
func (d *SymDenotation) FullName(ctx *Context, sep byte) Name {
	if cd := d.classData; cd != nil {
		if cached, ok := cd.fullNameCache[sep]; ok {
			return cached
		}
	}
	name := d.computeFullName(ctx, sep)
	if cd := d.classData; cd != nil {
		if cd.fullNameCache == nil {
			cd.fullNameCache = make(map[byte]Name)
		}
		cd.fullNameCache[sep] = name
	}
	return name
}

func (d *SymDenotation) computeFullName(ctx *Context, sep byte) Name {
	owner := d.owner
	for owner.Exists() && owner.Denot().Flags(ctx).Is(PackageObject) {
		owner = owner.Owner()
	}
	if !owner.Exists() || ctx.Defs().IsEffectiveRoot(owner) {
		return d.name
	}
	prefix := ctx.NameStr(owner.Denot().FullName(ctx, sep))
	return ctx.Names().Intern(prefix + string([]byte{sep}) + ctx.NameStr(d.name))
}

// ---------------------------------------------------------------------------
// Copies
// ---------------------------------------------------------------------------

// CopyOpt overrides one field of a copied denotation.
type CopyOpt func(*SymDenotation)

// CopyOwner overrides the owner.
func CopyOwner(owner *Symbol) CopyOpt {
	return func(d *SymDenotation) { d.owner = owner }
}

// CopyName overrides the name.
func CopyName(name Name) CopyOpt {
	return func(d *SymDenotation) { d.name = name }
}

// CopyFlags overrides the flag set.
func CopyFlags(flags FlagSet) CopyOpt {
	return func(d *SymDenotation) { d.flags = flags }
}

// CopyInfo overrides the info.
func CopyInfo(tp Type) CopyOpt {
	return func(d *SymDenotation) { d.info = tp }
}

// CopyPrivateWithin overrides the qualified-access boundary.
func CopyPrivateWithin(sym *Symbol) CopyOpt {
	return func(d *SymDenotation) { d.privateWithin = sym }
}

// CopyAnnotations overrides the annotation list.
func CopyAnnotations(annots []Annotation) CopyOpt {
	return func(d *SymDenotation) { d.annotations = annots }
}

// CopySymDenotation forces completion, then returns a completed copy with
// the given overrides applied. The copy describes the same symbol; class
// state stays shared with the original.
func (d *SymDenotation) CopySymDenotation(ctx *Context, opts ...CopyOpt) *SymDenotation {
	d.ensureCompleted(ctx)
	nd := &SymDenotation{
		symbol:        d.symbol,
		owner:         d.owner,
		name:          d.name,
		pos:           d.pos,
		state:         stateReady,
		flags:         d.flags,
		info:          d.info,
		privateWithin: d.privateWithin,
		annotations:   slices.Clone(d.annotations),
		moduleClass:   d.moduleClass,
		sourceModule:  d.sourceModule,
		companion:     d.companion,
		classData:     d.classData,
	}
	for _, opt := range opts {
		opt(nd)
	}
	return nd
}
