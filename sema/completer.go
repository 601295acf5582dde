package sema

// ---------------------------------------------------------------------------
// Completers
// ---------------------------------------------------------------------------

// Completer fills in a denotation on first read. Complete must leave
// d.Info set; flags, privateWithin, and annotations may be added along
// the way. A completer runs at most once per denotation.
type Completer interface {
	Complete(ctx *Context, d *SymDenotation)
}

// PreCompleter is a completer that can expose a declaration scope before
// completion runs. Type parameters are read through it so that asking a
// class for its parameters does not force the whole class.
type PreCompleter interface {
	Completer
	// DeclScope returns the declarations known before completion, or nil.
	DeclScope() *Scope
}

// FuncCompleter adapts a plain function.
type FuncCompleter struct {
	Fn func(ctx *Context, d *SymDenotation)
}

func (c *FuncCompleter) Complete(ctx *Context, d *SymDenotation) { c.Fn(ctx, d) }

// ClassCompleter completes a class. PreDecls holds the declarations the
// loader already knows (at minimum the type parameters, in order); Fn
// must install the class info.
type ClassCompleter struct {
	PreDecls *Scope
	Fn       func(ctx *Context, d *SymDenotation)
}

func (c *ClassCompleter) Complete(ctx *Context, d *SymDenotation) { c.Fn(ctx, d) }

// DeclScope exposes the pre-completion declarations.
func (c *ClassCompleter) DeclScope() *Scope { return c.PreDecls }

// ModuleClassCompleter completes a module class. It wraps the loader's
// completer and keeps a back-reference to the module value, which the
// value's own completer copies from once the class is done.
type ModuleClassCompleter struct {
	ModuleVal *Symbol
	Inner     Completer
}

func (c *ModuleClassCompleter) Complete(ctx *Context, d *SymDenotation) {
	c.Inner.Complete(ctx, d)
}

// DeclScope exposes the inner completer's pre-completion declarations,
// if it has any.
func (c *ModuleClassCompleter) DeclScope() *Scope {
	if pc, ok := c.Inner.(PreCompleter); ok {
		return pc.DeclScope()
	}
	return nil
}

// ModuleCompleter completes a module value from its completed module
// class: the retained flags, the module-applicable annotations, the
// access boundary, and a reference to the class as the value's type.
type ModuleCompleter struct {
	ModuleClass *Symbol
}

func (c *ModuleCompleter) Complete(ctx *Context, d *SymDenotation) {
	from := c.ModuleClass.Denot()
	d.flags |= from.Flags(ctx) & RetainedModuleFlags
	for _, a := range from.Annotations(ctx) {
		if a.AppliesToModule() {
			d.annotations = append(d.annotations, a)
		}
	}
	d.privateWithin = from.PrivateWithin(ctx)
	d.info = c.ModuleClass.Class().TypeConstructor(ctx)
}

// StubCompleter stands in for a definition that a loaded artifact
// references but nothing can resolve. Forcing it reports the broken
// reference once and installs an inert info so dependents keep going.
type StubCompleter struct {
	// Source names the artifact the dangling reference came from.
	Source string
}

func (c *StubCompleter) Complete(ctx *Context, d *SymDenotation) {
	what := "term"
	if d.classData != nil {
		what = "class"
	}
	ctx.Error(d.pos, "bad reference: %s %s in %s is missing from %s",
		what, ctx.NameStr(d.name), ctx.SymFullName(d.owner), c.Source)
	log.Warningf("created stub for %s.%s (from %s)",
		ctx.SymFullName(d.owner), ctx.NameStr(d.name), c.Source)

	d.flags |= Erroneous
	if d.classData != nil {
		d.info = &ClassInfo{
			Prefix: classPrefix(ctx, d.owner),
			Cls:    d.symbol,
			Decls:  NewScope(),
		}
	} else {
		d.info = NewErrType("unresolved reference to " + ctx.NameStr(d.name))
	}
}
