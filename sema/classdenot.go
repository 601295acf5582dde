package sema

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/chazu/corvus/sema/fingerprint"
)

// ---------------------------------------------------------------------------
// Name sets and filters
// ---------------------------------------------------------------------------

// NameSet is a set of interned names.
type NameSet map[Name]struct{}

// Add inserts a name.
func (s NameSet) Add(n Name) { s[n] = struct{}{} }

// Contains reports membership.
func (s NameSet) Contains(n Name) bool {
	_, ok := s[n]
	return ok
}

// NameFilter selects names during member enumeration. Filters are
// compared by pointer, and the per-class name-set cache keys on them, so
// callers should create each filter once and reuse it.
type NameFilter struct {
	label string
	Keep  func(ctx *Context, pre Type, n Name) bool
}

// NewNameFilter creates a filter with a label for debugging.
func NewNameFilter(label string, keep func(ctx *Context, pre Type, n Name) bool) *NameFilter {
	return &NameFilter{label: label, Keep: keep}
}

func (f *NameFilter) String() string { return f.label }

// AnyNameFilter keeps every name.
var AnyNameFilter = NewNameFilter("any", func(*Context, Type, Name) bool { return true })

// ---------------------------------------------------------------------------
// ClassDenotation
// ---------------------------------------------------------------------------

// ClassDenotation is the class-specific side of a denotation: the
// linearized ancestry, the member lookup machinery, and the caches that
// make both fast. It is created together with its class symbol and tagged
// onto the plain denotation; Symbol.Class returns it.
//
// Three caches live here, each with its own invalidation rule. The
// linearization and its bit set are computed once (ancestry is fixed
// after completion). The member lookup cache is a bounded LRU, dropped
// entry-wise when the class's own scope changes. The base-type cache is
// tagged with the run that filled it and rebuilt when read in a later
// run.
type ClassDenotation struct {
	common *SymDenotation

	typeParams     []*Symbol
	typeParamsDone bool

	myThisType *ThisType
	myTypeRef  *TypeRef

	myBaseClasses   []*Symbol
	mySuperBits     *ClassBits
	basesInProgress bool

	// memberFP is nil until first requested; hasSubclasses records that
	// some completed class named this one as a parent.
	memberFP      *fingerprint.FingerPrint
	hasSubclasses bool

	memberCache  *lru.Cache[Name, []*Symbol]
	memberHits   uint64
	memberMisses uint64

	baseTypeCache map[Type]Type
	baseTypeRun   RunID

	memberNamesCache map[*NameFilter]NameSet

	fullNameCache map[byte]Name
}

// Symbol returns the class symbol.
func (cd *ClassDenotation) Symbol() *Symbol { return cd.common.symbol }

// Denot returns the plain denotation side.
func (cd *ClassDenotation) Denot() *SymDenotation { return cd.common }

// Decls returns the class's declaration scope, forcing completion.
func (cd *ClassDenotation) Decls(ctx *Context) *Scope {
	if ci, ok := cd.common.Info(ctx).(*ClassInfo); ok {
		if ci.Decls == nil {
			ci.Decls = NewScope()
		}
		return ci.Decls
	}
	// erroneous class with a non-class info; behave as empty
	return NewScope()
}

// DirectParents returns the declared parent types in declaration order,
// forcing completion.
func (cd *ClassDenotation) DirectParents(ctx *Context) []Type {
	if ci, ok := cd.common.Info(ctx).(*ClassInfo); ok {
		return ci.ClassParents
	}
	return nil
}

// ThisType returns the memoized type of this class's `this`.
func (cd *ClassDenotation) ThisType(ctx *Context) *ThisType {
	if cd.myThisType == nil {
		cd.myThisType = &ThisType{Cls: cd.common.symbol}
	}
	return cd.myThisType
}

// TypeConstructor returns the memoized reference to this class as seen
// from its owner.
func (cd *ClassDenotation) TypeConstructor(ctx *Context) *TypeRef {
	if cd.myTypeRef == nil {
		cd.myTypeRef = &TypeRef{Prefix: classPrefix(ctx, cd.common.owner), Sym: cd.common.symbol}
	}
	return cd.myTypeRef
}

// ---------------------------------------------------------------------------
// Type parameters
// ---------------------------------------------------------------------------

// TypeParams returns the class's type parameters in declaration order.
// If the class is still pending and its completer exposes a
// pre-completion scope, the parameters are read from there without
// forcing the class; otherwise completion is forced. The result is
// computed once.
func (cd *ClassDenotation) TypeParams(ctx *Context) []*Symbol {
	if cd.typeParamsDone {
		return cd.typeParams
	}
	var decls *Scope
	if !cd.common.IsCompleted() {
		if pc, ok := cd.common.completer.(PreCompleter); ok {
			decls = pc.DeclScope()
		}
	}
	if decls == nil {
		decls = cd.Decls(ctx)
	}
	var params []*Symbol
	decls.ForEach(func(sym *Symbol) {
		if sym.Denot().RawFlags().Is(TypeParam) {
			params = append(params, sym)
		}
	})
	cd.typeParams = params
	cd.typeParamsDone = true
	return params
}

// ---------------------------------------------------------------------------
// Linearization
// ---------------------------------------------------------------------------

// BaseClasses returns the linearized ancestry: this class first, then
// every ancestor in parent-first depth order, each exactly once.
// Computing it completes the ancestors. A cycle among parents panics
// with *CyclicReference.
func (cd *ClassDenotation) BaseClasses(ctx *Context) []*Symbol {
	if cd.myBaseClasses != nil {
		return cd.myBaseClasses
	}
	if cd.basesInProgress {
		panic(newCyclic(ctx, cd.common.symbol))
	}
	cd.basesInProgress = true
	defer func() { cd.basesInProgress = false }()

	var seen, locked idSet
	var bcs []*Symbol
	var visit func(c *ClassDenotation)
	visit = func(c *ClassDenotation) {
		id := c.common.symbol.id
		if seen.has(id) {
			return
		}
		if locked.has(id) {
			panic(newCyclic(ctx, c.common.symbol))
		}
		locked.add(id)
		bcs = append(bcs, c.common.symbol)
		for _, p := range c.DirectParents(ctx) {
			if pc := ClassSymOf(ctx, p); pc.Exists() && pc.IsClass() {
				visit(pc.Class())
			}
		}
		locked.remove(id)
		seen.add(id)
	}
	visit(cd)

	cd.myBaseClasses = bcs
	cd.mySuperBits = ctx.Bits().Intern(seen.words)
	return bcs
}

// superBits returns the interned bit set over the ids of BaseClasses.
func (cd *ClassDenotation) superBits(ctx *Context) *ClassBits {
	if cd.mySuperBits == nil {
		cd.BaseClasses(ctx)
	}
	return cd.mySuperBits
}

// IsNonBottomSubClass reports whether this class derives from base by
// the declared parent relation. Every class derives from itself.
// Erroneous classes conform leniently, cutting error cascades.
func (cd *ClassDenotation) IsNonBottomSubClass(ctx *Context, base *Symbol) bool {
	if !base.Exists() || !base.IsClass() {
		return false
	}
	if base == cd.common.symbol {
		return true
	}
	if cd.common.Is(ctx, Erroneous) || base.Denot().Is(ctx, Erroneous) {
		return true
	}
	return cd.superBits(ctx).Contains(base.ID())
}

// IsSubClass is IsNonBottomSubClass extended with the bottom classes,
// which are subclasses of every class.
func (cd *ClassDenotation) IsSubClass(ctx *Context, base *Symbol) bool {
	if cd.IsNonBottomSubClass(ctx, base) {
		return true
	}
	sym := cd.common.symbol
	return base.IsClass() && (sym == ctx.Defs().NothingClass || sym == ctx.Defs().NullClass)
}

// registerAsSubclass records this class as a known subclass of each of
// its direct parents. Runs once, right after the class's info is in
// place.
func (cd *ClassDenotation) registerAsSubclass(ctx *Context) {
	for _, p := range cd.DirectParents(ctx) {
		if pc := ClassSymOf(ctx, p); pc.Exists() && pc.IsClass() {
			pc.Class().noteSubclass()
		}
	}
}

func (cd *ClassDenotation) noteSubclass() { cd.hasSubclasses = true }

// HasKnownSubclasses reports whether some completed class has named this
// one as a parent.
func (cd *ClassDenotation) HasKnownSubclasses() bool { return cd.hasSubclasses }

// ---------------------------------------------------------------------------
// Member fingerprint
// ---------------------------------------------------------------------------

// MemberFingerprint returns the bloom filter over every member name this
// class contributes to subclasses: its own declarations plus all
// inherited ones. Only classes known to have subclasses carry one;
// asking for it on any other class is a programming error. Computing it
// marks all parents Frozen.
func (cd *ClassDenotation) MemberFingerprint(ctx *Context) *fingerprint.FingerPrint {
	if !cd.hasSubclasses {
		panic(fmt.Sprintf("ClassDenotation.MemberFingerprint: %s has no known subclasses", ctx.SymName(cd.common.symbol)))
	}
	if cd.memberFP == nil {
		cd.memberFP = cd.computeFingerprint(ctx)
		log.Debugf("computed member fingerprint of %s", ctx.NameStr(cd.common.name))
	}
	return cd.memberFP
}

func (cd *ClassDenotation) computeFingerprint(ctx *Context) *fingerprint.FingerPrint {
	var fp fingerprint.FingerPrint
	cd.Decls(ctx).ForEach(func(sym *Symbol) {
		fp.Include(ctx.Names().Hash(sym.Name()))
	})
	for _, p := range cd.DirectParents(ctx) {
		pc := ClassSymOf(ctx, p)
		if !pc.Exists() || !pc.IsClass() {
			continue
		}
		pcd := pc.Class()
		pcd.noteSubclass()
		fp.IncludeAll(pcd.MemberFingerprint(ctx))
		pcd.common.SetFlag(Frozen)
	}
	return &fp
}

// ---------------------------------------------------------------------------
// Scope mutation
// ---------------------------------------------------------------------------

// Enter adds a declaration to the class. The fingerprint, if already
// computed, absorbs the new name; the member cache entry for that name
// is dropped. Entering into a Frozen class is a programming error.
func (cd *ClassDenotation) Enter(ctx *Context, sym *Symbol) {
	if cd.common.Is(ctx, Frozen) {
		panic(fmt.Sprintf("ClassDenotation.Enter: %s is frozen", ctx.SymFullName(cd.common.symbol)))
	}
	cd.Decls(ctx).Enter(sym)
	if cd.memberFP != nil {
		cd.memberFP.Include(ctx.Names().Hash(sym.Name()))
	}
	if cd.memberCache != nil {
		cd.memberCache.Remove(sym.Name())
	}
}

// Delete removes a declaration from the class. Deletion can shrink the
// member name set, which a bloom filter cannot express, so the
// fingerprint is recomputed from scratch; the member cache entry for
// that name is dropped. Deleting from a Frozen class is a programming
// error.
func (cd *ClassDenotation) Delete(ctx *Context, sym *Symbol) {
	if cd.common.Is(ctx, Frozen) {
		panic(fmt.Sprintf("ClassDenotation.Delete: %s is frozen", ctx.SymFullName(cd.common.symbol)))
	}
	cd.Decls(ctx).Delete(sym)
	if cd.memberFP != nil {
		cd.memberFP = cd.computeFingerprint(ctx)
	}
	if cd.memberCache != nil {
		cd.memberCache.Remove(sym.Name())
	}
}

// ---------------------------------------------------------------------------
// Member lookup
// ---------------------------------------------------------------------------

// MembersNamed returns every member of this class with the given name:
// own declarations first, then inherited ones. Own declarations shadow
// same-named inherited ones; a parent's private declarations are not
// inherited; a member reachable through several parents appears once.
// Results are cached in a bounded LRU and must not be mutated.
//
// For classes with known subclasses the member fingerprint is consulted
// first: a name the filter excludes returns the empty result without
// touching parents.
func (cd *ClassDenotation) MembersNamed(ctx *Context, name Name) []*Symbol {
	if cd.memberCache == nil {
		c, err := lru.New[Name, []*Symbol](ctx.Settings().memberCacheSize())
		if err != nil {
			panic("ClassDenotation.MembersNamed: " + err.Error())
		}
		cd.memberCache = c
	}
	if res, ok := cd.memberCache.Get(name); ok {
		cd.memberHits++
		return res
	}
	cd.memberMisses++
	var res []*Symbol
	if !cd.hasSubclasses || cd.MemberFingerprint(ctx).Contains(ctx.Names().Hash(name)) {
		res = cd.computeMembersNamed(ctx, name)
	}
	cd.memberCache.Add(name, res)
	return res
}

func (cd *ClassDenotation) computeMembersNamed(ctx *Context, name Name) []*Symbol {
	own := cd.Decls(ctx).LookupAll(name)
	if len(own) > 0 {
		return append([]*Symbol(nil), own...)
	}
	var res []*Symbol
	for _, p := range cd.DirectParents(ctx) {
		pc := ClassSymOf(ctx, p)
		if !pc.Exists() || !pc.IsClass() {
			continue
		}
		for _, m := range pc.Class().MembersNamed(ctx, name) {
			if m.Denot().RawFlags().Is(Private) {
				continue
			}
			if containsSym(res, m) {
				continue
			}
			res = append(res, m)
		}
	}
	return res
}

// Member returns the first member with the given name, or NoSymbol.
func (cd *ClassDenotation) Member(ctx *Context, name Name) *Symbol {
	if ms := cd.MembersNamed(ctx, name); len(ms) > 0 {
		return ms[0]
	}
	return NoSymbol
}

// MatchingDecl returns this class's own declaration matching both name
// and signature, or NoSymbol. This is the primitive behind override
// checks: a member overrides whatever MatchingDecl finds in a base class.
func (cd *ClassDenotation) MatchingDecl(ctx *Context, name Name, sig Signature) *Symbol {
	for _, m := range cd.Decls(ctx).LookupAll(name) {
		if SigOf(ctx, m.Denot().Info(ctx)).Matches(sig) {
			return m
		}
	}
	return NoSymbol
}

func containsSym(syms []*Symbol, sym *Symbol) bool {
	for _, s := range syms {
		if s == sym {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Member name enumeration
// ---------------------------------------------------------------------------

// MemberNames returns every member name the filter keeps, own and
// inherited, each parent's contribution projected through this class's
// this-type. Results are cached per filter; computing them freezes the
// class, so enumeration is only for classes that are done growing.
// Package classes keep growing as loading proceeds and are therefore
// never cached or frozen.
func (cd *ClassDenotation) MemberNames(ctx *Context, filter *NameFilter) NameSet {
	if cd.common.Is(ctx, Package) {
		return cd.computeMemberNames(ctx, filter)
	}
	if cached, ok := cd.memberNamesCache[filter]; ok {
		return cached
	}
	cd.common.SetFlag(Frozen)
	names := cd.computeMemberNames(ctx, filter)
	if cd.memberNamesCache == nil {
		cd.memberNamesCache = make(map[*NameFilter]NameSet)
	}
	cd.memberNamesCache[filter] = names
	return names
}

func (cd *ClassDenotation) computeMemberNames(ctx *Context, filter *NameFilter) NameSet {
	names := make(NameSet)
	pre := cd.ThisType(ctx)
	for _, p := range cd.DirectParents(ctx) {
		pc := ClassSymOf(ctx, p)
		if !pc.Exists() || !pc.IsClass() {
			continue
		}
		for n := range pc.Class().MemberNames(ctx, filter) {
			if filter.Keep(ctx, pre, n) {
				names.Add(n)
			}
		}
	}
	cd.Decls(ctx).ForEach(func(sym *Symbol) {
		if filter.Keep(ctx, pre, sym.Name()) {
			names.Add(sym.Name())
		}
	})
	return names
}

// ---------------------------------------------------------------------------
// Base types
// ---------------------------------------------------------------------------

// btInProgress marks a base-type cache entry whose computation is on the
// stack. Finding one on re-entry means the recursion closed on itself.
type btInProgressType struct{}

func (btInProgressType) Exists() bool { return false }

var btInProgress Type = btInProgressType{}

// BaseTypeOf returns tp as an instance of this class: the unique
// supertype of tp whose class is this class, or NoType when tp does not
// derive from it. Results are cached per run; a computation that closes
// on itself panics with *CyclicReference.
func (cd *ClassDenotation) BaseTypeOf(ctx *Context, tp Type) Type {
	if !cacheableType(tp) {
		return cd.computeBaseTypeOf(ctx, tp)
	}
	if cd.baseTypeCache != nil && cd.baseTypeRun != ctx.Run() {
		log.Debugf("dropping base type cache of %s (run %d -> %d)",
			ctx.NameStr(cd.common.name), cd.baseTypeRun, ctx.Run())
		cd.baseTypeCache = nil
	}
	if cd.baseTypeCache == nil {
		cd.baseTypeCache = make(map[Type]Type)
		cd.baseTypeRun = ctx.Run()
	}
	if bt, ok := cd.baseTypeCache[tp]; ok {
		if bt == btInProgress {
			delete(cd.baseTypeCache, tp)
			panic(newCyclic(ctx, cd.common.symbol))
		}
		return bt
	}
	cd.baseTypeCache[tp] = btInProgress
	bt := cd.computeBaseTypeOf(ctx, tp)
	cd.baseTypeCache[tp] = bt
	return bt
}

func (cd *ClassDenotation) computeBaseTypeOf(ctx *Context, tp Type) Type {
	sym := cd.common.symbol
	if sym.IsStatic(ctx) && DerivesFrom(ctx, tp, sym) {
		// a static class is its own instantiation wherever it appears
		return cd.TypeConstructor(ctx)
	}
	switch t := tp.(type) {
	case *TypeRef:
		if t.Sym == sym {
			return t
		}
		if pcd := t.Sym.Class(); pcd != nil {
			if pcd.superBits(ctx).Contains(sym.ID()) {
				return cd.foldGlbBase(ctx, pcd.DirectParents(ctx))
			}
			return NoType
		}
		return cd.BaseTypeOf(ctx, t.Underlying(ctx))
	case *ThisType:
		return cd.BaseTypeOf(ctx, t.Underlying(ctx))
	case *ClassInfo:
		if t.Cls == sym {
			return cd.TypeConstructor(ctx)
		}
		if tcd := t.Cls.Class(); tcd != nil && tcd.superBits(ctx).Contains(sym.ID()) {
			return cd.foldGlbBase(ctx, t.ClassParents)
		}
		return NoType
	case *AndType:
		return Glb(cd.BaseTypeOf(ctx, t.Left), cd.BaseTypeOf(ctx, t.Right))
	case *OrType:
		return Lub(cd.BaseTypeOf(ctx, t.Left), cd.BaseTypeOf(ctx, t.Right))
	case TypeProxy:
		return cd.BaseTypeOf(ctx, t.Underlying(ctx))
	default:
		return NoType
	}
}

func (cd *ClassDenotation) foldGlbBase(ctx *Context, parents []Type) Type {
	bt := NoType
	for _, p := range parents {
		bt = Glb(bt, cd.BaseTypeOf(ctx, p))
	}
	return bt
}

// ---------------------------------------------------------------------------
// Constructors and stats
// ---------------------------------------------------------------------------

// PrimaryConstructor returns the class's own constructor declaration:
// the trait initializer for traits and their implementation classes, the
// regular initializer otherwise. NoSymbol when the class has none.
func (cd *ClassDenotation) PrimaryConstructor(ctx *Context) *Symbol {
	name := ctx.Std().Init
	if cd.common.Is(ctx, Trait|ImplClass) {
		name = ctx.Std().TraitInit
	}
	if s := cd.Decls(ctx).Lookup(name); s != nil {
		return s
	}
	return NoSymbol
}

// MemberCacheStats reports the member lookup cache's effectiveness.
type MemberCacheStats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (s MemberCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// MemberCacheStats returns this class's member lookup cache counters.
func (cd *ClassDenotation) MemberCacheStats() MemberCacheStats {
	st := MemberCacheStats{Hits: cd.memberHits, Misses: cd.memberMisses}
	if cd.memberCache != nil {
		st.Len = cd.memberCache.Len()
	}
	return st
}
