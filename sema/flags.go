package sema

import "strings"

// ---------------------------------------------------------------------------
// FlagSet: Symbol properties as a bitset
// ---------------------------------------------------------------------------

// FlagSet is a bitset of symbol properties. Flags are set by symbol creators
// and completers; reading them through SymDenotation.Flags forces completion
// first, so a completed denotation's flags are stable unless deliberately
// mutated via SetFlag/ResetFlag.
type FlagSet uint64

const (
	// Private restricts access to the owner itself.
	Private FlagSet = 1 << iota
	// Protected restricts access to subclasses of the owner.
	Protected
	// Local marks members accessible only through the owner's own instance.
	Local
	// Static marks symbols whose meaning does not depend on an enclosing
	// instance: packages, top-level modules, and their members.
	Static
	// Module marks the term-level module value.
	Module
	// ModuleClass marks the class underlying a module.
	ModuleClass
	// Package marks package symbols (term and class side).
	Package
	// PackageObject marks the synthetic wrapper class holding a package's
	// top-level members. Full-name printing skips these wrappers.
	PackageObject
	// Trait marks trait classes.
	Trait
	// ImplClass marks synthetic trait implementation classes.
	ImplClass
	// TypeParam marks type-parameter symbols.
	TypeParam
	// Method marks term symbols with method types.
	Method
	// Synthetic marks compiler-generated symbols (loaders, stubs).
	Synthetic
	// Erroneous marks symbols that failed to resolve or complete. Erroneous
	// classes are treated as universally compatible in subclass tests so a
	// single failure does not cascade.
	Erroneous
	// Frozen forbids further Enter/Delete on a class's declaration scope.
	// Set once a cache depending on member-set finality has been built;
	// never reset.
	Frozen
)

// EmptyFlags is the empty set.
const EmptyFlags FlagSet = 0

// Flag combinations used by the engine.
const (
	// PrivateOrLocal bounds access at the owner itself.
	PrivateOrLocal = Private | Local
	// StaticProtected widens protected access to everywhere for
	// instance-independent members.
	StaticProtected = Static | Protected
	// AccessFlags are the flags that restrict member visibility.
	AccessFlags = Private | Protected | Local
	// RetainedModuleFlags are the module-class flags a module value copies
	// during completion.
	RetainedModuleFlags = Private | Protected | Local | Static | Package | Synthetic | Erroneous
)

// Is reports whether any flag in mask is set.
func (f FlagSet) Is(mask FlagSet) bool { return f&mask != 0 }

// IsAll reports whether every flag in mask is set.
func (f FlagSet) IsAll(mask FlagSet) bool { return f&mask == mask }

// With returns the set extended by mask.
func (f FlagSet) With(mask FlagSet) FlagSet { return f | mask }

// Without returns the set with mask removed.
func (f FlagSet) Without(mask FlagSet) FlagSet { return f &^ mask }

var flagNames = []struct {
	flag FlagSet
	name string
}{
	{Private, "private"},
	{Protected, "protected"},
	{Local, "local"},
	{Static, "static"},
	{Module, "module"},
	{ModuleClass, "module-class"},
	{Package, "package"},
	{PackageObject, "package-object"},
	{Trait, "trait"},
	{ImplClass, "impl-class"},
	{TypeParam, "type-param"},
	{Method, "method"},
	{Synthetic, "synthetic"},
	{Erroneous, "erroneous"},
	{Frozen, "frozen"},
}

// String renders the set as space-separated flag names, for diagnostics.
func (f FlagSet) String() string {
	if f == EmptyFlags {
		return "<none>"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Is(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, " ")
}
