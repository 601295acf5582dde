package sema

// ---------------------------------------------------------------------------
// Scope: Ordered declaration container
// ---------------------------------------------------------------------------

// Scope holds the declarations of an owner in declaration order.
//
// A scope may hold several symbols with the same name (overloads); lookups
// return them in declaration order. ClassDenotation layers Frozen checking
// and cache invalidation on top of Enter and Delete, so callers populating
// a completed class must use the ClassDenotation entry points, not the raw
// scope.
type Scope struct {
	syms  []*Symbol
	index map[Name][]*Symbol
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{index: make(map[Name][]*Symbol)}
}

// NewScopeWith creates a scope holding the given symbols in order.
func NewScopeWith(syms ...*Symbol) *Scope {
	s := NewScope()
	for _, sym := range syms {
		s.Enter(sym)
	}
	return s
}

// Enter appends a symbol to the scope.
func (s *Scope) Enter(sym *Symbol) {
	s.syms = append(s.syms, sym)
	name := sym.Name()
	s.index[name] = append(s.index[name], sym)
}

// Delete removes a symbol by identity. Returns false if it was not present.
func (s *Scope) Delete(sym *Symbol) bool {
	found := false
	for i, e := range s.syms {
		if e == sym {
			s.syms = append(s.syms[:i], s.syms[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	name := sym.Name()
	entries := s.index[name]
	for i, e := range entries {
		if e == sym {
			s.index[name] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(s.index[name]) == 0 {
		delete(s.index, name)
	}
	return true
}

// Lookup returns the first symbol with the given name, or nil.
func (s *Scope) Lookup(name Name) *Symbol {
	if entries := s.index[name]; len(entries) > 0 {
		return entries[0]
	}
	return nil
}

// LookupAll returns all symbols with the given name in declaration order.
// The returned slice is shared; callers must not mutate it.
func (s *Scope) LookupAll(name Name) []*Symbol {
	return s.index[name]
}

// Contains reports whether any symbol with the given name is declared.
func (s *Scope) Contains(name Name) bool {
	return len(s.index[name]) > 0
}

// ForEach calls fn for each symbol in declaration order.
func (s *Scope) ForEach(fn func(*Symbol)) {
	for _, sym := range s.syms {
		fn(sym)
	}
}

// All returns the declarations in order. The slice is a copy.
func (s *Scope) All() []*Symbol {
	out := make([]*Symbol, len(s.syms))
	copy(out, s.syms)
	return out
}

// Len returns the number of declarations.
func (s *Scope) Len() int {
	return len(s.syms)
}
