// Package sema implements the Corvus compiler's symbol engine.
//
// This package contains:
//   - Interned names with precomputed fingerprint hashes
//   - Symbols and their lazily completed denotations
//   - Class denotations: linearization, member lookup, base types
//   - Bloom-filtered, LRU-cached member resolution
//   - Accessibility checking against a context's current owner
//
// The engine is single-threaded: a Context and everything created
// through it belong to one goroutine.
package sema
