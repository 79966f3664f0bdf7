package mergeindex

import (
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/spanidx/internal/types"
)

// RegisteredDefinition is the canonical definition of a symbol across all
// files. It also counts the reference spans that target the symbol and the
// extra definitions registered for it.
type RegisteredDefinition struct {
	Definition types.DefinitionSymbol

	mu         sync.Mutex
	defined    atomic.Bool
	refs       atomic.Int64
	duplicates atomic.Int64
}

// References returns how many non-definition reference spans, across every
// uploaded file, target the symbol. Spans recorded before the definition
// arrived are included.
func (r *RegisteredDefinition) References() int64 {
	return r.refs.Load()
}

// Duplicates returns how many registrations hit the definition after the
// first.
func (r *RegisteredDefinition) Duplicates() int64 {
	return r.duplicates.Load()
}

// DefinitionRegistry dedupes definitions seen by concurrently processed
// files. The first writer of a symbol id wins; later writers only bump the
// duplicate count.
type DefinitionRegistry struct {
	defs  sync.Map // types.SymbolID -> *RegisteredDefinition
	count atomic.Int64
}

// NewDefinitionRegistry creates an empty registry.
func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{}
}

func (r *DefinitionRegistry) entry(id types.SymbolID) *RegisteredDefinition {
	if v, ok := r.defs.Load(id); ok {
		return v.(*RegisteredDefinition)
	}
	v, _ := r.defs.LoadOrStore(id, &RegisteredDefinition{})
	return v.(*RegisteredDefinition)
}

// Register records def and returns the canonical entry for its id, and
// whether def became canonical.
func (r *DefinitionRegistry) Register(def types.DefinitionSymbol) (*RegisteredDefinition, bool) {
	e := r.entry(def.ID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.defined.Load() {
		e.duplicates.Add(1)
		return e, false
	}
	e.Definition = def
	e.defined.Store(true)
	r.count.Add(1)
	return e, true
}

// AddReferences counts the reference spans of one file against the symbols
// they target. Definition-site references are not counted.
func (r *DefinitionRegistry) AddReferences(refs []types.ReferenceSpan) {
	for _, ref := range refs {
		if ref.Reference.ReferenceKind == types.ReferenceKindDefinition {
			continue
		}
		r.entry(ref.Reference.ID).refs.Add(1)
	}
}

// Lookup returns the canonical definition of id. Symbols that were only
// referenced are not found.
func (r *DefinitionRegistry) Lookup(id types.SymbolID) (*RegisteredDefinition, bool) {
	v, ok := r.defs.Load(id)
	if !ok {
		return nil, false
	}
	e := v.(*RegisteredDefinition)
	if !e.defined.Load() {
		return nil, false
	}
	return e, true
}

// Len returns the number of distinct defined symbols.
func (r *DefinitionRegistry) Len() int {
	return int(r.count.Load())
}

// Range calls fn for every canonical definition until fn returns false.
func (r *DefinitionRegistry) Range(fn func(*RegisteredDefinition) bool) {
	r.defs.Range(func(_, v any) bool {
		e := v.(*RegisteredDefinition)
		if !e.defined.Load() {
			return true
		}
		return fn(e)
	})
}
