package store

import (
	"context"
	"slices"
	"sync"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
)

type docKey struct {
	typ, id string
}

// MemoryStore keeps documents in memory.
type MemoryStore struct {
	index string

	mu     sync.RWMutex
	docs   map[docKey]Document
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(index string) *MemoryStore {
	return &MemoryStore{index: index, docs: make(map[docKey]Document)}
}

func (s *MemoryStore) Index() string { return s.index }

func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return spanerrors.NewStoreError("upsert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return spanerrors.NewStoreError("upsert", ErrClosed)
	}
	for _, doc := range docs {
		doc.Tags = slices.Clone(doc.Tags)
		doc.Body = slices.Clone(doc.Body)
		s.docs[docKey{doc.Type, doc.ID}] = doc
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, spanerrors.NewStoreError("query", err)
	}
	if err := filter.Validate(); err != nil {
		return nil, spanerrors.NewStoreError("query", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, spanerrors.NewStoreError("query", ErrClosed)
	}

	var out []Document
	for _, doc := range s.docs {
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	slices.SortFunc(out, compareDocuments)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteByMergeID(ctx context.Context, mergeID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, spanerrors.NewStoreError("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, spanerrors.NewStoreError("delete", ErrClosed)
	}
	removed := 0
	for key, doc := range s.docs {
		if doc.MergeID == mergeID {
			delete(s.docs, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
