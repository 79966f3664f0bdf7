// Package store persists stored files and their derived search rows as
// JSON documents keyed by (index, type, id).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Document is one stored record. Body is the JSON form of the row; the
// other fields are indexed for filtering.
type Document struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	MergeID   string          `json:"mergeId"`
	ProjectID string          `json:"projectId"`
	Path      string          `json:"path"`
	Tags      []string        `json:"tags,omitempty"`
	Body      json.RawMessage `json:"body"`
}

// Filter selects documents. Zero fields match everything. PathGlob is a
// doublestar pattern matched against the document path.
type Filter struct {
	Type      string
	ProjectID string
	MergeID   string
	PathGlob  string
	Tag       string
	Limit     int
}

// Matches reports whether doc passes every filter field. Project ids
// compare case-insensitively.
func (f Filter) Matches(doc Document) bool {
	if f.Type != "" && f.Type != doc.Type {
		return false
	}
	if f.ProjectID != "" && !strings.EqualFold(f.ProjectID, doc.ProjectID) {
		return false
	}
	if f.MergeID != "" && f.MergeID != doc.MergeID {
		return false
	}
	if f.Tag != "" && !slices.Contains(doc.Tags, f.Tag) {
		return false
	}
	if f.PathGlob != "" {
		matched, err := doublestar.Match(f.PathGlob, doc.Path)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// Validate checks the filter's glob pattern.
func (f Filter) Validate() error {
	if f.PathGlob != "" && !doublestar.ValidatePattern(f.PathGlob) {
		return doublestar.ErrBadPattern
	}
	return nil
}

// Store is a document store. Implementations are safe for concurrent use.
type Store interface {
	// Index returns the index name documents are stored under.
	Index() string
	// Upsert inserts or replaces documents by (type, id).
	Upsert(ctx context.Context, docs []Document) error
	// Query returns matching documents ordered by type, then id.
	Query(ctx context.Context, filter Filter) ([]Document, error)
	// DeleteByMergeID removes every document of one file.
	DeleteByMergeID(ctx context.Context, mergeID string) (int, error)
	// Close releases the store.
	Close() error
}

func compareDocuments(a, b Document) int {
	if c := strings.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
