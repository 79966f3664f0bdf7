// Package indexing connects analyzer output to the document store. A
// Session owns the store and the process-wide definition registry; its
// Uploader packs source files into rows and its Reader loads them back.
package indexing

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/standardbeagle/spanidx/internal/config"
	"github.com/standardbeagle/spanidx/internal/debug"
	"github.com/standardbeagle/spanidx/internal/mergeindex"
	"github.com/standardbeagle/spanidx/internal/store"
)

// ErrSessionClosed is returned by a closed session.
var ErrSessionClosed = errors.New("session is closed")

// SessionStats counts upload outcomes over the session's lifetime.
type SessionStats struct {
	FilesPacked  int64 `json:"filesPacked"`
	FilesSkipped int64 `json:"filesSkipped"`
	FilesFailed  int64 `json:"filesFailed"`
	RowsWritten  int64 `json:"rowsWritten"`
	Definitions  int   `json:"definitions"`
}

// Session is the explicit owner of everything shared across files: the
// store, the definition registry and the counters. Create one per run and
// Close it when done.
type Session struct {
	cfg      *config.Config
	store    store.Store
	registry *mergeindex.DefinitionRegistry
	filter   *PathFilter
	opts     mergeindex.Options
	closed   atomic.Bool

	packed  atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	rows    atomic.Int64
}

// OpenSession opens the store cfg names and creates a session over it.
func OpenSession(cfg *config.Config) (*Session, error) {
	var st store.Store
	switch cfg.Store.Backend {
	case config.BackendMemory:
		st = store.NewMemoryStore(cfg.Store.Index)
	case config.BackendSQLite, "":
		sq, err := store.OpenSQLite(cfg.StorePath(), cfg.Store.Index)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = sq
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return NewSession(cfg, st), nil
}

// NewSession creates a session over an open store. The session takes
// ownership of st and closes it on Close.
func NewSession(cfg *config.Config, st store.Store) *Session {
	s := &Session{
		cfg:      cfg,
		store:    st,
		registry: mergeindex.NewDefinitionRegistry(),
		filter:   NewPathFilter(cfg.Include, cfg.Exclude),
		opts: mergeindex.Options{
			MaxContentSize:    int(cfg.Spans.MaxContentSize),
			LineSpanThreshold: cfg.Spans.LineSpanThreshold,
		},
	}
	debug.LogIndexing("session opened on index %q (%s)\n", st.Index(), cfg.Store.Backend)
	return s
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Store returns the session's document store.
func (s *Session) Store() store.Store {
	return s.store
}

// Registry returns the definition registry shared by every upload.
func (s *Session) Registry() *mergeindex.DefinitionRegistry {
	return s.registry
}

// Uploader returns an uploader writing through the session.
func (s *Session) Uploader() *Uploader {
	return &Uploader{session: s}
}

// Reader returns a reader over the session's store.
func (s *Session) Reader() *Reader {
	return &Reader{store: s.store, cfg: s.cfg}
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		FilesPacked:  s.packed.Load(),
		FilesSkipped: s.skipped.Load(),
		FilesFailed:  s.failed.Load(),
		RowsWritten:  s.rows.Load(),
		Definitions:  s.registry.Len(),
	}
}

func (s *Session) checkOpen() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return nil
}

// Close closes the store. Closing twice is a no-op.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	stats := s.Stats()
	debug.LogIndexing("session closed: %d packed, %d skipped, %d failed, %d rows\n",
		stats.FilesPacked, stats.FilesSkipped, stats.FilesFailed, stats.RowsWritten)
	return s.store.Close()
}
