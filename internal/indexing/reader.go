package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/standardbeagle/spanidx/internal/config"
	"github.com/standardbeagle/spanidx/internal/debug"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/idcodec"
	"github.com/standardbeagle/spanidx/internal/mergeindex"
	"github.com/standardbeagle/spanidx/internal/store"
	"github.com/standardbeagle/spanidx/internal/symbolsearch"
	"github.com/standardbeagle/spanidx/internal/types"
	"github.com/standardbeagle/spanidx/pkg/pathutil"
)

var (
	// ErrNotFound is returned when no row of a file exists.
	ErrNotFound = errors.New("file not found")
	// ErrUnavailable is returned when a file's rows exist but cannot be
	// decoded or merged. Other files stay readable.
	ErrUnavailable = errors.New("file unavailable")
)

// Reader loads stored files and answers span queries over them.
type Reader struct {
	store store.Store
	cfg   *config.Config
}

// NewReader creates a reader over st.
func NewReader(st store.Store, cfg *config.Config) *Reader {
	return &Reader{store: st, cfg: cfg}
}

// GetFile loads and merges every physical row of one file.
func (r *Reader) GetFile(ctx context.Context, projectID, path string) (*mergeindex.File, error) {
	if r.cfg != nil {
		path = pathutil.Normalize(path, r.cfg.Project.Root)
	}
	mergeID := idcodec.MergeID(projectID, path)
	docs, err := r.store.Query(ctx, store.Filter{Type: types.DocumentTypeFile, MergeID: mergeID})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, projectID, path)
	}

	rows := make([]mergeindex.FileRow, len(docs))
	for i, doc := range docs {
		if err := json.Unmarshal(doc.Body, &rows[i]); err != nil {
			return nil, r.unavailable(projectID, path, spanerrors.NewDecodeError("file row "+doc.ID, err))
		}
	}

	file, err := mergeindex.Merge(rows)
	if err != nil {
		return nil, r.unavailable(projectID, path, err)
	}

	if r.cfg != nil && r.cfg.Spans.ExpandOnRead {
		if err := expandFile(file); err != nil {
			return nil, r.unavailable(projectID, path, err)
		}
	}
	debug.LogQuery("loaded %s/%s from %d rows\n", projectID, path, len(rows))
	return file, nil
}

func (r *Reader) unavailable(projectID, path string, err error) error {
	debug.LogQuery("file %s/%s unavailable: %v\n", projectID, path, err)
	return fmt.Errorf("%w: %s/%s: %w", ErrUnavailable, projectID, path, err)
}

func expandFile(f *mergeindex.File) error {
	if f.Classifications != nil {
		if err := f.Classifications.Expand(); err != nil {
			return err
		}
	}
	if f.References != nil {
		if err := f.References.Expand(); err != nil {
			return err
		}
	}
	return nil
}

// FindReferences returns the references of a file intersecting
// [start, start+length). A zero length selects references touching start.
func (r *Reader) FindReferences(ctx context.Context, projectID, path string, start, length int) ([]types.ReferenceSpan, error) {
	file, err := r.GetFile(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if file.References == nil {
		return nil, nil
	}
	view, err := file.References.GetSpans(start, length)
	if err != nil {
		return nil, r.unavailable(projectID, path, err)
	}
	spans, err := view.Spans()
	if err != nil {
		return nil, r.unavailable(projectID, path, err)
	}
	return spans, nil
}

// FindClassifications returns the classifications of a file intersecting
// [start, start+length).
func (r *Reader) FindClassifications(ctx context.Context, projectID, path string, start, length int) ([]types.ClassificationSpan, error) {
	file, err := r.GetFile(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	if file.Classifications == nil {
		return nil, nil
	}
	view, err := file.Classifications.GetSpans(start, length)
	if err != nil {
		return nil, r.unavailable(projectID, path, err)
	}
	spans, err := view.Spans()
	if err != nil {
		return nil, r.unavailable(projectID, path, err)
	}
	return spans, nil
}

// definitionIndex loads every definition row matching projectID into a
// name index. Rows that fail to decode are logged and skipped.
func (r *Reader) definitionIndex(ctx context.Context, projectID string) (*symbolsearch.Index, error) {
	docs, err := r.store.Query(ctx, store.Filter{Type: types.DocumentTypeDefinition, ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	rows := make([]mergeindex.DefinitionRow, 0, len(docs))
	for _, doc := range docs {
		var row mergeindex.DefinitionRow
		if err := json.Unmarshal(doc.Body, &row); err != nil {
			debug.LogQuery("skip definition %s: %v\n", doc.ID, err)
			continue
		}
		rows = append(rows, row)
	}
	return symbolsearch.New(rows), nil
}

// SearchResult holds definition matches, or suggestions when nothing
// matched.
type SearchResult struct {
	Definitions []mergeindex.DefinitionRow `json:"definitions"`
	Suggestions []symbolsearch.Suggestion  `json:"suggestions,omitempty"`
}

// SearchDefinitions finds definitions whose short name starts with prefix.
// When nothing matches, close names are suggested instead.
func (r *Reader) SearchDefinitions(ctx context.Context, prefix string, q symbolsearch.Query) (*SearchResult, error) {
	ix, err := r.definitionIndex(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}
	if q.Limit == 0 && r.cfg != nil {
		q.Limit = r.cfg.Search.MaxResults
	}

	result := &SearchResult{Definitions: ix.Prefix(prefix, q)}
	if len(result.Definitions) == 0 {
		threshold := symbolsearch.DefaultSuggestThreshold
		if r.cfg != nil && r.cfg.Search.SuggestThreshold > 0 {
			threshold = r.cfg.Search.SuggestThreshold
		}
		result.Suggestions = ix.Suggest(prefix, 5, threshold)
	}
	debug.LogQuery("search %q: %d definitions, %d suggestions\n", prefix, len(result.Definitions), len(result.Suggestions))
	return result, nil
}

// LookupDefinition returns every stored definition of id.
func (r *Reader) LookupDefinition(ctx context.Context, projectID string, id types.SymbolID) ([]mergeindex.DefinitionRow, error) {
	ix, err := r.definitionIndex(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return ix.Lookup(id), nil
}

// ReferencesTo returns the reference groups, across files, whose symbol is
// id.
func (r *Reader) ReferencesTo(ctx context.Context, projectID string, id types.SymbolID) ([]mergeindex.ReferenceRow, error) {
	docs, err := r.store.Query(ctx, store.Filter{Type: types.DocumentTypeReference, ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	var out []mergeindex.ReferenceRow
	for _, doc := range docs {
		var row mergeindex.ReferenceRow
		if err := json.Unmarshal(doc.Body, &row); err != nil {
			debug.LogQuery("skip reference group %s: %v\n", doc.ID, err)
			continue
		}
		if row.Reference.ID == id {
			out = append(out, row)
		}
	}
	return out, nil
}
