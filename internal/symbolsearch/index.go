// Package symbolsearch answers name queries over definition rows: prefix
// lookups, exact id lookups and fuzzy suggestions for misspelled names.
package symbolsearch

import (
	"cmp"
	"slices"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/spanidx/internal/mergeindex"
	"github.com/standardbeagle/spanidx/internal/rangesearch"
	"github.com/standardbeagle/spanidx/internal/types"
)

// DefaultSuggestThreshold is the minimum Jaro-Winkler similarity of a
// suggestion.
const DefaultSuggestThreshold = 0.8

// Query narrows a name search.
type Query struct {
	// ProjectID restricts results to one project when set.
	ProjectID string
	// IncludeHidden returns definitions excluded from default search.
	IncludeHidden bool
	// Limit caps the number of results; zero means no cap.
	Limit int
}

// Index is an immutable name index over definition rows.
type Index struct {
	byName []mergeindex.DefinitionRow
	names  []string // lowercase short names, parallel to byName
	byID   []mergeindex.DefinitionRow
}

// New indexes rows. Rows without a short name are reachable by id only.
func New(rows []mergeindex.DefinitionRow) *Index {
	ix := &Index{
		byID: slices.Clone(rows),
	}
	for _, row := range rows {
		if row.Definition.ShortName != "" {
			ix.byName = append(ix.byName, row)
		}
	}

	slices.SortStableFunc(ix.byName, func(a, b mergeindex.DefinitionRow) int {
		if c := strings.Compare(strings.ToLower(a.Definition.ShortName), strings.ToLower(b.Definition.ShortName)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Definition.ID), string(b.Definition.ID))
	})
	ix.names = make([]string, len(ix.byName))
	for i, row := range ix.byName {
		ix.names[i] = strings.ToLower(row.Definition.ShortName)
	}

	slices.SortStableFunc(ix.byID, func(a, b mergeindex.DefinitionRow) int {
		return cmp.Compare(a.Definition.ID, b.Definition.ID)
	})
	return ix
}

// Len returns the number of indexed rows.
func (ix *Index) Len() int {
	return len(ix.byID)
}

// Prefix returns the definitions whose short name starts with prefix,
// ignoring case, ordered by name.
func (ix *Index) Prefix(prefix string, q Query) []mergeindex.DefinitionRow {
	r := rangesearch.PrefixRange(ix.names, strings.ToLower(prefix), false)
	return ix.collect(ix.byName[r.Start:r.End()], q)
}

// Exact returns the definitions whose short name equals name, ignoring
// case.
func (ix *Index) Exact(name string, q Query) []mergeindex.DefinitionRow {
	lower := strings.ToLower(name)
	r := rangesearch.SearchSlice(ix.names, lower, strings.Compare, strings.Compare)
	return ix.collect(ix.byName[r.Start:r.End()], q)
}

// Lookup returns every row defining id.
func (ix *Index) Lookup(id types.SymbolID) []mergeindex.DefinitionRow {
	r := rangesearch.SearchSlice(ix.byID, id, compareID, compareID)
	return ix.byID[r.Start:r.End()]
}

func compareID(id types.SymbolID, row mergeindex.DefinitionRow) int {
	return cmp.Compare(id, row.Definition.ID)
}

func (ix *Index) collect(rows []mergeindex.DefinitionRow, q Query) []mergeindex.DefinitionRow {
	var out []mergeindex.DefinitionRow
	for _, row := range rows {
		def := row.Definition
		if q.ProjectID != "" && !strings.EqualFold(q.ProjectID, def.ProjectID) {
			continue
		}
		if def.ExcludeFromDefaultSearch && !q.IncludeHidden {
			continue
		}
		out = append(out, row)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Suggestion is a known name close to a query.
type Suggestion struct {
	Name  string
	Score float64
}

// Suggest returns up to limit distinct names whose Jaro-Winkler similarity
// to name is at least threshold, best first.
func (ix *Index) Suggest(name string, limit int, threshold float64) []Suggestion {
	lower := strings.ToLower(name)
	if lower == "" {
		return nil
	}

	var out []Suggestion
	for i, candidate := range ix.names {
		if i > 0 && candidate == ix.names[i-1] {
			continue
		}
		score, err := edlib.StringsSimilarity(lower, candidate, edlib.JaroWinkler)
		if err != nil || float64(score) < threshold {
			continue
		}
		out = append(out, Suggestion{Name: ix.byName[i].Definition.ShortName, Score: float64(score)})
	}

	slices.SortStableFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
