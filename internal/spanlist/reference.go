package spanlist

import (
	"encoding/json"
	"strings"

	"github.com/standardbeagle/spanidx/internal/types"
)

// SharedReference is the shared payload of reference spans.
type SharedReference struct {
	Reference         types.ReferenceSymbol
	RelatedDefinition types.SymbolID
}

// CompareSharedReferences orders by reference symbol, then related
// definition.
func CompareSharedReferences(a, b SharedReference) int {
	if c := types.CompareReferenceSymbols(a.Reference, b.Reference); c != 0 {
		return c
	}
	return strings.Compare(string(a.RelatedDefinition), string(b.RelatedDefinition))
}

// ReferenceKey identifies spans that share a reference payload.
type ReferenceKey struct {
	types.ReferenceKey
	RelatedDefinition types.SymbolID
}

// sharedReferenceJSON is one persisted shared row. Identity fields equal to
// the previous row's are written as null.
type sharedReferenceJSON struct {
	ProjectID                *string              `json:"projectId"`
	ID                       *types.SymbolID      `json:"id"`
	Kind                     *string              `json:"kind"`
	ReferenceKind            *types.ReferenceKind `json:"referenceKind"`
	ExcludeFromSearch        bool                 `json:"excludeFromSearch,omitempty"`
	ExcludeFromDefaultSearch bool                 `json:"excludeFromDefaultSearch,omitempty"`
	IsImplicitlyDeclared     bool                 `json:"isImplicitlyDeclared,omitempty"`
	RelatedDefinition        types.SymbolID       `json:"relatedDefinition,omitempty"`
}

type referenceAdapter struct{}

func (referenceAdapter) Start(s types.ReferenceSpan) int { return int(s.Start) }
func (referenceAdapter) Length(s types.ReferenceSpan) int { return int(s.Length) }

func (referenceAdapter) SharedKey(s types.ReferenceSpan) ReferenceKey {
	return ReferenceKey{ReferenceKey: s.Reference.Key(), RelatedDefinition: s.RelatedDefinition}
}

func (referenceAdapter) Shared(s types.ReferenceSpan) SharedReference {
	return SharedReference{Reference: s.Reference, RelatedDefinition: s.RelatedDefinition}
}

func (referenceAdapter) Create(start, length int, shared SharedReference, _ *Segment, _ int) types.ReferenceSpan {
	return types.ReferenceSpan{
		Span:              types.Span{Start: int32(start), Length: int32(length)},
		Reference:         shared.Reference,
		RelatedDefinition: shared.RelatedDefinition,
	}
}

// MarshalShared applies duplicate suppression to the table in its final
// order.
func (referenceAdapter) MarshalShared(values []SharedReference) ([]byte, error) {
	rows := make([]sharedReferenceJSON, len(values))
	for i, v := range values {
		ref := v.Reference
		row := sharedReferenceJSON{
			ExcludeFromSearch:        ref.ExcludeFromSearch,
			ExcludeFromDefaultSearch: ref.ExcludeFromDefaultSearch,
			IsImplicitlyDeclared:     ref.IsImplicitlyDeclared,
			RelatedDefinition:        v.RelatedDefinition,
		}
		var prev *types.ReferenceSymbol
		if i > 0 {
			prev = &values[i-1].Reference
		}
		if prev == nil || prev.ProjectID != ref.ProjectID {
			row.ProjectID = &ref.ProjectID
		}
		if prev == nil || prev.ID != ref.ID {
			row.ID = &ref.ID
		}
		if prev == nil || prev.Kind != ref.Kind {
			row.Kind = &ref.Kind
		}
		if prev == nil || prev.ReferenceKind != ref.ReferenceKind {
			row.ReferenceKind = &ref.ReferenceKind
		}
		rows[i] = row
	}
	return json.Marshal(rows)
}

// UnmarshalShared carries the last non-null identity field forward.
func (referenceAdapter) UnmarshalShared(data []byte) ([]SharedReference, error) {
	var rows []sharedReferenceJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	values := make([]SharedReference, len(rows))
	var last types.ReferenceSymbol
	for i, row := range rows {
		if row.ProjectID != nil {
			last.ProjectID = *row.ProjectID
		}
		if row.ID != nil {
			last.ID = *row.ID
		}
		if row.Kind != nil {
			last.Kind = *row.Kind
		}
		if row.ReferenceKind != nil {
			last.ReferenceKind = *row.ReferenceKind
		}
		ref := last
		ref.ExcludeFromSearch = row.ExcludeFromSearch
		ref.ExcludeFromDefaultSearch = row.ExcludeFromDefaultSearch
		ref.IsImplicitlyDeclared = row.IsImplicitlyDeclared
		values[i] = SharedReference{Reference: ref, RelatedDefinition: row.RelatedDefinition}
	}
	return values, nil
}

// ReferenceList stores reference spans. The shared table is sorted with
// CompareSharedReferences so references to one symbol sit together.
type ReferenceList struct {
	*List[types.ReferenceSpan, SharedReference, ReferenceKey]
}

// NewReferenceList builds a reference list from spans ordered by start.
func NewReferenceList(spans []types.ReferenceSpan) (*ReferenceList, error) {
	l, err := New(spans, referenceAdapter{}, Options[SharedReference, ReferenceKey]{
		SortShared: CompareSharedReferences,
	})
	if err != nil {
		return nil, err
	}
	return &ReferenceList{List: l}, nil
}

// UnmarshalJSON reads a persisted reference list.
func (r *ReferenceList) UnmarshalJSON(data []byte) error {
	r.List = Empty[types.ReferenceSpan, SharedReference, ReferenceKey](referenceAdapter{})
	return r.List.UnmarshalJSON(data)
}
