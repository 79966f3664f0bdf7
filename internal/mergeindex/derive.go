package mergeindex

import (
	"slices"
	"strings"

	"github.com/standardbeagle/spanidx/internal/idcodec"
	"github.com/standardbeagle/spanidx/internal/spanlist"
	"github.com/standardbeagle/spanidx/internal/types"
)

// DefinitionRow is the search record of one definition.
type DefinitionRow struct {
	ID         string                 `json:"id"`
	MergeID    string                 `json:"mergeId"`
	ProjectID  string                 `json:"projectId"`
	Path       string                 `json:"path"`
	Span       types.Span             `json:"span"`
	Definition types.DefinitionSymbol `json:"definition"`
	Terms      []string               `json:"terms,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
}

// ReferenceRow is the search record of every reference in a file to one
// symbol with one related definition. Small groups keep line text in Lines;
// larger groups keep bare spans in Ranges.
type ReferenceRow struct {
	ID                string                 `json:"id"`
	MergeID           string                 `json:"mergeId"`
	ProjectID         string                 `json:"projectId"`
	Path              string                 `json:"path"`
	Reference         types.ReferenceSymbol  `json:"reference"`
	RelatedDefinition types.SymbolID         `json:"relatedDefinition,omitempty"`
	Count             int                    `json:"count"`
	Lines             *spanlist.LineSpanList `json:"lines,omitempty"`
	Ranges            *spanlist.RangeList    `json:"ranges,omitempty"`
	Tags              []string               `json:"tags,omitempty"`
}

// Spans returns the reference spans of the group in order.
func (r *ReferenceRow) Spans() ([]types.Span, error) {
	if r.Ranges != nil {
		return r.Ranges.Spans()
	}
	if r.Lines == nil {
		return nil, nil
	}
	lines, err := r.Lines.Spans()
	if err != nil {
		return nil, err
	}
	spans := make([]types.Span, len(lines))
	for i, l := range lines {
		spans[i] = l.Span
	}
	return spans, nil
}

// PropertyRow is the search record of one file property.
type PropertyRow struct {
	ID        string   `json:"id"`
	MergeID   string   `json:"mergeId"`
	ProjectID string   `json:"projectId"`
	Path      string   `json:"path"`
	Name      string   `json:"name"`
	Value     string   `json:"value"`
	Tags      []string `json:"tags,omitempty"`
}

// Derived holds every secondary row of a file. It is rebuilt whenever the
// file is written.
type Derived struct {
	Definitions []DefinitionRow
	References  []ReferenceRow
	Properties  []PropertyRow
}

// Derive computes the secondary rows of a file. Definitions marked
// ExcludeFromSearch are skipped.
func Derive(src SourceFile, opts Options) (*Derived, error) {
	opts = opts.withDefaults()
	f := fileHeader{
		MergeID:   idcodec.MergeID(src.ProjectID, src.Path),
		ProjectID: src.ProjectID,
		Path:      src.Path,
		Content:   src.Content,
	}
	tags := FileTags(src.ProjectID, src.Path)
	d := &Derived{}

	for _, def := range src.Definitions {
		if def.Definition.ExcludeFromSearch {
			continue
		}
		d.Definitions = append(d.Definitions, DefinitionRow{
			ID:         idcodec.DefinitionID(def.Definition.ProjectID, string(def.Definition.ID)),
			MergeID:    f.MergeID,
			ProjectID:  f.ProjectID,
			Path:       f.Path,
			Span:       def.Span,
			Definition: def.Definition,
			Terms:      Terms(def.Definition.ShortName),
			Tags:       tags,
		})
	}

	refs, err := deriveReferences(f, src.References, opts, tags)
	if err != nil {
		return nil, err
	}
	d.References = refs

	names := make([]string, 0, len(src.Properties))
	for name := range src.Properties {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		d.Properties = append(d.Properties, PropertyRow{
			ID:        idcodec.RowID(f.MergeID, types.DocumentTypeProperty, name),
			MergeID:   f.MergeID,
			ProjectID: f.ProjectID,
			Path:      f.Path,
			Name:      name,
			Value:     src.Properties[name],
			Tags:      tags,
		})
	}
	return d, nil
}

// fileHeader is the part of a file derived rows are keyed on.
type fileHeader struct {
	MergeID   string
	ProjectID string
	Path      string
	Content   string
}

type referenceGroup struct {
	shared spanlist.SharedReference
	spans  []types.Span
}

func deriveReferences(f fileHeader, refs []types.ReferenceSpan, opts Options, tags []string) ([]ReferenceRow, error) {
	groups := make(map[spanlist.ReferenceKey]*referenceGroup)
	var order []*referenceGroup
	for _, ref := range refs {
		key := spanlist.ReferenceKey{ReferenceKey: ref.Reference.Key(), RelatedDefinition: ref.RelatedDefinition}
		g, ok := groups[key]
		if !ok {
			g = &referenceGroup{shared: spanlist.SharedReference{Reference: ref.Reference, RelatedDefinition: ref.RelatedDefinition}}
			groups[key] = g
			order = append(order, g)
		}
		g.spans = append(g.spans, ref.Span)
	}
	slices.SortStableFunc(order, func(a, b *referenceGroup) int {
		return spanlist.CompareSharedReferences(a.shared, b.shared)
	})

	var lines *LineIndex
	rows := make([]ReferenceRow, 0, len(order))
	for _, g := range order {
		ref := g.shared.Reference
		row := ReferenceRow{
			ID:                idcodec.RowID(f.MergeID, types.DocumentTypeReference, referenceRowKey(g.shared)),
			MergeID:           f.MergeID,
			ProjectID:         f.ProjectID,
			Path:              f.Path,
			Reference:         ref,
			RelatedDefinition: g.shared.RelatedDefinition,
			Count:             len(g.spans),
			Tags:              tags,
		}

		if len(g.spans) <= opts.LineSpanThreshold {
			if lines == nil {
				lines = NewLineIndex(f.Content)
			}
			lineSpans := make([]types.LineSpan, len(g.spans))
			for i, span := range g.spans {
				lineSpans[i] = lines.LineSpan(span)
			}
			list, err := spanlist.NewLineSpanList(lineSpans)
			if err != nil {
				return nil, err
			}
			if err := list.Optimize(); err != nil {
				return nil, err
			}
			row.Lines = list
		} else {
			list, err := spanlist.NewRangeList(g.spans)
			if err != nil {
				return nil, err
			}
			if err := list.Optimize(); err != nil {
				return nil, err
			}
			row.Ranges = list
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func referenceRowKey(shared spanlist.SharedReference) string {
	ref := shared.Reference
	return strings.Join([]string{
		strings.ToLower(ref.ProjectID), ref.Kind, string(ref.ID), string(ref.ReferenceKind), string(shared.RelatedDefinition),
	}, "\x00")
}
