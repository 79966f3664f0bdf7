package mergeindex

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/idcodec"
	"github.com/standardbeagle/spanidx/internal/spanlist"
	"github.com/standardbeagle/spanidx/internal/types"
)

// ErrNoRows is returned when merging an empty row set.
var ErrNoRows = errors.New("no rows to merge")

// FileRow is one physical row of a stored file. Part 0 carries the span
// lists; every part carries a slice of the content in order.
type FileRow struct {
	ID              string                       `json:"id"`
	MergeID         string                       `json:"mergeId"`
	Part            int                          `json:"part"`
	PartCount       int                          `json:"partCount"`
	ProjectID       string                       `json:"projectId"`
	Path            string                       `json:"path"`
	Language        string                       `json:"language,omitempty"`
	Tags            []string                     `json:"tags,omitempty"`
	Content         string                       `json:"content,omitempty"`
	Classifications *spanlist.ClassificationList `json:"classifications,omitempty"`
	Definitions     []types.DefinitionSpan       `json:"definitions,omitempty"`
	References      *spanlist.ReferenceList      `json:"references,omitempty"`
	Properties      map[string]string            `json:"properties,omitempty"`
}

// Split cuts the file into rows holding at most maxContentSize content bytes
// each, never splitting a UTF-8 sequence. A file always yields at least one
// row.
func (f *File) Split(maxContentSize int) []FileRow {
	if maxContentSize <= 0 {
		maxContentSize = types.DefaultMaxContentSize
	}

	chunks := chunkContent(f.Content, maxContentSize)
	tags := f.Tags()
	rows := make([]FileRow, len(chunks))
	for i, chunk := range chunks {
		rows[i] = FileRow{
			ID:        idcodec.PartID(f.MergeID, i),
			MergeID:   f.MergeID,
			Part:      i,
			PartCount: len(chunks),
			ProjectID: f.ProjectID,
			Path:      f.Path,
			Language:  f.Language,
			Tags:      tags,
			Content:   chunk,
		}
	}
	rows[0].Classifications = f.Classifications
	rows[0].Definitions = f.Definitions
	rows[0].References = f.References
	rows[0].Properties = f.Properties
	return rows
}

func chunkContent(content string, size int) []string {
	if len(content) <= size {
		return []string{content}
	}
	var chunks []string
	for len(content) > size {
		end := size
		for end > 0 && !utf8.RuneStart(content[end]) {
			end--
		}
		if end == 0 {
			end = size
		}
		chunks = append(chunks, content[:end])
		content = content[end:]
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

// Merge reassembles one file from its rows, in part order. The first row
// to supply a scalar field wins; other rows must agree with it or the
// merge fails with a MergeConflictError. Span lists come from the first
// row that has them, definitions are unioned and re-sorted by start, and
// content is concatenated.
func Merge(rows []FileRow) (*File, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	ordered := slices.Clone(rows)
	slices.SortStableFunc(ordered, func(a, b FileRow) int { return cmp.Compare(a.Part, b.Part) })

	f := &File{MergeID: ordered[0].MergeID}
	var content strings.Builder
	seenDefs := make(map[definitionKey]bool)

	for _, row := range ordered {
		if row.MergeID != f.MergeID {
			return nil, spanerrors.NewMergeConflictError(f.MergeID, "mergeId", f.MergeID, row.MergeID)
		}
		if err := mergeScalar(f.MergeID, "projectId", &f.ProjectID, row.ProjectID, strings.EqualFold); err != nil {
			return nil, err
		}
		if err := mergeScalar(f.MergeID, "path", &f.Path, row.Path, equal); err != nil {
			return nil, err
		}
		if err := mergeScalar(f.MergeID, "language", &f.Language, row.Language, equal); err != nil {
			return nil, err
		}

		content.WriteString(row.Content)

		if f.Classifications == nil {
			f.Classifications = row.Classifications
		}
		if f.References == nil {
			f.References = row.References
		}
		for _, def := range row.Definitions {
			key := definitionKey{start: def.Start, length: def.Length, id: def.Definition.ID}
			if seenDefs[key] {
				continue
			}
			seenDefs[key] = true
			f.Definitions = append(f.Definitions, def)
		}
		for name, value := range row.Properties {
			if f.Properties == nil {
				f.Properties = make(map[string]string)
			}
			if _, ok := f.Properties[name]; !ok {
				f.Properties[name] = value
			}
		}
	}

	slices.SortStableFunc(f.Definitions, func(a, b types.DefinitionSpan) int {
		return cmp.Compare(a.Start, b.Start)
	})
	f.Content = content.String()
	return f, nil
}

type definitionKey struct {
	start, length int32
	id            types.SymbolID
}

func equal(a, b string) bool { return a == b }

// mergeScalar applies first-wins to one field; an empty value never
// conflicts.
func mergeScalar(mergeID, field string, dst *string, value string, same func(a, b string) bool) error {
	switch {
	case value == "":
		return nil
	case *dst == "":
		*dst = value
		return nil
	case !same(*dst, value):
		return spanerrors.NewMergeConflictError(mergeID, field, *dst, value)
	}
	return nil
}
