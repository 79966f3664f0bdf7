// Package mergeindex models a source file as it is stored: one logical file
// made of content, classifications, definitions and references, persisted as
// one or more physical rows sharing a merge id, plus the secondary
// definition, reference and property rows derived from it for search.
package mergeindex

import (
	"fmt"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/idcodec"
	"github.com/standardbeagle/spanidx/internal/spanlist"
	"github.com/standardbeagle/spanidx/internal/types"
)

// SourceFile is the analyzer's view of one file. Span slices must be
// ordered by start.
type SourceFile struct {
	ProjectID       string                     `json:"projectId"`
	Path            string                     `json:"path"`
	Language        string                     `json:"language,omitempty"`
	Content         string                     `json:"content,omitempty"`
	Classifications []types.ClassificationSpan `json:"classifications,omitempty"`
	Definitions     []types.DefinitionSpan     `json:"definitions,omitempty"`
	References      []types.ReferenceSpan      `json:"references,omitempty"`
	Properties      map[string]string          `json:"properties,omitempty"`
}

// File is the stored, compact form of a source file. It is what rows
// carry and what Merge reassembles.
type File struct {
	MergeID         string                       `json:"mergeId"`
	ProjectID       string                       `json:"projectId"`
	Path            string                       `json:"path"`
	Language        string                       `json:"language,omitempty"`
	Content         string                       `json:"content,omitempty"`
	Classifications *spanlist.ClassificationList `json:"classifications,omitempty"`
	Definitions     []types.DefinitionSpan       `json:"definitions,omitempty"`
	References      *spanlist.ReferenceList      `json:"references,omitempty"`
	Properties      map[string]string            `json:"properties,omitempty"`
}

// Options tune how a file is stored.
type Options struct {
	// MaxContentSize caps the content bytes held by one physical row.
	MaxContentSize int
	// LineSpanThreshold is the largest reference group stored with line
	// text; larger groups keep bare ranges.
	LineSpanThreshold int
}

// DefaultOptions returns the default storage options.
func DefaultOptions() Options {
	return Options{
		MaxContentSize:    types.DefaultMaxContentSize,
		LineSpanThreshold: types.DefaultLineSpanThreshold,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxContentSize <= 0 {
		o.MaxContentSize = d.MaxContentSize
	}
	if o.LineSpanThreshold <= 0 {
		o.LineSpanThreshold = d.LineSpanThreshold
	}
	return o
}

// Build packs a source file into its stored form. Span lists are built and
// optimized; an ordering violation in any of them fails the whole file.
func Build(src SourceFile) (*File, error) {
	if src.ProjectID == "" || src.Path == "" {
		return nil, spanerrors.NewFileError("build", src.ProjectID, src.Path,
			fmt.Errorf("project id and path are required"))
	}

	f := &File{
		MergeID:     idcodec.MergeID(src.ProjectID, src.Path),
		ProjectID:   src.ProjectID,
		Path:        src.Path,
		Language:    src.Language,
		Content:     src.Content,
		Definitions: src.Definitions,
		Properties:  src.Properties,
	}

	for i := 1; i < len(src.Definitions); i++ {
		if src.Definitions[i].Start < src.Definitions[i-1].Start {
			return nil, spanerrors.NewFileError("build definitions", src.ProjectID, src.Path,
				spanerrors.NewOrderingViolationError(i, int64(src.Definitions[i].Start), int64(src.Definitions[i-1].Start)))
		}
	}

	if src.Classifications != nil {
		list, err := spanlist.NewClassificationList(src.Classifications)
		if err != nil {
			return nil, spanerrors.NewFileError("build classifications", src.ProjectID, src.Path, err)
		}
		if err := list.Optimize(); err != nil {
			return nil, spanerrors.NewFileError("optimize classifications", src.ProjectID, src.Path, err)
		}
		f.Classifications = list
	}

	if src.References != nil {
		list, err := spanlist.NewReferenceList(src.References)
		if err != nil {
			return nil, spanerrors.NewFileError("build references", src.ProjectID, src.Path, err)
		}
		if err := list.Optimize(); err != nil {
			return nil, spanerrors.NewFileError("optimize references", src.ProjectID, src.Path, err)
		}
		f.References = list
	}

	return f, nil
}

// Location returns the file's project and path.
func (f *File) Location() types.FileLocation {
	return types.FileLocation{ProjectID: f.ProjectID, Path: f.Path}
}

// Tags returns the search tags of the file.
func (f *File) Tags() []string {
	return FileTags(f.ProjectID, f.Path)
}
