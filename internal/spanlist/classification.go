package spanlist

import (
	"github.com/standardbeagle/spanidx/internal/types"
)

// ClassificationStyle is the shared payload of classification spans.
type ClassificationStyle struct {
	Name         string `json:"name"`
	DefaultColor int32  `json:"defaultColor,omitempty"`
}

const localGroupField = "localGroupId"

type classificationAdapter struct{}

func (classificationAdapter) Start(s types.ClassificationSpan) int { return int(s.Start) }
func (classificationAdapter) Length(s types.ClassificationSpan) int { return int(s.Length) }
func (classificationAdapter) SharedKey(s types.ClassificationSpan) string { return s.Classification }

func (classificationAdapter) Shared(s types.ClassificationSpan) ClassificationStyle {
	return ClassificationStyle{Name: s.Classification, DefaultColor: s.DefaultColor}
}

func (classificationAdapter) Create(start, length int, style ClassificationStyle, seg *Segment, offset int) types.ClassificationSpan {
	return types.ClassificationSpan{
		Span:           types.Span{Start: int32(start), Length: int32(length)},
		Classification: style.Name,
		DefaultColor:   style.DefaultColor,
		LocalGroupID:   int32(seg.ExtraValue(localGroupField, offset)),
	}
}

func (classificationAdapter) ExtraFields() []ExtraField[types.ClassificationSpan] {
	return []ExtraField[types.ClassificationSpan]{{
		Name:  localGroupField,
		Value: func(s types.ClassificationSpan) int64 { return int64(s.LocalGroupID) },
	}}
}

// ClassificationList stores classification spans keyed by classification
// name, with the local group id kept per span.
type ClassificationList struct {
	*List[types.ClassificationSpan, ClassificationStyle, string]
}

// NewClassificationList builds a classification list. Styles keep first
// occurrence order.
func NewClassificationList(spans []types.ClassificationSpan) (*ClassificationList, error) {
	l, err := New(spans, classificationAdapter{}, Options[ClassificationStyle, string]{})
	if err != nil {
		return nil, err
	}
	return &ClassificationList{List: l}, nil
}

// UnmarshalJSON reads a persisted classification list.
func (c *ClassificationList) UnmarshalJSON(data []byte) error {
	c.List = Empty[types.ClassificationSpan, ClassificationStyle, string](classificationAdapter{})
	return c.List.UnmarshalJSON(data)
}
