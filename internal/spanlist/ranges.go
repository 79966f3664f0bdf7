package spanlist

import (
	"github.com/standardbeagle/spanidx/internal/types"
)

type rangeAdapter struct{}

func (rangeAdapter) Start(s types.Span) int { return int(s.Start) }
func (rangeAdapter) Length(s types.Span) int { return int(s.Length) }
func (rangeAdapter) SharedKey(types.Span) struct{} { return struct{}{} }
func (rangeAdapter) Shared(types.Span) struct{} { return struct{}{} }

func (rangeAdapter) Create(start, length int, _ struct{}, _ *Segment, _ int) types.Span {
	return types.Span{Start: int32(start), Length: int32(length)}
}

// RangeList stores bare spans. Reference groups too large for per-line
// context use it.
type RangeList struct {
	*List[types.Span, struct{}, struct{}]
}

// NewRangeList builds a range list.
func NewRangeList(spans []types.Span) (*RangeList, error) {
	l, err := New(spans, rangeAdapter{}, Options[struct{}, struct{}]{})
	if err != nil {
		return nil, err
	}
	return &RangeList{List: l}, nil
}

// UnmarshalJSON reads a persisted range list.
func (r *RangeList) UnmarshalJSON(data []byte) error {
	r.List = Empty[types.Span, struct{}, struct{}](rangeAdapter{})
	return r.List.UnmarshalJSON(data)
}
