package spanlist

import (
	"strings"

	"github.com/standardbeagle/spanidx/internal/types"
)

// LineInfo is the shared payload of line spans: one entry per line.
type LineInfo struct {
	LineNumber int32  `json:"lineNumber"`
	Start      int32  `json:"start"`
	Text       string `json:"text"`
}

// lineAdapter stores each span's start relative to its line, so the starts
// array holds small column offsets rather than document positions.
type lineAdapter struct{}

func (lineAdapter) Start(s types.LineSpan) int { return int(s.LineOffset) }
func (lineAdapter) Length(s types.LineSpan) int { return int(s.Length) }
func (lineAdapter) SharedKey(s types.LineSpan) int32 { return s.LineNumber }
func (lineAdapter) RelativeStarts() bool { return true }

func (lineAdapter) Shared(s types.LineSpan) LineInfo {
	return LineInfo{LineNumber: s.LineNumber, Start: s.LineStart, Text: s.LineText}
}

func (lineAdapter) Create(start, length int, line LineInfo, _ *Segment, _ int) types.LineSpan {
	return types.LineSpan{
		Span:       types.Span{Start: line.Start + int32(start), Length: int32(length)},
		LineNumber: line.LineNumber,
		LineOffset: int32(start),
		LineStart:  line.Start,
		LineText:   line.Text,
	}
}

// LineSpanList stores spans together with the text of their lines, sorted by
// line text. It supports indexed access only.
type LineSpanList struct {
	*List[types.LineSpan, LineInfo, int32]
}

// NewLineSpanList builds a line span list.
func NewLineSpanList(spans []types.LineSpan) (*LineSpanList, error) {
	l, err := New(spans, lineAdapter{}, Options[LineInfo, int32]{
		SortShared: func(a, b LineInfo) int { return strings.Compare(a.Text, b.Text) },
	})
	if err != nil {
		return nil, err
	}
	return &LineSpanList{List: l}, nil
}

// UnmarshalJSON reads a persisted line span list.
func (l *LineSpanList) UnmarshalJSON(data []byte) error {
	l.List = Empty[types.LineSpan, LineInfo, int32](lineAdapter{})
	return l.List.UnmarshalJSON(data)
}
