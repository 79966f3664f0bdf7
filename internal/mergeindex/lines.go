package mergeindex

import (
	"sort"
	"strings"

	"github.com/standardbeagle/spanidx/internal/types"
)

// LineIndex maps content offsets to lines.
type LineIndex struct {
	content string
	starts  []int32
}

// NewLineIndex scans content for line starts. A line ends at "\n"; a
// preceding "\r" is not part of the line text.
func NewLineIndex(content string) *LineIndex {
	starts := []int32{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, int32(i+1))
		}
	}
	return &LineIndex{content: content, starts: starts}
}

// LineCount returns the number of lines.
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}

// LineOf returns the zero-based line containing offset. Offsets past the
// end fall on the last line.
func (li *LineIndex) LineOf(offset int32) int {
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return max(line, 0)
}

// LineText returns the text of a line without its terminator.
func (li *LineIndex) LineText(line int) string {
	start := li.starts[line]
	end := int32(len(li.content))
	if line+1 < len(li.starts) {
		end = li.starts[line+1]
	}
	return strings.TrimRight(li.content[start:end], "\r\n")
}

// LineSpan attaches line context to a span.
func (li *LineIndex) LineSpan(span types.Span) types.LineSpan {
	line := li.LineOf(span.Start)
	start := li.starts[line]
	return types.LineSpan{
		Span:       span,
		LineNumber: int32(line),
		LineOffset: span.Start - start,
		LineStart:  start,
		LineText:   li.LineText(line),
	}
}
