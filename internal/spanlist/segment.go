package spanlist

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/spanidx/internal/encoding"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
)

// Segment geometry: a list is split into pages of 2^12 spans. The last
// segment may be partial.
const (
	SegmentShift = 12
	SegmentSize  = 1 << SegmentShift
	SegmentMask  = SegmentSize - 1
)

// Segment is one page of a span list. Three parallel integer arrays hold the
// starts, lengths and shared-table indices of its spans; specializations may
// add extra per-span arrays.
//
// Expanded, starts holds absolute starts. Optimized, every array is deflated
// and starts holds either deltas or raw starts (startsExpanded). Both forms
// use the segment's smallest start as the starts array minimum.
//
// Expansion is guarded by mu so concurrent readers can share an optimized
// list. count, minStart and fullLength never change after construction and
// are read without the lock. Optimize must not run concurrently with readers.
type Segment struct {
	mu        sync.Mutex
	optimized atomic.Bool

	count          int
	minStart       int
	fullLength     int
	startsExpanded bool
	relative       bool

	starts        *encoding.IntArray
	lengths       *encoding.IntArray
	sharedIndices *encoding.IntArray

	extraNames []string
	extras     map[string]*encoding.IntArray
}

// segmentInput is the decoded form a segment is built from.
type segmentInput struct {
	starts        []int64
	lengths       []int64
	sharedIndices []int64
	extras        map[string][]int64
}

func newSegment(in segmentInput, extraNames []string, relative bool) (*Segment, error) {
	n := len(in.starts)
	seg := &Segment{
		relative:   relative,
		extraNames: extraNames,
		extras:     make(map[string]*encoding.IntArray, len(extraNames)),
	}

	minStart, maxEnd := int64(0), int64(0)
	for i := 0; i < n; i++ {
		start, end := in.starts[i], in.starts[i]+in.lengths[i]
		if i == 0 || start < minStart {
			minStart = start
		}
		if i == 0 || end > maxEnd {
			maxEnd = end
		}
	}
	seg.count = n
	seg.minStart = int(minStart)
	seg.fullLength = int(maxEnd - minStart)

	var err error
	if seg.starts, err = encoding.NewIntArray(in.starts, minStart); err != nil {
		return nil, fmt.Errorf("starts: %w", err)
	}
	if seg.lengths, err = encoding.NewIntArray(in.lengths, 0); err != nil {
		return nil, fmt.Errorf("lengths: %w", err)
	}
	if seg.sharedIndices, err = encoding.NewIntArray(in.sharedIndices, 0); err != nil {
		return nil, fmt.Errorf("shared indices: %w", err)
	}
	for _, name := range extraNames {
		values := in.extras[name]
		arr, err := encoding.NewIntArray(values, minOf(values))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		seg.extras[name] = arr
	}
	return seg, nil
}

func minOf(values []int64) int64 {
	var m int64
	for i, v := range values {
		if i == 0 || v < m {
			m = v
		}
	}
	return m
}

// Count returns the number of spans in the segment.
func (s *Segment) Count() int {
	return s.count
}

// MinStart returns the smallest stored start.
func (s *Segment) MinStart() int {
	return s.minStart
}

// FullLength returns the distance from the smallest start to the largest end.
func (s *Segment) FullLength() int {
	return s.fullLength
}

// IsOptimized reports whether the segment is in compressed form.
func (s *Segment) IsOptimized() bool {
	return s.optimized.Load()
}

// StartsExpanded reports whether the last optimization kept raw starts
// rather than deltas.
func (s *Segment) StartsExpanded() bool {
	return s.startsExpanded
}

// ExtraValue returns a specialization field for the span at offset. The
// segment must be expanded.
func (s *Segment) ExtraValue(name string, offset int) int64 {
	arr, ok := s.extras[name]
	if !ok {
		return 0
	}
	return arr.Get(offset)
}

func (s *Segment) start(offset int) int {
	return int(s.starts.Get(offset))
}

func (s *Segment) length(offset int) int {
	return int(s.lengths.Get(offset))
}

func (s *Segment) sharedIndex(offset int) int {
	return int(s.sharedIndices.Get(offset))
}

// encodedSize sums the representation size of every array.
func (s *Segment) encodedSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.starts.EncodedSize() + s.lengths.EncodedSize() + s.sharedIndices.EncodedSize()
	for _, name := range s.extraNames {
		size += s.extras[name].EncodedSize()
	}
	return size
}

// optimize encodes starts and compresses every array. Arrays are replaced
// only once all of them succeeded.
func (s *Segment) optimize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.optimized.Load() {
		return nil
	}

	starts, raw, err := encodeStarts(s.starts, s.lengths, s.relative)
	if err != nil {
		return err
	}
	lengths := s.lengths.Clone()
	indices := s.sharedIndices.Clone()
	extras := make(map[string]*encoding.IntArray, len(s.extras))
	for name, arr := range s.extras {
		extras[name] = arr.Clone()
	}

	arrays := []*encoding.IntArray{starts, lengths, indices}
	for _, name := range s.extraNames {
		arrays = append(arrays, extras[name])
	}
	for _, arr := range arrays {
		if err := arr.Optimize(); err != nil {
			return err
		}
	}

	s.starts, s.lengths, s.sharedIndices, s.extras = starts, lengths, indices, extras
	s.startsExpanded = raw
	s.optimized.Store(true)
	return nil
}

// ensureExpanded decompresses the segment and decodes delta starts.
// sharedCount bounds the shared indices; an index outside the table is
// reported as a DecodeError.
func (s *Segment) ensureExpanded(sharedCount int) error {
	if !s.optimized.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.optimized.Load() {
		return nil
	}

	starts := s.starts.Clone()
	lengths := s.lengths.Clone()
	indices := s.sharedIndices.Clone()
	extras := make(map[string]*encoding.IntArray, len(s.extras))
	for name, arr := range s.extras {
		extras[name] = arr.Clone()
	}

	arrays := []*encoding.IntArray{starts, lengths, indices}
	for _, name := range s.extraNames {
		arrays = append(arrays, extras[name])
	}
	for _, arr := range arrays {
		if err := arr.Expand(); err != nil {
			return err
		}
	}

	n := starts.Count()
	if lengths.Count() != n || indices.Count() != n {
		return spanerrors.NewDecodeError("segment",
			fmt.Errorf("array counts differ: starts %d, lengths %d, indices %d", n, lengths.Count(), indices.Count()))
	}
	for _, name := range s.extraNames {
		if extras[name].Count() != n {
			return spanerrors.NewDecodeError("segment",
				fmt.Errorf("%s has %d values, expected %d", name, extras[name].Count(), n))
		}
	}
	for i := 0; i < n; i++ {
		if idx := indices.Get(i); idx < 0 || idx >= int64(sharedCount) {
			return spanerrors.NewDecodeError("segment",
				fmt.Errorf("shared index %d out of range [0, %d)", idx, sharedCount))
		}
	}

	if !s.startsExpanded {
		decoded, err := decodeStarts(starts, lengths)
		if err != nil {
			return err
		}
		starts = decoded
	}

	s.starts, s.lengths, s.sharedIndices, s.extras = starts, lengths, indices, extras
	s.optimized.Store(false)
	return nil
}

// encodeStarts picks the narrower of two encodings for absolute starts:
//
//   - delta: 0 when a span starts where the previous span started, otherwise
//     the 1-based gap from the previous span's end, (start - priorEnd) + 1;
//   - raw: the absolute starts.
//
// Both are stored above the segment's first start. Delta wins ties. Spans
// that overlap without sharing a start cannot be delta encoded and force raw
// starts, as do relative starts.
func encodeStarts(starts, lengths *encoding.IntArray, relative bool) (*encoding.IntArray, bool, error) {
	n := starts.Count()
	if relative || n == 0 {
		return starts.Clone(), true, nil
	}

	base := starts.MinValue()
	deltas := make([]int64, n)
	priorStart, priorEnd := base, base
	for i := 0; i < n; i++ {
		start := starts.Get(i)
		switch {
		case start == priorStart:
			deltas[i] = base
		case start >= priorEnd:
			deltas[i] = base + (start - priorEnd) + 1
		case start > priorStart:
			return starts.Clone(), true, nil
		default:
			return nil, false, spanerrors.NewOrderingViolationError(i, start, priorStart)
		}
		priorStart, priorEnd = start, start+lengths.Get(i)
	}

	if encoding.ByteWidthOf(deltas, base) > starts.ValueByteWidth() {
		return starts.Clone(), true, nil
	}
	encoded, err := encoding.NewIntArray(deltas, base)
	if err != nil {
		return nil, false, err
	}
	return encoded, false, nil
}

// decodeStarts walks delta starts forward, tracking the prior span's start
// and end.
func decodeStarts(encoded, lengths *encoding.IntArray) (*encoding.IntArray, error) {
	n := encoded.Count()
	base := encoded.MinValue()
	values := make([]int64, n)
	priorStart, priorEnd := base, base
	for i := 0; i < n; i++ {
		start := priorStart
		if delta := encoded.Get(i) - base; delta != 0 {
			start = priorEnd + delta - 1
		}
		values[i] = start
		priorStart, priorEnd = start, start+lengths.Get(i)
	}
	return encoding.NewIntArray(values, base)
}
