// Package spanlist stores large ordered span sequences in compact,
// segment-paged form.
//
// A List deduplicates per-span payloads into a shared table, splits spans
// into fixed-size segments and packs each segment's starts, lengths and
// shared indices into variable-width integer arrays. Lists are built once
// from a fully materialized span sequence and then read many times, by index
// or by character range.
package spanlist

import (
	"errors"
	"fmt"
	"sort"

	"github.com/standardbeagle/spanidx/internal/debug"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/rangesearch"
)

// ErrIndexOutOfRange is returned by At for an index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("span index out of range")

// ErrRelativeStarts is returned by GetSpans on lists whose stored starts are
// not absolute positions.
var ErrRelativeStarts = errors.New("range queries need absolute starts")

// Adapter maps a concrete span type onto the list's storage.
//
// SharedKey identifies spans whose payload can be shared; Shared extracts the
// payload stored for the first span with a given key. Create rebuilds a span
// from its stored fields; seg and offset give access to extra fields.
type Adapter[T, S any, K comparable] interface {
	Start(span T) int
	Length(span T) int
	SharedKey(span T) K
	Shared(span T) S
	Create(start, length int, shared S, seg *Segment, offset int) T
}

// ExtraField is an additional per-span integer stored in its own array.
type ExtraField[T any] struct {
	Name  string
	Value func(span T) int64
}

// extraFielder is implemented by adapters that store extra fields.
type extraFielder[T any] interface {
	ExtraFields() []ExtraField[T]
}

// relativeStarter is implemented by adapters whose Start is not an absolute
// document position. Such lists skip ordering checks and delta encoding and
// do not support range queries.
type relativeStarter interface {
	RelativeStarts() bool
}

// Options control shared table ordering. When SortShared or SortKeys is set
// the table is stable-sorted after population; SortShared takes precedence.
type Options[S any, K comparable] struct {
	SortShared func(a, b S) int
	SortKeys   func(a, b K) int
}

// List is a segmented, deduplicated span list.
//
// Reads are safe from multiple goroutines: lazy expansion of an optimized
// segment is serialized per segment. Optimize and Expand must not run
// concurrently with readers.
type List[T, S any, K comparable] struct {
	adapter  Adapter[T, S, K]
	extras   []ExtraField[T]
	relative bool

	shared   []S
	segments []*Segment
	count    int
}

// Empty returns a list with no spans, ready for UnmarshalJSON.
func Empty[T, S any, K comparable](adapter Adapter[T, S, K]) *List[T, S, K] {
	l := &List[T, S, K]{adapter: adapter}
	if ef, ok := adapter.(extraFielder[T]); ok {
		l.extras = ef.ExtraFields()
	}
	if rs, ok := adapter.(relativeStarter); ok {
		l.relative = rs.RelativeStarts()
	}
	return l
}

// New builds a list from spans ordered by start. Spans whose start precedes
// the previous span's start yield an OrderingViolationError.
func New[T, S any, K comparable](spans []T, adapter Adapter[T, S, K], opts Options[S, K]) (*List[T, S, K], error) {
	l := Empty(adapter)

	table := newSharedTable[S, K]()
	for _, span := range spans {
		table.add(adapter.SharedKey(span), func() S { return adapter.Shared(span) })
	}
	switch {
	case opts.SortShared != nil:
		table.sortByValue(opts.SortShared)
	case opts.SortKeys != nil:
		table.sortByKey(opts.SortKeys)
	}
	l.shared = table.values

	if !l.relative {
		for i := 1; i < len(spans); i++ {
			start, prior := adapter.Start(spans[i]), adapter.Start(spans[i-1])
			if start < prior {
				return nil, spanerrors.NewOrderingViolationError(i, int64(start), int64(prior))
			}
		}
	}

	extraNames := l.extraNames()
	for first := 0; first < len(spans); first += SegmentSize {
		last := min(first+SegmentSize, len(spans))
		in := segmentInput{
			starts:        make([]int64, 0, last-first),
			lengths:       make([]int64, 0, last-first),
			sharedIndices: make([]int64, 0, last-first),
			extras:        make(map[string][]int64, len(l.extras)),
		}
		for _, span := range spans[first:last] {
			in.starts = append(in.starts, int64(adapter.Start(span)))
			in.lengths = append(in.lengths, int64(adapter.Length(span)))
			in.sharedIndices = append(in.sharedIndices, int64(table.index[adapter.SharedKey(span)]))
			for _, ef := range l.extras {
				in.extras[ef.Name] = append(in.extras[ef.Name], ef.Value(span))
			}
		}

		seg, err := newSegment(in, extraNames, l.relative)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", first>>SegmentShift, err)
		}
		l.segments = append(l.segments, seg)
	}
	l.count = len(spans)

	debug.Log("SPANLIST", "built %d spans in %d segments with %d shared values\n",
		l.count, len(l.segments), len(l.shared))
	return l, nil
}

func (l *List[T, S, K]) extraNames() []string {
	names := make([]string, len(l.extras))
	for i, ef := range l.extras {
		names[i] = ef.Name
	}
	return names
}

// Len returns the number of spans.
func (l *List[T, S, K]) Len() int {
	return l.count
}

// SharedValues returns the shared table in its stored order.
func (l *List[T, S, K]) SharedValues() []S {
	return l.shared
}

// SegmentCount returns the number of segments.
func (l *List[T, S, K]) SegmentCount() int {
	return len(l.segments)
}

// Segment returns the segment at index.
func (l *List[T, S, K]) Segment(index int) *Segment {
	return l.segments[index]
}

// At returns the span at index, expanding its segment if needed.
func (l *List[T, S, K]) At(index int) (T, error) {
	var zero T
	if index < 0 || index >= l.count {
		return zero, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, l.count)
	}
	seg := l.segments[index>>SegmentShift]
	if err := seg.ensureExpanded(len(l.shared)); err != nil {
		return zero, fmt.Errorf("segment %d: %w", index>>SegmentShift, err)
	}
	return l.spanAt(seg, index&SegmentMask), nil
}

func (l *List[T, S, K]) spanAt(seg *Segment, offset int) T {
	return l.adapter.Create(seg.start(offset), seg.length(offset), l.shared[seg.sharedIndex(offset)], seg, offset)
}

// Spans materializes every span in order.
func (l *List[T, S, K]) Spans() ([]T, error) {
	out := make([]T, 0, l.count)
	for si, seg := range l.segments {
		if err := seg.ensureExpanded(len(l.shared)); err != nil {
			return nil, fmt.Errorf("segment %d: %w", si, err)
		}
		for offset := 0; offset < seg.Count(); offset++ {
			out = append(out, l.spanAt(seg, offset))
		}
	}
	return out, nil
}

// Optimize compresses every segment.
func (l *List[T, S, K]) Optimize() error {
	for i, seg := range l.segments {
		if err := seg.optimize(); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// Expand decompresses every segment up front, after which reads never
// mutate the list.
func (l *List[T, S, K]) Expand() error {
	for i, seg := range l.segments {
		if err := seg.ensureExpanded(len(l.shared)); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// IsOptimized reports whether every segment is compressed.
func (l *List[T, S, K]) IsOptimized() bool {
	for _, seg := range l.segments {
		if !seg.IsOptimized() {
			return false
		}
	}
	return true
}

// bounds is the range view of a span or segment used by range queries.
type bounds struct {
	start, length int
}

func boundsMin(q, item bounds) int {
	if item.length > 0 {
		if item.start+item.length <= q.start {
			return 1
		}
		return 0
	}
	if item.start < q.start {
		return 1
	}
	return 0
}

func boundsMax(q, item bounds) int {
	if q.length > 0 {
		if item.start >= q.start+q.length {
			return -1
		}
		return 0
	}
	if item.start > q.start {
		return -1
	}
	return 0
}

// GetSpans returns the spans intersecting [start, start+length), in list
// order. A zero length queries the spans containing start. The first search
// runs over segment bounding ranges, the second over the spans of the
// candidate segments. Both ends of the result intersect the query; a
// zero-length span nested inside a longer one can sit between them without
// intersecting it.
func (l *List[T, S, K]) GetSpans(start, length int) (View[T, S, K], error) {
	if l.relative {
		return View[T, S, K]{}, ErrRelativeStarts
	}
	query := bounds{start: start, length: length}

	// Segment bounds get an inclusive end so a zero-length span sitting on
	// the segment's last end offset is still a candidate.
	segRange := rangesearch.Search(len(l.segments), func(i int) bounds {
		seg := l.segments[i]
		return bounds{start: seg.MinStart(), length: seg.FullLength() + 1}
	}, query, boundsMin, boundsMax)
	if segRange.IsEmpty() {
		return View[T, S, K]{list: l}, nil
	}

	for i := segRange.Start; i < segRange.End(); i++ {
		if err := l.segments[i].ensureExpanded(len(l.shared)); err != nil {
			return View[T, S, K]{}, fmt.Errorf("segment %d: %w", i, err)
		}
	}

	first := segRange.Start << SegmentShift
	last := min(segRange.End()<<SegmentShift, l.count)

	// Spans starting inside the query always intersect it. Spans starting
	// earlier are picked up by reachBack.
	lo := first + sort.Search(last-first, func(i int) bool {
		return l.boundsAt(first+i).start >= start
	})
	hi := first + sort.Search(last-first, func(i int) bool {
		return boundsMax(query, l.boundsAt(first+i)) < 0
	})
	lo, err := l.reachBack(lo, query)
	if err != nil {
		return View[T, S, K]{}, err
	}
	for hi > lo && !intersects(query, l.boundsAt(hi-1)) {
		hi--
	}
	if hi <= lo {
		return View[T, S, K]{list: l}, nil
	}
	return View[T, S, K]{list: l, start: lo, count: hi - lo}, nil
}

// boundsAt returns the bounds of the span at a global index. The segment
// must be expanded.
func (l *List[T, S, K]) boundsAt(index int) bounds {
	seg := l.segments[index>>SegmentShift]
	offset := index & SegmentMask
	return bounds{start: seg.start(offset), length: seg.length(offset)}
}

// reachBack lowers lo to the earliest span before it that starts before q
// and ends inside it, stepping over zero-length spans. The walk stops at the
// first segment whose spans all end at or before q.start.
func (l *List[T, S, K]) reachBack(lo int, q bounds) (int, error) {
	from := lo
	for i := from - 1; i >= 0; i-- {
		si := i >> SegmentShift
		seg := l.segments[si]
		if i == from-1 || i&SegmentMask == SegmentMask {
			if seg.MinStart()+seg.FullLength() <= q.start {
				break
			}
			if err := seg.ensureExpanded(len(l.shared)); err != nil {
				return lo, fmt.Errorf("segment %d: %w", si, err)
			}
		}
		item := l.boundsAt(i)
		if item.length == 0 {
			continue
		}
		if item.start+item.length <= q.start {
			break
		}
		lo = i
	}
	return lo, nil
}

// intersects applies the zero-length rules of types.Span.Intersects.
func intersects(q, item bounds) bool {
	return boundsMin(q, item) == 0 && boundsMax(q, item) == 0
}

// Stats summarizes the storage footprint of a list.
type Stats struct {
	Count             int
	Segments          int
	SharedValues      int
	OptimizedSegments int
	RawStartSegments  int
	EncodedBytes      int
}

// Stats reports the current footprint. RawStartSegments counts optimized
// segments that kept absolute starts.
func (l *List[T, S, K]) Stats() Stats {
	st := Stats{
		Count:        l.count,
		Segments:     len(l.segments),
		SharedValues: len(l.shared),
	}
	for _, seg := range l.segments {
		st.EncodedBytes += seg.encodedSize()
		if seg.IsOptimized() {
			st.OptimizedSegments++
			if seg.StartsExpanded() {
				st.RawStartSegments++
			}
		}
	}
	return st
}

// sharedIndexOf returns the shared table index of the span at a global
// index. The segment must be expanded.
func (l *List[T, S, K]) sharedIndexOf(index int) int {
	return l.segments[index>>SegmentShift].sharedIndex(index & SegmentMask)
}

// SharedIndices returns the shared table index of every span.
func (l *List[T, S, K]) SharedIndices() ([]int, error) {
	if err := l.Expand(); err != nil {
		return nil, err
	}
	out := make([]int, l.count)
	for i := range out {
		out[i] = l.sharedIndexOf(i)
	}
	return out, nil
}
