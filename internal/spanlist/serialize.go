package spanlist

import (
	"encoding/json"
	"fmt"

	"github.com/standardbeagle/spanidx/internal/encoding"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
)

// sharedCodec is implemented by adapters that persist the shared table in a
// custom form.
type sharedCodec[S any] interface {
	MarshalShared(values []S) ([]byte, error)
	UnmarshalShared(data []byte) ([]S, error)
}

type listJSON struct {
	Count        int             `json:"count"`
	SharedValues json.RawMessage `json:"sharedValues"`
	Segments     []segmentJSON   `json:"segments"`
}

type segmentJSON struct {
	Optimized      bool                          `json:"optimized"`
	FullLength     int                           `json:"fullLength"`
	StartsExpanded bool                          `json:"startsExpanded"`
	Starts         *encoding.IntArray            `json:"starts"`
	Lengths        *encoding.IntArray            `json:"lengths"`
	SharedIndices  *encoding.IntArray            `json:"sharedIndices"`
	Extras         map[string]*encoding.IntArray `json:"extras,omitempty"`
}

// MarshalJSON writes every segment in optimized form. Expanded segments are
// encoded on the side and keep their state.
func (l *List[T, S, K]) MarshalJSON() ([]byte, error) {
	shared, err := l.marshalShared()
	if err != nil {
		return nil, err
	}

	wire := listJSON{
		Count:        l.count,
		SharedValues: shared,
		Segments:     make([]segmentJSON, len(l.segments)),
	}
	for i, seg := range l.segments {
		sj, err := seg.toJSON()
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		wire.Segments[i] = sj
	}
	return json.Marshal(wire)
}

func (l *List[T, S, K]) marshalShared() ([]byte, error) {
	values := l.shared
	if values == nil {
		values = []S{}
	}
	if codec, ok := l.adapter.(sharedCodec[S]); ok {
		return codec.MarshalShared(values)
	}
	return json.Marshal(values)
}

func (l *List[T, S, K]) unmarshalShared(data json.RawMessage) ([]S, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if codec, ok := l.adapter.(sharedCodec[S]); ok {
		return codec.UnmarshalShared(data)
	}
	var values []S
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// UnmarshalJSON reads a persisted list. Segments stay optimized and expand on
// first access. The receiver must carry its adapter, see Empty.
func (l *List[T, S, K]) UnmarshalJSON(data []byte) error {
	if l.adapter == nil {
		return spanerrors.NewDecodeError("span list", fmt.Errorf("list has no adapter"))
	}

	var wire listJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return spanerrors.NewDecodeError("span list", err)
	}
	shared, err := l.unmarshalShared(wire.SharedValues)
	if err != nil {
		return spanerrors.NewDecodeError("shared values", err)
	}

	if wire.Count < 0 {
		return spanerrors.NewDecodeError("span list", fmt.Errorf("negative count %d", wire.Count))
	}
	if expected := (wire.Count + SegmentSize - 1) >> SegmentShift; len(wire.Segments) != expected {
		return spanerrors.NewDecodeError("span list",
			fmt.Errorf("%d segments for %d spans, expected %d", len(wire.Segments), wire.Count, expected))
	}

	extraNames := l.extraNames()
	segments := make([]*Segment, len(wire.Segments))
	for i, sj := range wire.Segments {
		expected := SegmentSize
		if i == len(wire.Segments)-1 {
			expected = wire.Count - i*SegmentSize
		}
		seg, err := segmentFromJSON(sj, extraNames, l.relative, expected)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		segments[i] = seg
	}

	l.shared = shared
	l.segments = segments
	l.count = wire.Count
	return nil
}

// toJSON captures the segment in optimized form without changing it.
func (s *Segment) toJSON() (segmentJSON, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj := segmentJSON{
		Optimized:      true,
		FullLength:     s.fullLength,
		StartsExpanded: s.startsExpanded,
		Starts:         s.starts,
		Lengths:        s.lengths,
		SharedIndices:  s.sharedIndices,
	}
	if !s.optimized.Load() {
		starts, raw, err := encodeStarts(s.starts, s.lengths, s.relative)
		if err != nil {
			return segmentJSON{}, err
		}
		sj.Starts, sj.StartsExpanded = starts, raw
	}
	if len(s.extraNames) > 0 {
		sj.Extras = make(map[string]*encoding.IntArray, len(s.extraNames))
		for _, name := range s.extraNames {
			sj.Extras[name] = s.extras[name]
		}
	}
	return sj, nil
}

func segmentFromJSON(sj segmentJSON, extraNames []string, relative bool, expected int) (*Segment, error) {
	if sj.Starts == nil || sj.Lengths == nil || sj.SharedIndices == nil {
		return nil, spanerrors.NewDecodeError("segment", fmt.Errorf("missing array"))
	}
	if sj.FullLength < 0 {
		return nil, spanerrors.NewDecodeError("segment", fmt.Errorf("negative full length %d", sj.FullLength))
	}
	arrays := map[string]*encoding.IntArray{
		"starts":        sj.Starts,
		"lengths":       sj.Lengths,
		"sharedIndices": sj.SharedIndices,
	}
	extras := make(map[string]*encoding.IntArray, len(extraNames))
	for _, name := range extraNames {
		arr, ok := sj.Extras[name]
		if !ok || arr == nil {
			return nil, spanerrors.NewDecodeError("segment", fmt.Errorf("missing %s", name))
		}
		extras[name] = arr
		arrays[name] = arr
	}
	for name, arr := range arrays {
		if arr.Count() != expected {
			return nil, spanerrors.NewDecodeError("segment",
				fmt.Errorf("%s has %d values, expected %d", name, arr.Count(), expected))
		}
	}

	seg := &Segment{
		count:          expected,
		minStart:       int(sj.Starts.MinValue()),
		fullLength:     sj.FullLength,
		startsExpanded: sj.StartsExpanded,
		relative:       relative,
		starts:         sj.Starts,
		lengths:        sj.Lengths,
		sharedIndices:  sj.SharedIndices,
		extraNames:     extraNames,
		extras:         extras,
	}
	seg.optimized.Store(true)
	return seg, nil
}
