package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/bits"

	"github.com/klauspost/compress/flate"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
)

// MaxByteWidth is the widest value an IntArray stores (int64).
const MaxByteWidth = 8

// IntArray packs integers into the smallest little-endian byte width that
// covers max(value - minimum). Indexed access is O(1) byte arithmetic.
//
// An array is either expanded (packed bytes in memory, indexable) or
// optimized (deflated, base64 encoded). Optimize and Expand switch between
// the two and are no-ops when the array is already in the target state.
// Expand(Optimize(x)) restores x bit for bit.
//
// IntArray is not safe for concurrent mutation; callers serialize
// Optimize/Expand against readers.
type IntArray struct {
	byteWidth int
	minValue  int64

	// expanded state
	data []byte

	// optimized state
	optimized          bool
	cdata              string
	compressedLength   int
	decompressedLength int // 0 means cdata holds raw bytes, not deflate output
}

// NewIntArray creates an expanded array holding values offset by minimum.
// Every value must be >= minimum.
func NewIntArray(values []int64, minimum int64) (*IntArray, error) {
	var maxAdjusted uint64
	for i, v := range values {
		if v < minimum {
			return nil, spanerrors.NewEncodingError(i, v, minimum, 0)
		}
		if adj := uint64(v - minimum); adj > maxAdjusted {
			maxAdjusted = adj
		}
	}

	width := ByteWidth(maxAdjusted)
	a := &IntArray{
		byteWidth: width,
		minValue:  minimum,
		data:      make([]byte, width*len(values)),
	}
	for i, v := range values {
		a.put(i, uint64(v-minimum))
	}
	return a, nil
}

// NewIntArrayFromInts is NewIntArray for int slices.
func NewIntArrayFromInts(values []int, minimum int) (*IntArray, error) {
	converted := make([]int64, len(values))
	for i, v := range values {
		converted[i] = int64(v)
	}
	return NewIntArray(converted, int64(minimum))
}

// ByteWidth returns the number of bytes needed to hold v, never less than one.
func ByteWidth(v uint64) int {
	w := (bits.Len64(v) + 7) / 8
	if w == 0 {
		return 1
	}
	return w
}

// ByteWidthOf returns the width NewIntArray would pick for values.
func ByteWidthOf(values []int64, minimum int64) int {
	var maxAdjusted uint64
	for _, v := range values {
		if v >= minimum {
			if adj := uint64(v - minimum); adj > maxAdjusted {
				maxAdjusted = adj
			}
		}
	}
	return ByteWidth(maxAdjusted)
}

// ValueByteWidth returns the per-value width in bytes.
func (a *IntArray) ValueByteWidth() int {
	return a.byteWidth
}

// MinValue returns the minimum subtracted from every stored value.
func (a *IntArray) MinValue() int64 {
	return a.minValue
}

// IsOptimized reports whether the array is in compressed form.
func (a *IntArray) IsOptimized() bool {
	return a.optimized
}

// Count returns the number of values in either state.
func (a *IntArray) Count() int {
	if a.byteWidth == 0 {
		return 0
	}
	if !a.optimized {
		return len(a.data) / a.byteWidth
	}
	if a.decompressedLength > 0 {
		return a.decompressedLength / a.byteWidth
	}
	return a.compressedLength / a.byteWidth
}

// EncodedSize returns the byte size of the current representation: packed
// bytes when expanded, stored payload bytes when optimized.
func (a *IntArray) EncodedSize() int {
	if a.optimized {
		return a.compressedLength
	}
	return len(a.data)
}

// Get returns the value at index. The array must be expanded.
func (a *IntArray) Get(index int) int64 {
	if a.optimized {
		panic("encoding: IntArray.Get on optimized array")
	}
	offset := index * a.byteWidth
	var v uint64
	for b := 0; b < a.byteWidth; b++ {
		v |= uint64(a.data[offset+b]) << (8 * b)
	}
	return int64(v) + a.minValue
}

// Set stores value at index. It returns an EncodingError when the value is
// below the minimum or wider than the array's byte width.
func (a *IntArray) Set(index int, value int64) error {
	if a.optimized {
		panic("encoding: IntArray.Set on optimized array")
	}
	if value < a.minValue {
		return spanerrors.NewEncodingError(index, value, a.minValue, a.byteWidth)
	}
	adj := uint64(value - a.minValue)
	if ByteWidth(adj) > a.byteWidth {
		return spanerrors.NewEncodingError(index, value, a.minValue, a.byteWidth)
	}
	a.put(index, adj)
	return nil
}

func (a *IntArray) put(index int, adj uint64) {
	offset := index * a.byteWidth
	for b := 0; b < a.byteWidth; b++ {
		a.data[offset+b] = byte(adj >> (8 * b))
	}
}

// Values returns all values. The array must be expanded.
func (a *IntArray) Values() []int64 {
	out := make([]int64, a.Count())
	for i := range out {
		out[i] = a.Get(i)
	}
	return out
}

// Clone returns a deep copy in the same state.
func (a *IntArray) Clone() *IntArray {
	c := *a
	if a.data != nil {
		c.data = append([]byte(nil), a.data...)
	}
	return &c
}

// Optimize deflates the packed bytes. When deflate does not shrink them the
// raw bytes are kept, still base64 encoded, and the decompressed length
// marker is set to 0.
func (a *IntArray) Optimize() error {
	if a.optimized {
		return nil
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return fmt.Errorf("failed to create deflate writer: %w", err)
	}
	if _, err := fw.Write(a.data); err != nil {
		return fmt.Errorf("failed to deflate integer array: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to flush deflate writer: %w", err)
	}

	if buf.Len() < len(a.data) {
		a.cdata = base64.StdEncoding.EncodeToString(buf.Bytes())
		a.compressedLength = buf.Len()
		a.decompressedLength = len(a.data)
	} else {
		a.cdata = base64.StdEncoding.EncodeToString(a.data)
		a.compressedLength = len(a.data)
		a.decompressedLength = 0
	}

	a.data = nil
	a.optimized = true
	return nil
}

// Expand reverses Optimize. Corrupt or truncated payloads yield a DecodeError
// and leave the array optimized.
func (a *IntArray) Expand() error {
	if !a.optimized {
		return nil
	}
	if a.byteWidth < 1 || a.byteWidth > MaxByteWidth {
		return spanerrors.NewDecodeError("width", fmt.Errorf("invalid value byte width %d", a.byteWidth))
	}
	if a.compressedLength < 0 || a.decompressedLength < 0 {
		return spanerrors.NewDecodeError("length", fmt.Errorf("negative payload length"))
	}

	raw, err := base64.StdEncoding.DecodeString(a.cdata)
	if err != nil {
		return spanerrors.NewDecodeError("base64", err)
	}
	if len(raw) != a.compressedLength {
		return spanerrors.NewDecodeError("length",
			fmt.Errorf("payload has %d bytes, expected %d", len(raw), a.compressedLength))
	}

	data := raw
	if a.decompressedLength > 0 {
		if a.decompressedLength%a.byteWidth != 0 {
			return spanerrors.NewDecodeError("length",
				fmt.Errorf("decompressed length %d is not a multiple of width %d", a.decompressedLength, a.byteWidth))
		}
		// The buffer grows with what the stream yields, never with the
		// recorded length.
		fr := flate.NewReader(bytes.NewReader(raw))
		data, err = io.ReadAll(io.LimitReader(fr, int64(a.decompressedLength)+1))
		fr.Close()
		if err != nil {
			return spanerrors.NewDecodeError("inflate", err)
		}
		if len(data) != a.decompressedLength {
			return spanerrors.NewDecodeError("length",
				fmt.Errorf("inflated %d bytes, expected %d", len(data), a.decompressedLength))
		}
	}
	if len(data)%a.byteWidth != 0 {
		return spanerrors.NewDecodeError("length",
			fmt.Errorf("%d bytes is not a multiple of width %d", len(data), a.byteWidth))
	}

	a.data = data
	a.cdata = ""
	a.compressedLength = 0
	a.decompressedLength = 0
	a.optimized = false
	return nil
}

// Equal reports whether both arrays hold the same values with the same width
// and minimum. Both must be expanded.
func (a *IntArray) Equal(other *IntArray) bool {
	return a.byteWidth == other.byteWidth &&
		a.minValue == other.minValue &&
		bytes.Equal(a.data, other.data)
}

// intArrayJSON is the persisted blob layout.
type intArrayJSON struct {
	ValueByteWidth     int    `json:"valueByteWidth"`
	MinValue           int64  `json:"minValue"`
	DecompressedLength int    `json:"decompressedLength"`
	CompressedLength   int    `json:"compressedLength"`
	CData              string `json:"cdata"`
}

// MarshalJSON writes the optimized form. An expanded array is optimized on a
// copy so the receiver keeps its state.
func (a *IntArray) MarshalJSON() ([]byte, error) {
	src := a
	if !a.optimized {
		src = a.Clone()
		if err := src.Optimize(); err != nil {
			return nil, err
		}
	}
	return json.Marshal(intArrayJSON{
		ValueByteWidth:     src.byteWidth,
		MinValue:           src.minValue,
		DecompressedLength: src.decompressedLength,
		CompressedLength:   src.compressedLength,
		CData:              src.cdata,
	})
}

// UnmarshalJSON reads the optimized form. The array stays optimized until
// Expand is called.
func (a *IntArray) UnmarshalJSON(data []byte) error {
	var wire intArrayJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return spanerrors.NewDecodeError("integer array", err)
	}
	if wire.ValueByteWidth < 1 || wire.ValueByteWidth > MaxByteWidth {
		return spanerrors.NewDecodeError("integer array",
			fmt.Errorf("invalid value byte width %d", wire.ValueByteWidth))
	}
	if wire.CompressedLength < 0 || wire.DecompressedLength < 0 {
		return spanerrors.NewDecodeError("integer array", fmt.Errorf("negative payload length"))
	}
	if wire.DecompressedLength%wire.ValueByteWidth != 0 {
		return spanerrors.NewDecodeError("integer array",
			fmt.Errorf("decompressed length %d is not a multiple of width %d", wire.DecompressedLength, wire.ValueByteWidth))
	}
	*a = IntArray{
		byteWidth:          wire.ValueByteWidth,
		minValue:           wire.MinValue,
		optimized:          true,
		cdata:              wire.CData,
		compressedLength:   wire.CompressedLength,
		decompressedLength: wire.DecompressedLength,
	}
	return nil
}
