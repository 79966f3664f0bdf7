package encoding

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
)

func TestByteWidth(t *testing.T) {
	tests := []struct {
		value    uint64
		expected int
	}{
		{0, 1},
		{1, 1},
		{255, 1},
		{256, 2},
		{65535, 2},
		{65536, 3},
		{1<<24 - 1, 3},
		{1 << 24, 4},
		{1<<32 - 1, 4},
		{1 << 32, 5},
		{^uint64(0), 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ByteWidth(tt.value), "width of %d", tt.value)
	}
}

func TestIntArray_CreateAndGet(t *testing.T) {
	values := []int64{100, 105, 100, 356, 101}
	arr, err := NewIntArray(values, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, arr.ValueByteWidth(), "256 above minimum needs 2 bytes")
	assert.Equal(t, int64(100), arr.MinValue())
	assert.Equal(t, len(values), arr.Count())
	assert.Equal(t, 2*len(values), arr.EncodedSize())

	for i, v := range values {
		assert.Equal(t, v, arr.Get(i), "index %d", i)
	}
	assert.Equal(t, values, arr.Values())
}

func TestIntArray_Empty(t *testing.T) {
	arr, err := NewIntArray(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, arr.Count())
	assert.Equal(t, 1, arr.ValueByteWidth())

	require.NoError(t, arr.Optimize())
	assert.Equal(t, 0, arr.Count())
	require.NoError(t, arr.Expand())
	assert.Equal(t, 0, arr.Count())
}

func TestIntArray_BelowMinimumIsEncodingError(t *testing.T) {
	_, err := NewIntArray([]int64{5, 3}, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, spanerrors.ErrEncoding))

	var encErr *spanerrors.EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 1, encErr.Index)
}

func TestIntArray_SetChecksWidth(t *testing.T) {
	arr, err := NewIntArray([]int64{0, 10, 200}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, arr.ValueByteWidth())

	require.NoError(t, arr.Set(1, 255))
	assert.Equal(t, int64(255), arr.Get(1))

	err = arr.Set(1, 256)
	assert.True(t, errors.Is(err, spanerrors.ErrEncoding))
	assert.Equal(t, int64(255), arr.Get(1), "failed set leaves value untouched")

	err = arr.Set(0, -1)
	assert.True(t, errors.Is(err, spanerrors.ErrEncoding))
}

func TestIntArray_NegativeMinimum(t *testing.T) {
	values := []int64{-1000, -3, 0, 7, 65000}
	arr, err := NewIntArray(values, -1000)
	require.NoError(t, err)
	assert.Equal(t, 3, arr.ValueByteWidth())
	assert.Equal(t, values, arr.Values())
}

// TestIntArray_RoundTripLaw checks Expand(Optimize(Create(values))) == values
// for random sequences, including ones that do not compress.
func TestIntArray_RoundTripLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(600)
		spread := int64(1) << uint(rng.Intn(40))
		minimum := rng.Int63n(1000) - 500
		values := make([]int64, n)
		for i := range values {
			values[i] = minimum + rng.Int63n(spread)
		}

		arr, err := NewIntArray(values, minimum)
		require.NoError(t, err)
		before := arr.Clone()

		require.NoError(t, arr.Optimize())
		assert.True(t, arr.IsOptimized())
		assert.Equal(t, n, arr.Count(), "count is available while optimized")

		require.NoError(t, arr.Expand())
		assert.False(t, arr.IsOptimized())
		assert.True(t, before.Equal(arr), "iteration %d: bytes differ after round trip", iter)
		if n > 0 {
			assert.Equal(t, values, arr.Values())
		}
	}
}

func TestIntArray_OptimizeAndExpandAreIdempotent(t *testing.T) {
	values := make([]int64, 1000)
	for i := range values {
		values[i] = int64(i % 7)
	}
	arr, err := NewIntArray(values, 0)
	require.NoError(t, err)

	require.NoError(t, arr.Optimize())
	size := arr.EncodedSize()
	require.NoError(t, arr.Optimize())
	assert.Equal(t, size, arr.EncodedSize())
	assert.Less(t, size, len(values), "repetitive data deflates")

	require.NoError(t, arr.Expand())
	require.NoError(t, arr.Expand())
	assert.Equal(t, values, arr.Values())
}

func TestIntArray_IncompressibleKeepsRawBytes(t *testing.T) {
	arr, err := NewIntArray([]int64{9}, 0)
	require.NoError(t, err)
	require.NoError(t, arr.Optimize())

	assert.Equal(t, 0, arr.decompressedLength, "raw payload is flagged with a zero marker")
	assert.Equal(t, 1, arr.compressedLength)

	require.NoError(t, arr.Expand())
	assert.Equal(t, int64(9), arr.Get(0))
}

func TestIntArray_JSONRoundTrip(t *testing.T) {
	values := []int64{3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 4000}
	arr, err := NewIntArray(values, 3)
	require.NoError(t, err)

	data, err := json.Marshal(arr)
	require.NoError(t, err)
	assert.False(t, arr.IsOptimized(), "marshal does not change the receiver")

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	for _, key := range []string{"valueByteWidth", "minValue", "decompressedLength", "compressedLength", "cdata"} {
		assert.Contains(t, wire, key)
	}

	var decoded IntArray
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsOptimized())
	assert.Equal(t, len(values), decoded.Count())
	require.NoError(t, decoded.Expand())
	assert.Equal(t, values, decoded.Values())
}

func TestIntArray_CorruptPayloadIsDecodeError(t *testing.T) {
	values := make([]int64, 500)
	for i := range values {
		values[i] = int64(i % 3)
	}
	arr, err := NewIntArray(values, 0)
	require.NoError(t, err)
	require.NoError(t, arr.Optimize())
	require.NotZero(t, arr.decompressedLength, "fixture must be compressed")

	tests := []struct {
		name   string
		mutate func(a *IntArray)
	}{
		{"bad base64", func(a *IntArray) { a.cdata = "!!not base64!!" }},
		{"truncated payload", func(a *IntArray) { a.cdata = a.cdata[:len(a.cdata)/2] }},
		{"wrong compressed length", func(a *IntArray) { a.compressedLength++ }},
		{"overstated decompressed length", func(a *IntArray) { a.decompressedLength *= 4 }},
		{"invalid width", func(a *IntArray) { a.byteWidth = 9 }},
		{"huge decompressed length", func(a *IntArray) { a.decompressedLength = 9_000_000_000_000_000_000 }},
		{"decompressed length off width", func(a *IntArray) { a.byteWidth = 2; a.decompressedLength = 501 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := arr.Clone()
			tt.mutate(corrupt)
			err := corrupt.Expand()
			require.Error(t, err)
			assert.True(t, errors.Is(err, spanerrors.ErrDecode), "got %v", err)
			assert.True(t, corrupt.IsOptimized(), "failed expansion leaves the array optimized")
		})
	}
}

func TestIntArray_UnmarshalRejectsBadWidth(t *testing.T) {
	var arr IntArray
	err := json.Unmarshal([]byte(`{"valueByteWidth":0,"minValue":0,"decompressedLength":0,"compressedLength":0,"cdata":""}`), &arr)
	assert.True(t, errors.Is(err, spanerrors.ErrDecode))
}

func TestIntArray_ImplausibleLengthFromBlob(t *testing.T) {
	var arr IntArray
	blob := `{"valueByteWidth":1,"minValue":0,"decompressedLength":9000000000000000000,"compressedLength":2,"cdata":"AwA="}`
	require.NoError(t, json.Unmarshal([]byte(blob), &arr))

	err := arr.Expand()
	require.Error(t, err)
	assert.True(t, errors.Is(err, spanerrors.ErrDecode), "got %v", err)
	assert.True(t, arr.IsOptimized())

	err = json.Unmarshal([]byte(`{"valueByteWidth":4,"minValue":0,"decompressedLength":6,"compressedLength":2,"cdata":"AwA="}`), &arr)
	assert.True(t, errors.Is(err, spanerrors.ErrDecode), "got %v", err)

	err = json.Unmarshal([]byte(`{"valueByteWidth":1,"minValue":0,"decompressedLength":-4,"compressedLength":2,"cdata":"AwA="}`), &arr)
	assert.True(t, errors.Is(err, spanerrors.ErrDecode), "got %v", err)
}

func BenchmarkIntArrayGet(b *testing.B) {
	values := make([]int64, 4096)
	for i := range values {
		values[i] = int64(i * 37)
	}
	arr, err := NewIntArray(values, 0)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	var sum int64
	for i := 0; i < b.N; i++ {
		sum += arr.Get(i & 4095)
	}
	_ = sum
}
