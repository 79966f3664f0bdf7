package types

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateSymbolID(t *testing.T) {
	tests := []struct {
		raw      string
		expected SymbolID
	}{
		{"T:System.String", "System.String:T"},
		{"M:System.String.Concat(System.String)", "System.String.Concat(System.String):M"},
		{"N:System", "System:N"},
		{"plain", "plain"},
		{"", ""},
		{"T:", "T:"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CreateSymbolID(tt.raw), "raw id %q", tt.raw)
	}
}

func TestCreateSymbolID_GroupsNamespaceWhenSorted(t *testing.T) {
	ids := []string{
		string(CreateSymbolID("T:System.String")),
		string(CreateSymbolID("M:Acme.Widget.Run")),
		string(CreateSymbolID("T:Acme.Widget")),
		string(CreateSymbolID("P:System.String.Length")),
	}
	sort.Strings(ids)

	assert.Equal(t, []string{
		"Acme.Widget.Run:M",
		"Acme.Widget:T",
		"System.String.Length:P",
		"System.String:T",
	}, ids)
}

func TestCompareReferenceSymbols(t *testing.T) {
	a := ReferenceSymbol{ProjectID: "p1", Kind: "Method", ID: "b", ReferenceKind: ReferenceKindReference}
	b := ReferenceSymbol{ProjectID: "p1", Kind: "Method", ID: "b", ReferenceKind: ReferenceKindWrite}
	c := ReferenceSymbol{ProjectID: "p1", Kind: "Type", ID: "a", ReferenceKind: ReferenceKindReference}
	d := ReferenceSymbol{ProjectID: "p0", Kind: "Type", ID: "z", ReferenceKind: ReferenceKindReference}

	assert.Negative(t, CompareReferenceSymbols(a, b))
	assert.Negative(t, CompareReferenceSymbols(a, c), "kind orders before id")
	assert.Positive(t, CompareReferenceSymbols(a, d), "project orders first")
	assert.Zero(t, CompareReferenceSymbols(a, a))
}

func TestSpanIntersects(t *testing.T) {
	span := Span{Start: 10, Length: 5}

	assert.True(t, span.Intersects(0, 11))
	assert.False(t, span.Intersects(0, 10), "range ending at start is disjoint")
	assert.True(t, span.Intersects(14, 1))
	assert.False(t, span.Intersects(15, 3), "range starting at end is disjoint")
	assert.True(t, span.Intersects(12, 0), "point inside the span")
	assert.False(t, span.Intersects(15, 0))

	empty := Span{Start: 20}
	assert.True(t, empty.Intersects(20, 0))
	assert.True(t, empty.Intersects(18, 3))
	assert.False(t, empty.Intersects(21, 4))
}

func TestDefinitionAsReference(t *testing.T) {
	def := NewDefinitionSymbol("proj", "T:Acme.Widget", "Class", "Widget")
	assert.Equal(t, SymbolID("Acme.Widget:T"), def.ID)
	assert.Equal(t, ReferenceKindDefinition, def.ReferenceKind)

	ref := def.AsReference(ReferenceKindInstantiation)
	assert.Equal(t, def.ID, ref.ID)
	assert.Equal(t, ReferenceKindInstantiation, ref.ReferenceKind)
	assert.Equal(t, def.Key().ID, ref.Key().ID)
}
