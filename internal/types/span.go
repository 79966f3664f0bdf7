package types

// Span is a character range within a document.
type Span struct {
	Start  int32 `json:"start"`
	Length int32 `json:"length"`
}

// End returns the exclusive end offset of the span.
func (s Span) End() int32 {
	return s.Start + s.Length
}

// Contains reports whether the absolute offset lies inside the span.
func (s Span) Contains(position int32) bool {
	return position >= s.Start && position < s.End()
}

// Intersects reports whether the span overlaps [start, start+length).
// Zero-length spans intersect a range that contains their start.
func (s Span) Intersects(start, length int32) bool {
	if s.Length == 0 {
		return s.Start >= start && (s.Start < start+length || (length == 0 && s.Start == start))
	}
	if length == 0 {
		return start >= s.Start && start < s.End()
	}
	return s.Start < start+length && start < s.End()
}

// ClassificationSpan tags a range with a syntax/semantic classification.
// LocalGroupID links every token referring to the same local symbol within a
// file so it can be highlighted together; zero means no group.
type ClassificationSpan struct {
	Span
	Classification string `json:"classification"`
	DefaultColor   int32  `json:"defaultColor,omitempty"`
	LocalGroupID   int32  `json:"localGroupId,omitempty"`
}

// DefinitionSpan marks where a symbol is defined.
type DefinitionSpan struct {
	Span
	Definition DefinitionSymbol `json:"definition"`
}

// ReferenceSpan marks a use of a symbol. RelatedDefinition is set for indirect
// references such as an interface member implemented by the referencing member.
type ReferenceSpan struct {
	Span
	Reference         ReferenceSymbol `json:"reference"`
	RelatedDefinition SymbolID        `json:"relatedDefinition,omitempty"`
}

// LineSpan is a span carrying the context of the line it occurs on.
// LineOffset is the span start relative to LineStart.
type LineSpan struct {
	Span
	LineNumber int32  `json:"lineNumber"`
	LineOffset int32  `json:"lineOffset"`
	LineStart  int32  `json:"lineStart"`
	LineText   string `json:"lineText"`
}
