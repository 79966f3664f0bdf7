package types

import (
	"strings"
)

// SymbolID is a normalized, sort-friendly symbol identity. Equality and
// ordering are plain string comparison on the normalized form.
type SymbolID string

// CreateSymbolID normalizes a documentation-comment style id such as
// "T:System.String" into "System.String:T". Moving the kind prefix to the end
// keeps ids of the same namespace adjacent when sorted. Ids without a single
// character kind prefix are returned unchanged.
//
// The function is applied once to raw ids; it is not an involution.
func CreateSymbolID(raw string) SymbolID {
	if len(raw) > 2 && raw[1] == ':' {
		return SymbolID(raw[2:] + ":" + raw[:1])
	}
	return SymbolID(raw)
}

// String returns the normalized id.
func (id SymbolID) String() string {
	return string(id)
}

// IsEmpty reports whether the id is unset.
func (id SymbolID) IsEmpty() bool {
	return id == ""
}

// ReferenceKind describes how a reference relates to its target symbol.
type ReferenceKind string

const (
	ReferenceKindReference                     ReferenceKind = "Reference"
	ReferenceKindRead                          ReferenceKind = "Read"
	ReferenceKindWrite                         ReferenceKind = "Write"
	ReferenceKindDefinition                    ReferenceKind = "Definition"
	ReferenceKindOverride                      ReferenceKind = "Override"
	ReferenceKindInterfaceImplementation       ReferenceKind = "InterfaceImplementation"
	ReferenceKindInterfaceMemberImplementation ReferenceKind = "InterfaceMemberImplementation"
	ReferenceKindInstantiation                 ReferenceKind = "Instantiation"
	ReferenceKindConstructor                   ReferenceKind = "Constructor"
	ReferenceKindDerivedType                   ReferenceKind = "DerivedType"
	ReferenceKindUsingDirective                ReferenceKind = "UsingDirective"
	ReferenceKindProjectLevelReference         ReferenceKind = "ProjectLevelReference"
	ReferenceKindPartial                       ReferenceKind = "Partial"
	ReferenceKindOther                         ReferenceKind = "Other"
)

// ReferenceSymbol identifies the target of a reference and how it is used.
type ReferenceSymbol struct {
	ProjectID     string        `json:"projectId"`
	ID            SymbolID      `json:"id"`
	Kind          string        `json:"kind"`
	ReferenceKind ReferenceKind `json:"referenceKind"`

	// ExcludeFromSearch hides the symbol from every search.
	ExcludeFromSearch bool `json:"excludeFromSearch,omitempty"`
	// ExcludeFromDefaultSearch hides the symbol unless it is asked for
	// explicitly (constructors, accessors).
	ExcludeFromDefaultSearch bool `json:"excludeFromDefaultSearch,omitempty"`
	IsImplicitlyDeclared     bool `json:"isImplicitlyDeclared,omitempty"`
}

// Key returns the identity used to deduplicate references that share a
// target: project, id, kind and reference kind.
func (r ReferenceSymbol) Key() ReferenceKey {
	return ReferenceKey{
		ProjectID:     r.ProjectID,
		ID:            r.ID,
		Kind:          r.Kind,
		ReferenceKind: r.ReferenceKind,
	}
}

// ReferenceKey is the comparable identity of a ReferenceSymbol.
type ReferenceKey struct {
	ProjectID     string
	ID            SymbolID
	Kind          string
	ReferenceKind ReferenceKind
}

// CompareReferenceSymbols orders references by ProjectID, Kind, ID and then
// ReferenceKind, which groups references to the same symbol together.
func CompareReferenceSymbols(a, b ReferenceSymbol) int {
	if c := strings.Compare(a.ProjectID, b.ProjectID); c != 0 {
		return c
	}
	if c := strings.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.ID), string(b.ID)); c != 0 {
		return c
	}
	return strings.Compare(string(a.ReferenceKind), string(b.ReferenceKind))
}

// DefinitionSymbol is a reference symbol plus the display metadata shown in
// search results and hovers.
type DefinitionSymbol struct {
	ReferenceSymbol

	DisplayName            string `json:"displayName,omitempty"`
	ShortName              string `json:"shortName,omitempty"`
	ContainerQualifiedName string `json:"containerQualifiedName,omitempty"`
	TypeName               string `json:"typeName,omitempty"`
	Glyph                  string `json:"glyph,omitempty"`
	SymbolDepth            int32  `json:"symbolDepth,omitempty"`
	Comment                string `json:"comment,omitempty"`
}

// NewDefinitionSymbol creates a definition for the given project and raw
// documentation id. The id is normalized with CreateSymbolID.
func NewDefinitionSymbol(projectID, rawID, kind, shortName string) DefinitionSymbol {
	return DefinitionSymbol{
		ReferenceSymbol: ReferenceSymbol{
			ProjectID:     projectID,
			ID:            CreateSymbolID(rawID),
			Kind:          kind,
			ReferenceKind: ReferenceKindDefinition,
		},
		ShortName:   shortName,
		DisplayName: shortName,
	}
}

// AsReference returns the reference form of the definition.
func (d DefinitionSymbol) AsReference(kind ReferenceKind) ReferenceSymbol {
	ref := d.ReferenceSymbol
	ref.ReferenceKind = kind
	return ref
}
