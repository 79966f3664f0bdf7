package idcodec

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// partSeparator joins a merge id and a part number.
const partSeparator = "."

// Hash returns the xxhash of the NUL-joined parts.
func Hash(parts ...string) uint64 {
	d := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.WriteString(p)
	}
	return d.Sum64()
}

// MergeID correlates every stored row of one file. Project ids compare
// case-insensitively.
func MergeID(projectID, path string) string {
	return Encode(Hash(strings.ToLower(projectID), path))
}

// PartID names one physical row of a file split into parts.
func PartID(mergeID string, part int) string {
	return mergeID + partSeparator + Encode(uint64(part))
}

// ParsePartID splits a part id into its merge id and part number.
func ParsePartID(id string) (string, int, error) {
	i := strings.LastIndex(id, partSeparator)
	if i <= 0 {
		return "", 0, fmt.Errorf("part id %q: missing separator", id)
	}
	part, err := Decode(id[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("part id %q: %w", id, err)
	}
	if _, err := Decode(id[:i]); err != nil {
		return "", 0, fmt.Errorf("part id %q: %w", id, err)
	}
	return id[:i], int(part), nil
}

// DefinitionID identifies a definition row across the whole store.
func DefinitionID(projectID, symbolID string) string {
	return Encode(Hash("def", strings.ToLower(projectID), symbolID))
}

// RowID identifies a secondary row derived from a file, such as a reference
// group or property, by its kind and key.
func RowID(mergeID, kind, key string) string {
	return mergeID + partSeparator + kind + partSeparator + Encode(Hash(key))
}
