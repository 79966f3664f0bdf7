package mergeindex

import (
	"path"
	"strings"
)

// FileTags returns the filterable tags of a file: the lowercased project id,
// the file name, its extension and the name without extension. Empty and
// repeated tags are dropped.
func FileTags(projectID, filePath string) []string {
	name := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	ext := path.Ext(name)

	candidates := []string{
		strings.ToLower(projectID),
		name,
		ext,
		strings.TrimSuffix(name, ext),
	}
	tags := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, tag := range candidates {
		if tag == "" || tag == "." || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
