package types

// Common system-wide constants
const (
	// DefaultMaxContentSize is the largest content chunk stored in a single
	// physical document. Larger files are split into several rows sharing a
	// merge id.
	DefaultMaxContentSize = 4 * 1024 * 1024

	// DefaultLineSpanThreshold is the largest reference group whose
	// occurrences keep per-line context in derived search rows.
	DefaultLineSpanThreshold = 10

	// DefaultUploadConcurrency bounds how many files are packed at once.
	DefaultUploadConcurrency = 8
)

// Search document types written for every file.
const (
	DocumentTypeFile       = "file"
	DocumentTypeDefinition = "definition"
	DocumentTypeReference  = "reference"
	DocumentTypeProperty   = "property"
)

// FileLocation identifies a logical file in the store.
type FileLocation struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"path"`
}
