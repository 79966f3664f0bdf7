package indexing

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/mergeindex"
)

func spanSchema(extra map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	props := map[string]*jsonschema.Schema{
		"start":  {Type: "integer", Description: "Absolute character offset"},
		"length": {Type: "integer", Description: "Span length in characters"},
	}
	for name, s := range extra {
		props[name] = s
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   append([]string{"start", "length"}, required...),
	}
}

// symbolSchema returns a fresh schema per use; a schema value may appear only
// once in a resolved tree.
func symbolSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"projectId":     {Type: "string"},
			"id":            {Type: "string"},
			"kind":          {Type: "string"},
			"referenceKind": {Type: "string"},
		},
		Required: []string{"id"},
	}
}

// SourceFileSchema describes the JSON document analyzers hand to the
// uploader, one per file.
var SourceFileSchema = &jsonschema.Schema{
	Type:        "object",
	Description: "One analyzed source file",
	Properties: map[string]*jsonschema.Schema{
		"projectId": {Type: "string", Description: "Owning project"},
		"path":      {Type: "string", Description: "Project-relative path"},
		"language":  {Type: "string"},
		"content":   {Type: "string"},
		"classifications": {
			Type: "array",
			Items: spanSchema(map[string]*jsonschema.Schema{
				"classification": {Type: "string"},
				"defaultColor":   {Type: "integer"},
				"localGroupId":   {Type: "integer"},
			}, "classification"),
		},
		"definitions": {
			Type:  "array",
			Items: spanSchema(map[string]*jsonschema.Schema{"definition": symbolSchema()}, "definition"),
		},
		"references": {
			Type: "array",
			Items: spanSchema(map[string]*jsonschema.Schema{
				"reference":         symbolSchema(),
				"relatedDefinition": {Type: "string"},
			}, "reference"),
		},
		"properties": {
			Type:                 "object",
			AdditionalProperties: &jsonschema.Schema{Type: "string"},
		},
	},
	Required: []string{"projectId", "path"},
}

var resolvedSourceFileSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return SourceFileSchema.Resolve(nil)
})

// DecodeSourceFile validates data against SourceFileSchema and decodes it.
func DecodeSourceFile(data []byte) (mergeindex.SourceFile, error) {
	var src mergeindex.SourceFile

	resolved, err := resolvedSourceFileSchema()
	if err != nil {
		return src, fmt.Errorf("resolve source file schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return src, spanerrors.NewDecodeError("source file", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return src, spanerrors.NewDecodeError("source file", err)
	}
	if err := json.Unmarshal(data, &src); err != nil {
		return src, spanerrors.NewDecodeError("source file", err)
	}
	return src, nil
}

// ReadSourceFile reads and decodes one source file document.
func ReadSourceFile(r io.Reader) (mergeindex.SourceFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return mergeindex.SourceFile{}, err
	}
	return DecodeSourceFile(data)
}
