package indexing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/spanidx/internal/config"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/idcodec"
	"github.com/standardbeagle/spanidx/internal/mergeindex"
	"github.com/standardbeagle/spanidx/internal/store"
	"github.com/standardbeagle/spanidx/internal/symbolsearch"
	"github.com/standardbeagle/spanidx/internal/types"
)

const sampleContent = "package main\n\nfunc parseConfig() {}\n\nfunc main() {\n\tparseConfig()\n\tparseConfig()\n}\n"

var (
	parseDef = types.NewDefinitionSymbol("proj", "M:main.parseConfig", "Method", "parseConfig")
	mainDef  = types.NewDefinitionSymbol("proj", "M:main.main", "Method", "main")
)

func at(substr string) int32 {
	return int32(strings.Index(sampleContent, substr))
}

func sampleFile(path string) mergeindex.SourceFile {
	parseAt := at("parseConfig")
	mainAt := at("main()")
	call1 := at("\tparseConfig") + 1
	call2 := int32(strings.LastIndex(sampleContent, "parseConfig"))

	return mergeindex.SourceFile{
		ProjectID: "Proj",
		Path:      path,
		Language:  "go",
		Content:   sampleContent,
		Classifications: []types.ClassificationSpan{
			{Span: types.Span{Start: 0, Length: 7}, Classification: "keyword"},
			{Span: types.Span{Start: 14, Length: 4}, Classification: "keyword"},
			{Span: types.Span{Start: parseAt, Length: 11}, Classification: "function"},
		},
		Definitions: []types.DefinitionSpan{
			{Span: types.Span{Start: parseAt, Length: 11}, Definition: parseDef},
			{Span: types.Span{Start: mainAt, Length: 4}, Definition: mainDef},
		},
		References: []types.ReferenceSpan{
			{Span: types.Span{Start: parseAt, Length: 11}, Reference: parseDef.AsReference(types.ReferenceKindDefinition)},
			{Span: types.Span{Start: mainAt, Length: 4}, Reference: mainDef.AsReference(types.ReferenceKindDefinition)},
			{Span: types.Span{Start: call1, Length: 11}, Reference: parseDef.AsReference(types.ReferenceKindReference)},
			{Span: types.Span{Start: call2, Length: 11}, Reference: parseDef.AsReference(types.ReferenceKindReference)},
		},
		Properties: map[string]string{"package": "main"},
	}
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Project.Root = t.TempDir()
	cfg.Store.Backend = backend
	cfg.Store.Path = filepath.Join(cfg.Project.Root, "spans.db")
	cfg.Upload.Concurrency = 4
	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func openSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := OpenSession(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var backends = []string{config.BackendMemory, config.BackendSQLite}

func TestUploadAndRead(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			s := openSession(t, testConfig(t, backend))

			report, err := s.Uploader().Upload(ctx, []mergeindex.SourceFile{sampleFile("cmd/app/main.go")})
			require.NoError(t, err)
			assert.Equal(t, 1, report.Packed)
			require.Len(t, report.Results, 1)
			assert.Equal(t, idcodec.MergeID("Proj", "cmd/app/main.go"), report.Results[0].MergeID)

			r := s.Reader()
			file, err := r.GetFile(ctx, "proj", "cmd/app/main.go")
			require.NoError(t, err)
			assert.Equal(t, sampleContent, file.Content)
			assert.Equal(t, "go", file.Language)
			require.Len(t, file.Definitions, 2)
			assert.Equal(t, parseDef.ID, file.Definitions[0].Definition.ID)
			assert.Equal(t, "main", file.Properties["package"])

			refs, err := r.FindReferences(ctx, "Proj", "cmd/app/main.go", int(at("\tparseConfig")), 3)
			require.NoError(t, err)
			require.Len(t, refs, 1)
			assert.Equal(t, types.ReferenceKindReference, refs[0].Reference.ReferenceKind)
			assert.Equal(t, parseDef.ID, refs[0].Reference.ID)

			classes, err := r.FindClassifications(ctx, "Proj", "cmd/app/main.go", 0, 7)
			require.NoError(t, err)
			require.Len(t, classes, 1)
			assert.Equal(t, "keyword", classes[0].Classification)

			result, err := r.SearchDefinitions(ctx, "parse", symbolsearch.Query{})
			require.NoError(t, err)
			require.Len(t, result.Definitions, 1)
			assert.Equal(t, "parseConfig", result.Definitions[0].Definition.ShortName)
			assert.Contains(t, result.Definitions[0].Terms, "config")

			defs, err := r.LookupDefinition(ctx, "", mainDef.ID)
			require.NoError(t, err)
			require.Len(t, defs, 1)
			assert.Equal(t, at("main()"), defs[0].Span.Start)

			groups, err := r.ReferencesTo(ctx, "Proj", parseDef.ID)
			require.NoError(t, err)
			total := 0
			for _, g := range groups {
				total += g.Count
			}
			assert.Equal(t, 3, total)
		})
	}
}

func TestSearchSuggestsOnMiss(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, testConfig(t, config.BackendMemory))
	_, err := s.Uploader().Upload(ctx, []mergeindex.SourceFile{sampleFile("main.go")})
	require.NoError(t, err)

	result, err := s.Reader().SearchDefinitions(ctx, "parsConfig", symbolsearch.Query{})
	require.NoError(t, err)
	assert.Empty(t, result.Definitions)
	require.NotEmpty(t, result.Suggestions)
	assert.Equal(t, "parseConfig", result.Suggestions[0].Name)
}

func TestUploadIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.Exclude = []string{"**/gen/**"}
	s := openSession(t, cfg)

	unordered := sampleFile("bad/unordered.go")
	unordered.References[0], unordered.References[3] = unordered.References[3], unordered.References[0]

	noPath := sampleFile("")

	files := []mergeindex.SourceFile{
		sampleFile("good/main.go"),
		unordered,
		noPath,
		sampleFile("src/gen/main.go"),
	}
	report, err := s.Uploader().Upload(ctx, files)
	require.Error(t, err)

	assert.Equal(t, 1, report.Packed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, SkipExcluded, report.Results[3].Skipped)

	var multi *spanerrors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 2)
	assert.True(t, errors.Is(err, spanerrors.ErrOrdering))

	var fileErr *spanerrors.FileError
	require.True(t, errors.As(report.Results[1].Err, &fileErr))
	assert.Equal(t, "bad/unordered.go", fileErr.Path)

	_, err = s.Reader().GetFile(ctx, "Proj", "good/main.go")
	require.NoError(t, err)
	_, err = s.Reader().GetFile(ctx, "Proj", "bad/unordered.go")
	assert.ErrorIs(t, err, ErrNotFound)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.FilesPacked)
	assert.Equal(t, int64(2), stats.FilesFailed)
	assert.Equal(t, int64(1), stats.FilesSkipped)
}

func TestUploadSplitsLargeContent(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			cfg.Spans.MaxContentSize = 16
			s := openSession(t, cfg)

			src := sampleFile("big.go")
			_, err := s.Uploader().Upload(ctx, []mergeindex.SourceFile{src})
			require.NoError(t, err)

			docs, err := s.Store().Query(ctx, store.Filter{Type: types.DocumentTypeFile, MergeID: idcodec.MergeID("Proj", "big.go")})
			require.NoError(t, err)
			assert.Len(t, docs, (len(sampleContent)+15)/16)

			file, err := s.Reader().GetFile(ctx, "Proj", "big.go")
			require.NoError(t, err)
			assert.Equal(t, sampleContent, file.Content)
			require.NotNil(t, file.References)
			assert.Equal(t, 4, file.References.Len())
		})
	}
}

func TestReuploadReplacesDerivedRows(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, testConfig(t, config.BackendMemory))
	up := s.Uploader()

	_, err := up.UploadOne(ctx, sampleFile("main.go"))
	require.NoError(t, err)

	second := sampleFile("main.go")
	second.Properties = map[string]string{"owner": "platform"}
	second.Definitions = second.Definitions[:1]
	_, err = up.UploadOne(ctx, second)
	require.NoError(t, err)

	mergeID := idcodec.MergeID("Proj", "main.go")
	props, err := s.Store().Query(ctx, store.Filter{Type: types.DocumentTypeProperty, MergeID: mergeID})
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Contains(t, string(props[0].Body), "platform")

	defs, err := s.Store().Query(ctx, store.Filter{Type: types.DocumentTypeDefinition, MergeID: mergeID})
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	// the registry keeps the first definition and counts the repeat
	entry, ok := s.Registry().Lookup(parseDef.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.Duplicates())
	assert.Equal(t, int64(4), entry.References())
	assert.Equal(t, 2, s.Registry().Len())
}

func TestRegistryCountsCrossFileReferences(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, testConfig(t, config.BackendMemory))
	up := s.Uploader()

	const callerContent = "package main\n\nfunc run() { parseConfig() }\n"
	caller := mergeindex.SourceFile{
		ProjectID: "Proj",
		Path:      "run.go",
		Language:  "go",
		Content:   callerContent,
		References: []types.ReferenceSpan{{
			Span:      types.Span{Start: int32(strings.Index(callerContent, "parseConfig")), Length: 11},
			Reference: parseDef.AsReference(types.ReferenceKindReference),
		}},
	}
	_, err := up.UploadOne(ctx, caller)
	require.NoError(t, err)

	// referenced but not yet defined
	_, ok := s.Registry().Lookup(parseDef.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Registry().Len())

	_, err = up.UploadOne(ctx, sampleFile("main.go"))
	require.NoError(t, err)

	entry, ok := s.Registry().Lookup(parseDef.ID)
	require.True(t, ok)
	assert.Equal(t, parseDef.DisplayName, entry.Definition.DisplayName)
	assert.Equal(t, int64(3), entry.References())
	assert.Equal(t, int64(0), entry.Duplicates())

	entry, ok = s.Registry().Lookup(mainDef.ID)
	require.True(t, ok)
	assert.Equal(t, int64(0), entry.References())
}

func TestCorruptRowIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, testConfig(t, config.BackendMemory))
	_, err := s.Uploader().UploadOne(ctx, sampleFile("ok.go"))
	require.NoError(t, err)

	mergeID := idcodec.MergeID("Proj", "broken.go")
	body := `{"id":"x","mergeId":"` + mergeID + `","part":0,"partCount":1,"projectId":"Proj","path":"broken.go",` +
		`"classifications":{"count":3,"sharedValues":[],"segments":[]}}`
	require.NoError(t, s.Store().Upsert(ctx, []store.Document{{
		Type: types.DocumentTypeFile, ID: "x", MergeID: mergeID, ProjectID: "Proj", Path: "broken.go", Body: []byte(body),
	}}))

	_, err = s.Reader().GetFile(ctx, "Proj", "broken.go")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, spanerrors.ErrDecode)

	_, err = s.Reader().GetFile(ctx, "Proj", "ok.go")
	assert.NoError(t, err)
}

func TestExpandOnRead(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.Spans.ExpandOnRead = true
	s := openSession(t, cfg)
	_, err := s.Uploader().UploadOne(ctx, sampleFile("main.go"))
	require.NoError(t, err)

	file, err := s.Reader().GetFile(ctx, "Proj", "main.go")
	require.NoError(t, err)
	assert.False(t, file.References.IsOptimized())
	assert.False(t, file.Classifications.IsOptimized())
}

func TestDefaultProjectID(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.Project.ID = "fallback"
	s := openSession(t, cfg)

	src := sampleFile("main.go")
	src.ProjectID = ""
	result, err := s.Uploader().UploadOne(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.ProjectID)

	_, err = s.Reader().GetFile(ctx, "fallback", "main.go")
	assert.NoError(t, err)
}

func TestUploadNormalizesPaths(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	s := openSession(t, cfg)

	abs := filepath.Join(cfg.Project.Root, "src", "app", "main.go")
	result, err := s.Uploader().UploadOne(ctx, sampleFile(abs))
	require.NoError(t, err)
	assert.Equal(t, "src/app/main.go", result.Path)
	assert.Equal(t, idcodec.MergeID("Proj", "src/app/main.go"), result.MergeID)

	_, err = s.Reader().GetFile(ctx, "Proj", `src\app\main.go`)
	require.NoError(t, err)
	_, err = s.Reader().GetFile(ctx, "Proj", abs)
	require.NoError(t, err)
}

func TestSessionClose(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	s, err := OpenSession(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Uploader().Upload(context.Background(), []mergeindex.SourceFile{sampleFile("main.go")})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestUploadCanceled(t *testing.T) {
	s := openSession(t, testConfig(t, config.BackendMemory))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Uploader().Upload(ctx, []mergeindex.SourceFile{sampleFile("a.go"), sampleFile("b.go")})
	assert.ErrorIs(t, err, context.Canceled)
}
