package mergeindex

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/spanlist"
	"github.com/standardbeagle/spanidx/internal/types"
)

func definition(start int32, rawID, name string) types.DefinitionSpan {
	return types.DefinitionSpan{
		Span:       types.Span{Start: start, Length: int32(len(name))},
		Definition: types.NewDefinitionSymbol("proj", rawID, "Method", name),
	}
}

func sampleFile() SourceFile {
	content := "package main\n\nfunc parseConfig() {}\n\nfunc main() {\n\tparseConfig()\n\tparseConfig()\n}\n"
	parse := types.NewDefinitionSymbol("proj", "M:main.parseConfig", "Method", "parseConfig")
	mainDef := types.NewDefinitionSymbol("proj", "M:main.main", "Method", "main")
	parseAt := int32(strings.Index(content, "parseConfig"))
	mainAt := int32(strings.Index(content, "main()"))
	call1 := int32(strings.Index(content, "\tparseConfig") + 1)
	call2 := int32(strings.LastIndex(content, "parseConfig"))

	return SourceFile{
		ProjectID: "Proj",
		Path:      "cmd/app/main.go",
		Language:  "go",
		Content:   content,
		Classifications: []types.ClassificationSpan{
			{Span: types.Span{Start: 0, Length: 7}, Classification: "keyword"},
			{Span: types.Span{Start: 14, Length: 4}, Classification: "keyword"},
			{Span: types.Span{Start: parseAt, Length: 11}, Classification: "function"},
		},
		Definitions: []types.DefinitionSpan{
			{Span: types.Span{Start: parseAt, Length: 11}, Definition: parse},
			{Span: types.Span{Start: mainAt, Length: 4}, Definition: mainDef},
		},
		References: []types.ReferenceSpan{
			{Span: types.Span{Start: parseAt, Length: 11}, Reference: parse.AsReference(types.ReferenceKindDefinition)},
			{Span: types.Span{Start: mainAt, Length: 4}, Reference: mainDef.AsReference(types.ReferenceKindDefinition)},
			{Span: types.Span{Start: call1, Length: 11}, Reference: parse.AsReference(types.ReferenceKindReference)},
			{Span: types.Span{Start: call2, Length: 11}, Reference: parse.AsReference(types.ReferenceKindReference)},
		},
		Properties: map[string]string{"package": "main"},
	}
}

func TestMergeScenario(t *testing.T) {
	classifications, err := spanlist.NewClassificationList([]types.ClassificationSpan{
		{Span: types.Span{Start: 0, Length: 3}, Classification: "keyword"},
	})
	require.NoError(t, err)

	a := definition(10, "T:A", "A")
	b := definition(40, "T:B", "B")
	rows := []FileRow{
		{MergeID: "m", Part: 0, ProjectID: "p", Path: "f.cs", Language: "csharp", Definitions: []types.DefinitionSpan{a}},
		{MergeID: "m", Part: 1, ProjectID: "p", Path: "f.cs", Classifications: classifications, Definitions: []types.DefinitionSpan{b}},
	}

	merged, err := Merge(rows)
	require.NoError(t, err)
	assert.Same(t, classifications, merged.Classifications)
	assert.Equal(t, []types.DefinitionSpan{a, b}, merged.Definitions)
	assert.Equal(t, "csharp", merged.Language)

	// row order does not matter, parts do
	merged, err = Merge([]FileRow{rows[1], rows[0]})
	require.NoError(t, err)
	assert.Equal(t, []types.DefinitionSpan{a, b}, merged.Definitions)
}

func TestMergeDefinitionsResorted(t *testing.T) {
	late := definition(90, "T:Late", "Late")
	early := definition(5, "T:Early", "Early")
	merged, err := Merge([]FileRow{
		{MergeID: "m", Part: 0, Definitions: []types.DefinitionSpan{late}},
		{MergeID: "m", Part: 1, Definitions: []types.DefinitionSpan{early, late}},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.DefinitionSpan{early, late}, merged.Definitions)
}

func TestMergeConflicts(t *testing.T) {
	tests := []struct {
		name  string
		rows  []FileRow
		field string
	}{
		{
			name: "language",
			rows: []FileRow{
				{MergeID: "m", Part: 0, Language: "go"},
				{MergeID: "m", Part: 1, Language: "csharp"},
			},
			field: "language",
		},
		{
			name: "path",
			rows: []FileRow{
				{MergeID: "m", Part: 0, Path: "a.go"},
				{MergeID: "m", Part: 1, Path: "b.go"},
			},
			field: "path",
		},
		{
			name: "merge id",
			rows: []FileRow{
				{MergeID: "m", Part: 0},
				{MergeID: "n", Part: 1},
			},
			field: "mergeId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.rows)
			require.Error(t, err)
			assert.ErrorIs(t, err, spanerrors.ErrMergeConflict)

			var conflict *spanerrors.MergeConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, tt.field, conflict.Field)
		})
	}

	// project ids compare case-insensitively and empty values never conflict
	merged, err := Merge([]FileRow{
		{MergeID: "m", Part: 0, ProjectID: "Proj"},
		{MergeID: "m", Part: 1, ProjectID: "proj", Language: "go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Proj", merged.ProjectID)
	assert.Equal(t, "go", merged.Language)

	_, err = Merge(nil)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestBuildSplitMergeRoundTrip(t *testing.T) {
	src := sampleFile()
	src.Content = strings.Repeat("héllo wörld\n", 50) + src.Content

	file, err := Build(src)
	require.NoError(t, err)
	assert.True(t, file.References.IsOptimized())

	rows := file.Split(64)
	require.Greater(t, len(rows), 1)
	for _, row := range rows {
		assert.LessOrEqual(t, len(row.Content), 64)
		assert.True(t, strings.ToValidUTF8(row.Content, "?") == row.Content, "part %d splits a rune", row.Part)
		assert.Equal(t, len(rows), row.PartCount)
		assert.Equal(t, file.MergeID, row.MergeID)
	}
	assert.Nil(t, rows[1].References)

	// rows travel through the store as JSON
	stored := make([]FileRow, len(rows))
	for i := range rows {
		blob, err := json.Marshal(rows[i])
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(blob, &stored[i]))
	}

	merged, err := Merge(stored)
	require.NoError(t, err)
	assert.Equal(t, src.Content, merged.Content)
	assert.Equal(t, src.Definitions, merged.Definitions)
	assert.Equal(t, src.Properties, merged.Properties)

	refs, err := merged.References.Spans()
	require.NoError(t, err)
	assert.Equal(t, src.References, refs)

	classes, err := merged.Classifications.Spans()
	require.NoError(t, err)
	assert.Equal(t, src.Classifications, classes)
}

func TestBuildRejectsUnorderedSpans(t *testing.T) {
	src := sampleFile()
	src.References[0], src.References[3] = src.References[3], src.References[0]

	_, err := Build(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, spanerrors.ErrOrdering)

	var fileErr *spanerrors.FileError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "cmd/app/main.go", fileErr.Path)

	src = sampleFile()
	src.Definitions[0], src.Definitions[1] = src.Definitions[1], src.Definitions[0]
	_, err = Build(src)
	assert.ErrorIs(t, err, spanerrors.ErrOrdering)

	_, err = Build(SourceFile{Path: "x.go"})
	assert.Error(t, err)
}

func TestDerive(t *testing.T) {
	src := sampleFile()
	hidden := types.NewDefinitionSymbol("proj", "M:main.init", "Method", "init")
	hidden.ExcludeFromSearch = true
	src.Definitions = append(src.Definitions, types.DefinitionSpan{Span: types.Span{Start: 500, Length: 4}, Definition: hidden})

	derived, err := Derive(src, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, derived.Definitions, 2)
	assert.Equal(t, "parseConfig", derived.Definitions[0].Definition.ShortName)
	assert.Contains(t, derived.Definitions[0].Terms, "config")
	assert.Contains(t, derived.Definitions[0].Terms, "parseconfig")
	assert.Equal(t, []string{"proj", "main.go", ".go", "main"}, derived.Definitions[0].Tags)

	// parseConfig definition, parseConfig references, main definition
	require.Len(t, derived.References, 3)
	var calls *ReferenceRow
	for i := range derived.References {
		if derived.References[i].Reference.ReferenceKind == types.ReferenceKindReference {
			calls = &derived.References[i]
		}
	}
	require.NotNil(t, calls)
	assert.Equal(t, 2, calls.Count)
	require.NotNil(t, calls.Lines)
	assert.Nil(t, calls.Ranges)

	lines, err := calls.Lines.Spans()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "\tparseConfig()", lines[0].LineText)
	assert.EqualValues(t, 1, lines[0].LineOffset)

	spans, err := calls.Spans()
	require.NoError(t, err)
	assert.Equal(t, []types.Span{src.References[2].Span, src.References[3].Span}, spans)

	require.Len(t, derived.Properties, 1)
	assert.Equal(t, "package", derived.Properties[0].Name)
	assert.Equal(t, "main", derived.Properties[0].Value)
}

func TestDeriveLargeGroupsKeepRanges(t *testing.T) {
	sym := types.NewDefinitionSymbol("proj", "T:Widget", "Class", "Widget").AsReference(types.ReferenceKindReference)
	src := SourceFile{ProjectID: "proj", Path: "w.go", Content: strings.Repeat("Widget\n", 20)}
	for i := 0; i < 20; i++ {
		src.References = append(src.References, types.ReferenceSpan{
			Span:      types.Span{Start: int32(i * 7), Length: 6},
			Reference: sym,
		})
	}

	derived, err := Derive(src, Options{LineSpanThreshold: 10})
	require.NoError(t, err)
	require.Len(t, derived.References, 1)

	row := derived.References[0]
	assert.Nil(t, row.Lines)
	require.NotNil(t, row.Ranges)
	assert.Equal(t, 20, row.Count)

	blob, err := json.Marshal(row)
	require.NoError(t, err)
	var restored ReferenceRow
	require.NoError(t, json.Unmarshal(blob, &restored))
	spans, err := restored.Spans()
	require.NoError(t, err)
	assert.Len(t, spans, 20)
	assert.Equal(t, types.Span{Start: 133, Length: 6}, spans[19])
}

func TestFileTags(t *testing.T) {
	assert.Equal(t, []string{"myproj", "Program.cs", ".cs", "Program"}, FileTags("MyProj", `src\Program.cs`))
	assert.Equal(t, []string{"p", "Makefile"}, FileTags("p", "build/Makefile"))
}

func TestSplitName(t *testing.T) {
	tests := map[string][]string{
		"parseConfig":      {"parse", "config"},
		"HTTPServer":       {"http", "server"},
		"snake_case_name":  {"snake", "case", "name"},
		"getX2Value":       {"get", "x", "2", "value"},
		"System.String":    {"system", "string"},
		"":                 nil,
	}
	for input, expected := range tests {
		assert.Equal(t, expected, SplitName(input), input)
	}

	terms := Terms("RunningTasks")
	assert.Equal(t, []string{"runningtasks", "running", "run", "tasks", "task"}, terms)
	assert.Nil(t, Terms(""))
}

func TestLineIndex(t *testing.T) {
	li := NewLineIndex("one\r\ntwo\n\nfour")
	assert.Equal(t, 4, li.LineCount())
	assert.Equal(t, 0, li.LineOf(0))
	assert.Equal(t, 0, li.LineOf(4))
	assert.Equal(t, 1, li.LineOf(5))
	assert.Equal(t, 3, li.LineOf(100))
	assert.Equal(t, "one", li.LineText(0))
	assert.Equal(t, "", li.LineText(2))
	assert.Equal(t, "four", li.LineText(3))

	span := li.LineSpan(types.Span{Start: 11, Length: 2})
	assert.EqualValues(t, 3, span.LineNumber)
	assert.EqualValues(t, 1, span.LineOffset)
	assert.EqualValues(t, 10, span.LineStart)
}

func TestDefinitionRegistry(t *testing.T) {
	registry := NewDefinitionRegistry()
	var wg sync.WaitGroup
	var canonical sync.Map
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			def := types.NewDefinitionSymbol("proj", "T:Shared", "Class", "Shared")
			def.Comment = string(rune('a' + w))
			entry, won := registry.Register(def)
			if won {
				canonical.Store(w, entry)
			}
		}(w)
	}
	wg.Wait()

	winners := 0
	canonical.Range(func(_, _ any) bool { winners++; return true })
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, registry.Len())

	entry, ok := registry.Lookup("Shared:T")
	require.True(t, ok)
	assert.EqualValues(t, 15, entry.Duplicates())
	assert.Zero(t, entry.References())

	_, ok = registry.Lookup("Missing:T")
	assert.False(t, ok)
}

func TestDefinitionRegistryReferences(t *testing.T) {
	registry := NewDefinitionRegistry()
	def := types.NewDefinitionSymbol("proj", "M:util.Format", "Method", "Format")
	call := types.ReferenceSpan{Span: types.Span{Start: 4, Length: 6}, Reference: def.AsReference(types.ReferenceKindReference)}
	site := types.ReferenceSpan{Span: types.Span{Start: 0, Length: 6}, Reference: def.AsReference(types.ReferenceKindDefinition)}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.AddReferences([]types.ReferenceSpan{call, site, call})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.Register(def)
	}()
	wg.Wait()

	entry, ok := registry.Lookup(def.ID)
	require.True(t, ok)
	assert.Equal(t, def, entry.Definition)
	assert.EqualValues(t, 16, entry.References())
	assert.Equal(t, 1, registry.Len())

	seen := 0
	registry.AddReferences([]types.ReferenceSpan{{Reference: types.ReferenceSymbol{ID: "Other:T", ReferenceKind: types.ReferenceKindRead}}})
	registry.Range(func(*RegisteredDefinition) bool { seen++; return true })
	assert.Equal(t, 1, seen)
}
