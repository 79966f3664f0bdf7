package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/spanidx/internal/mergeindex"
	"github.com/standardbeagle/spanidx/internal/spanlist"
	"github.com/standardbeagle/spanidx/internal/symbolsearch"
	"github.com/standardbeagle/spanidx/internal/types"

	"github.com/urfave/cli/v2"
)

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// ShowReport is the JSON output of the show command.
type ShowReport struct {
	Location        types.FileLocation         `json:"location"`
	MergeID         string                     `json:"mergeId"`
	Start           int                        `json:"start"`
	Length          int                        `json:"length"`
	Content         string                     `json:"content,omitempty"`
	Classifications []types.ClassificationSpan `json:"classifications"`
	References      []types.ReferenceSpan      `json:"references"`
	Definitions     []types.DefinitionSpan     `json:"definitions"`
}

func showCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: spanidx show <project> <path>")
	}
	projectID, path := c.Args().Get(0), c.Args().Get(1)

	session, err := openSession(c)
	if err != nil {
		return err
	}
	defer session.Close()

	file, err := session.Reader().GetFile(c.Context, projectID, path)
	if err != nil {
		return err
	}

	start, length := c.Int("start"), c.Int("length")
	if length < 0 {
		start, length = 0, len(file.Content)
	}
	report := ShowReport{
		Location: file.Location(),
		MergeID:  file.MergeID,
		Start:    start,
		Length:   length,
	}

	whole := start == 0 && length >= len(file.Content)
	if file.Classifications != nil {
		if report.Classifications, err = spansIn(file.Classifications.List, start, length, whole); err != nil {
			return err
		}
	}
	if file.References != nil {
		if report.References, err = spansIn(file.References.List, start, length, whole); err != nil {
			return err
		}
	}
	for _, def := range file.Definitions {
		if whole || def.Intersects(int32(start), int32(length)) {
			report.Definitions = append(report.Definitions, def)
		}
	}
	if c.Bool("content") && start >= 0 && start <= len(file.Content) {
		report.Content = file.Content[start:min(len(file.Content), start+length)]
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, report)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%s/%s (%s) language=%s %d bytes\n", file.ProjectID, file.Path, file.MergeID, file.Language, len(file.Content))
	fmt.Fprintf(w, "range [%d, %d)\n", start, start+length)
	fmt.Fprintf(w, "classifications: %d\n", len(report.Classifications))
	for _, s := range report.Classifications {
		fmt.Fprintf(w, "  [%d, %d) %s\n", s.Start, s.End(), s.Classification)
	}
	fmt.Fprintf(w, "references: %d\n", len(report.References))
	for _, s := range report.References {
		fmt.Fprintf(w, "  [%d, %d) %-12s %s\n", s.Start, s.End(), s.Reference.ReferenceKind, s.Reference.ID)
	}
	fmt.Fprintf(w, "definitions: %d\n", len(report.Definitions))
	for _, d := range report.Definitions {
		fmt.Fprintf(w, "  [%d, %d) %s %s\n", d.Start, d.End(), d.Definition.Kind, d.Definition.DisplayName)
	}
	if report.Content != "" {
		fmt.Fprintf(w, "---\n%s\n", report.Content)
	}
	return nil
}

// spansIn returns every span of l when whole is set, otherwise the spans
// intersecting [start, start+length).
func spansIn[T, S any, K comparable](l *spanlist.List[T, S, K], start, length int, whole bool) ([]T, error) {
	if whole {
		return l.Spans()
	}
	view, err := l.GetSpans(start, length)
	if err != nil {
		return nil, err
	}
	return view.Spans()
}

// StatsReport is the JSON output of the stats command.
type StatsReport struct {
	Location        types.FileLocation `json:"location"`
	MergeID         string             `json:"mergeId"`
	ContentBytes    int                `json:"contentBytes"`
	Definitions     int                `json:"definitions"`
	Classifications *spanlist.Stats    `json:"classifications,omitempty"`
	References      *spanlist.Stats    `json:"references,omitempty"`
}

func statsCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: spanidx stats <project> <path>")
	}

	session, err := openSession(c)
	if err != nil {
		return err
	}
	defer session.Close()

	file, err := session.Reader().GetFile(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	report := StatsReport{
		Location:     file.Location(),
		MergeID:      file.MergeID,
		ContentBytes: len(file.Content),
		Definitions:  len(file.Definitions),
	}
	if file.Classifications != nil {
		stats := file.Classifications.Stats()
		report.Classifications = &stats
	}
	if file.References != nil {
		stats := file.References.Stats()
		report.References = &stats
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, report)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%s/%s (%s)\n", file.ProjectID, file.Path, file.MergeID)
	fmt.Fprintf(w, "content: %d bytes, definitions: %d\n", report.ContentBytes, report.Definitions)
	printListStats(w, "classifications", report.Classifications)
	printListStats(w, "references", report.References)
	return nil
}

func printListStats(w io.Writer, name string, s *spanlist.Stats) {
	if s == nil {
		fmt.Fprintf(w, "%s: none\n", name)
		return
	}
	fmt.Fprintf(w, "%s: %d spans, %d segments (%d optimized, %d raw starts), %d shared values, %d encoded bytes\n",
		name, s.Count, s.Segments, s.OptimizedSegments, s.RawStartSegments, s.SharedValues, s.EncodedBytes)
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: spanidx search <prefix>")
	}

	session, err := openSession(c)
	if err != nil {
		return err
	}
	defer session.Close()

	result, err := session.Reader().SearchDefinitions(c.Context, c.Args().First(), symbolsearch.Query{
		ProjectID:     c.String("project"),
		IncludeHidden: c.Bool("hidden") || session.Config().Search.IncludeHidden,
		Limit:         c.Int("limit"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, result)
	}

	w := c.App.Writer
	for _, row := range result.Definitions {
		printDefinition(w, row)
	}
	if len(result.Definitions) == 0 {
		fmt.Fprintf(w, "no definitions match %q\n", c.Args().First())
		for _, s := range result.Suggestions {
			fmt.Fprintf(w, "  did you mean %s? (%.2f)\n", s.Name, s.Score)
		}
	}
	return nil
}

func printDefinition(w io.Writer, row mergeindex.DefinitionRow) {
	def := row.Definition
	name := def.DisplayName
	if def.ContainerQualifiedName != "" {
		name = def.ContainerQualifiedName + "." + name
	}
	fmt.Fprintf(w, "%s/%s:%d %s %s (%s)\n", row.ProjectID, row.Path, row.Span.Start, def.Kind, name, def.ID)
}

func refsCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: spanidx refs <symbol-id>")
	}
	id := types.SymbolID(c.Args().First())

	session, err := openSession(c)
	if err != nil {
		return err
	}
	defer session.Close()

	groups, err := session.Reader().ReferencesTo(c.Context, c.String("project"), id)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, groups)
	}

	w := c.App.Writer
	total := 0
	for i := range groups {
		g := &groups[i]
		total += g.Count
		spans, err := g.Spans()
		if err != nil {
			return fmt.Errorf("%s/%s: %w", g.ProjectID, g.Path, err)
		}
		fmt.Fprintf(w, "%s/%s %s x%d\n", g.ProjectID, g.Path, g.Reference.ReferenceKind, g.Count)
		if g.Lines != nil {
			lines, err := g.Lines.Spans()
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintf(w, "  %d: %s\n", l.LineNumber+1, l.LineText)
			}
			continue
		}
		for _, s := range spans {
			fmt.Fprintf(w, "  [%d, %d)\n", s.Start, s.End())
		}
	}
	fmt.Fprintf(w, "%d references in %d groups\n", total, len(groups))
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "configuration OK (root %s, backend %s, index %s)\n",
		cfg.Project.Root, cfg.Store.Backend, cfg.Store.Index)
	return nil
}
