package indexing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/spanidx/internal/debug"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/idcodec"
	"github.com/standardbeagle/spanidx/internal/mergeindex"
	"github.com/standardbeagle/spanidx/internal/store"
	"github.com/standardbeagle/spanidx/internal/types"
	"github.com/standardbeagle/spanidx/pkg/pathutil"
)

// FileResult is the outcome of packing one file.
type FileResult struct {
	ProjectID string     `json:"projectId"`
	Path      string     `json:"path"`
	MergeID   string     `json:"mergeId,omitempty"`
	Rows      int        `json:"rows"`
	Skipped   SkipReason `json:"skipped,omitempty"`
	Err       error      `json:"-"`
}

// UploadReport summarizes an upload. Results are in input order.
type UploadReport struct {
	Results []FileResult `json:"results"`
	Packed  int          `json:"packed"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
}

// Uploader packs source files and writes their rows. A failing file never
// affects the others.
type Uploader struct {
	session *Session
}

// Upload packs files concurrently, bounded by the configured concurrency.
// The returned error is a MultiError of the failed files, or the context
// error when ctx ends first.
func (u *Uploader) Upload(ctx context.Context, files []mergeindex.SourceFile) (*UploadReport, error) {
	if err := u.session.checkOpen(); err != nil {
		return nil, err
	}

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, u.session.cfg.Upload.Concurrency))

	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = u.packFile(gctx, files[i])
			return nil
		})
	}
	waitErr := g.Wait()

	report := &UploadReport{Results: results}
	var errs []error
	for _, r := range results {
		switch {
		case r.Err != nil:
			report.Failed++
			errs = append(errs, r.Err)
		case r.Skipped != SkipNone:
			report.Skipped++
		case r.MergeID != "":
			report.Packed++
		}
	}
	debug.LogIndexing("upload: %d packed, %d skipped, %d failed of %d\n",
		report.Packed, report.Skipped, report.Failed, len(files))

	if waitErr != nil {
		return report, waitErr
	}
	return report, spanerrors.NewMultiError(errs).ErrorOrNil()
}

// UploadOne packs a single file.
func (u *Uploader) UploadOne(ctx context.Context, src mergeindex.SourceFile) (FileResult, error) {
	if err := u.session.checkOpen(); err != nil {
		return FileResult{}, err
	}
	r := u.packFile(ctx, src)
	return r, r.Err
}

func (u *Uploader) packFile(ctx context.Context, src mergeindex.SourceFile) FileResult {
	s := u.session
	if src.ProjectID == "" {
		src.ProjectID = s.cfg.Project.ID
	}
	src.Path = pathutil.Normalize(src.Path, s.cfg.Project.Root)
	result := FileResult{ProjectID: src.ProjectID, Path: src.Path}

	if reason := s.filter.Check(src.Path, src.Content); reason != SkipNone {
		debug.LogIndexing("skip %s: %s\n", src.Path, reason)
		s.skipped.Add(1)
		result.Skipped = reason
		return result
	}

	docs, err := u.documents(src)
	if err != nil {
		debug.LogIndexing("pack %s/%s failed: %v\n", src.ProjectID, src.Path, err)
		s.failed.Add(1)
		result.Err = err
		return result
	}
	result.MergeID = idcodec.MergeID(src.ProjectID, src.Path)

	// Derived rows are regenerated on every write, so the old set goes first.
	if _, err := s.store.DeleteByMergeID(ctx, result.MergeID); err != nil {
		s.failed.Add(1)
		result.Err = spanerrors.NewFileError("delete", src.ProjectID, src.Path, err)
		return result
	}
	if err := s.store.Upsert(ctx, docs); err != nil {
		s.failed.Add(1)
		result.Err = spanerrors.NewFileError("upsert", src.ProjectID, src.Path, err)
		return result
	}

	for _, def := range src.Definitions {
		s.registry.Register(def.Definition)
	}
	s.registry.AddReferences(src.References)
	s.packed.Add(1)
	s.rows.Add(int64(len(docs)))
	result.Rows = len(docs)
	return result
}

// documents builds every store document of one file: its physical rows
// followed by the derived definition, reference and property rows.
func (u *Uploader) documents(src mergeindex.SourceFile) ([]store.Document, error) {
	opts := u.session.opts

	file, err := mergeindex.Build(src)
	if err != nil {
		return nil, err
	}
	derived, err := mergeindex.Derive(src, opts)
	if err != nil {
		return nil, spanerrors.NewFileError("derive", src.ProjectID, src.Path, err)
	}

	tags := file.Tags()
	rows := file.Split(opts.MaxContentSize)
	docs := make([]store.Document, 0, len(rows)+len(derived.Definitions)+len(derived.References)+len(derived.Properties))

	add := func(docType, id string, body any) error {
		data, err := json.Marshal(body)
		if err != nil {
			return spanerrors.NewFileError("encode "+docType, src.ProjectID, src.Path, err)
		}
		docs = append(docs, store.Document{
			Type:      docType,
			ID:        id,
			MergeID:   file.MergeID,
			ProjectID: file.ProjectID,
			Path:      file.Path,
			Tags:      tags,
			Body:      data,
		})
		return nil
	}

	for i := range rows {
		if err := add(types.DocumentTypeFile, rows[i].ID, &rows[i]); err != nil {
			return nil, err
		}
	}
	for i := range derived.Definitions {
		row := &derived.Definitions[i]
		// One symbol may be defined in several files; the document id is per file.
		id := idcodec.RowID(file.MergeID, types.DocumentTypeDefinition, row.ID+"@"+strconv.Itoa(int(row.Span.Start)))
		if err := add(types.DocumentTypeDefinition, id, row); err != nil {
			return nil, err
		}
	}
	for i := range derived.References {
		if err := add(types.DocumentTypeReference, derived.References[i].ID, &derived.References[i]); err != nil {
			return nil, err
		}
	}
	for i := range derived.Properties {
		if err := add(types.DocumentTypeProperty, derived.Properties[i].ID, &derived.Properties[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Describe renders a result for the CLI.
func (r FileResult) Describe() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("FAIL %s/%s: %v", r.ProjectID, r.Path, r.Err)
	case r.Skipped != SkipNone:
		return fmt.Sprintf("skip %s/%s (%s)", r.ProjectID, r.Path, r.Skipped)
	default:
		return fmt.Sprintf("ok   %s/%s %s (%d rows)", r.ProjectID, r.Path, r.MergeID, r.Rows)
	}
}
