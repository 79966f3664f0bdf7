package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/standardbeagle/spanidx/internal/indexing"
	"github.com/standardbeagle/spanidx/internal/mergeindex"

	"github.com/urfave/cli/v2"
)

// collectInputs expands arguments into analyzer JSON files. Directories
// are walked for *.json; "-" stands for stdin.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		if arg == "-" {
			inputs = append(inputs, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

func readInput(c *cli.Context, input string) (mergeindex.SourceFile, error) {
	if input == "-" {
		return indexing.ReadSourceFile(c.App.Reader)
	}
	f, err := os.Open(input)
	if err != nil {
		return mergeindex.SourceFile{}, err
	}
	defer f.Close()
	return indexing.ReadSourceFile(f)
}

func packCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: spanidx pack <file.json|dir|-> ...")
	}
	if c.Bool("watch") && slices.Contains(c.Args().Slice(), "-") {
		return errors.New("--watch cannot read from stdin")
	}
	inputs, err := collectInputs(c.Args().Slice())
	if err != nil {
		return err
	}

	var files []mergeindex.SourceFile
	var readErrs []string
	for _, input := range inputs {
		src, err := readInput(c, input)
		if err != nil {
			readErrs = append(readErrs, fmt.Sprintf("%s: %v", input, err))
			continue
		}
		files = append(files, src)
	}

	session, err := openSession(c)
	if err != nil {
		return err
	}
	defer session.Close()

	report, uploadErr := session.Uploader().Upload(c.Context, files)
	if report == nil {
		return uploadErr
	}

	if c.Bool("json") {
		out := struct {
			*indexing.UploadReport
			Errors      []string              `json:"errors,omitempty"`
			InputErrors []string              `json:"inputErrors,omitempty"`
			Session     indexing.SessionStats `json:"session"`
		}{UploadReport: report, InputErrors: readErrs, Session: session.Stats()}
		for _, r := range report.Results {
			if r.Err != nil {
				out.Errors = append(out.Errors, r.Describe())
			}
		}
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return err
		}
	} else {
		for _, msg := range readErrs {
			fmt.Fprintf(c.App.Writer, "FAIL %s\n", msg)
		}
		for _, r := range report.Results {
			if c.Bool("quiet") && r.Err == nil {
				continue
			}
			fmt.Fprintln(c.App.Writer, r.Describe())
		}
		fmt.Fprintf(c.App.Writer, "%d packed, %d skipped, %d failed\n",
			report.Packed, report.Skipped, report.Failed+len(readErrs))
	}

	var packErr error
	if failed := report.Failed + len(readErrs); failed > 0 {
		packErr = fmt.Errorf("%d file(s) failed", failed)
	} else {
		packErr = uploadErr
	}
	if !c.Bool("watch") {
		return packErr
	}
	if packErr != nil {
		fmt.Fprintf(c.App.ErrWriter, "%v; watching anyway\n", packErr)
	}
	return watchInputs(c, session)
}

// watchInputs re-packs inputs as they change until interrupted.
func watchInputs(c *cli.Context, session *indexing.Session) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := indexing.NewWatcher(session)
	w.OnResult(func(input string, r indexing.FileResult) {
		if c.Bool("quiet") && r.Err == nil {
			return
		}
		if r.Err != nil && r.MergeID == "" && r.ProjectID == "" {
			fmt.Fprintf(c.App.Writer, "FAIL %s: %v\n", input, r.Err)
			return
		}
		fmt.Fprintln(c.App.Writer, r.Describe())
	})
	fmt.Fprintf(c.App.ErrWriter, "watching %s (Ctrl-C to stop)\n", strings.Join(c.Args().Slice(), ", "))
	return w.Run(ctx, c.Args().Slice()...)
}
