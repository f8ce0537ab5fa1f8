/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/acronis/go-crptapi/crpt"
	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/service"
)

// Default names of the subdirectories of the inbox.
const (
	DefaultDoneDirName   = "done"
	DefaultFailedDirName = "failed"
)

// ErrorFileExt is the extension of the file with the error text written next to a failed document.
const ErrorFileExt = ".error"

// DirWorkerOpts represents options for DirWorker.
type DirWorkerOpts struct {
	// DoneDir and FailedDir default to subdirectories of the inbox.
	DoneDir   string
	FailedDir string
	Logger    log.FieldLogger
}

// DirWorker submits documents found in the inbox directory.
// Submitted files are moved into DoneDir, rejected or unreadable ones into FailedDir
// together with a file describing the error. Files of canceled submissions stay in the inbox.
type DirWorker struct {
	inbox     string
	submitter *Submitter
	opts      DirWorkerOpts

	mu         sync.Mutex
	lastReport Report
}

var _ service.Worker = (*DirWorker)(nil)

// NewDirWorker creates a new DirWorker.
func NewDirWorker(inbox string, submitter *Submitter, opts DirWorkerOpts) *DirWorker {
	if opts.DoneDir == "" {
		opts.DoneDir = filepath.Join(inbox, DefaultDoneDirName)
	}
	if opts.FailedDir == "" {
		opts.FailedDir = filepath.Join(inbox, DefaultFailedDirName)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &DirWorker{inbox: inbox, submitter: submitter, opts: opts}
}

// Run scans the inbox once and submits all documents found there.
func (w *DirWorker) Run(ctx context.Context) error {
	for _, dir := range []string{w.opts.DoneDir, w.opts.FailedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	paths, err := w.listDocuments()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		w.opts.Logger.Debug("inbox is empty", log.String("inbox", w.inbox))
		w.setLastReport(Report{Errors: map[string]error{}})
		return nil
	}

	jobs := make([]*Job, 0, len(paths))
	var loadFailed int
	loadErrors := make(map[string]error)
	for _, path := range paths {
		job, loadErr := LoadJob(path)
		if loadErr != nil {
			name := strings.TrimSuffix(filepath.Base(path), DocumentFileExt)
			w.opts.Logger.Error("failed to load document", log.String("file", path), log.Error(loadErr))
			w.moveToFailed(&Job{Name: name, DocumentPath: path}, loadErr)
			loadFailed++
			loadErrors[name] = loadErr
			continue
		}
		jobs = append(jobs, job)
	}

	report := w.submitter.SubmitAllWithCallback(ctx, jobs, func(job *Job, _ *crpt.Result, err error) {
		switch {
		case err == nil:
			w.moveFiles(job, w.opts.DoneDir)
		case IsCanceled(err):
		default:
			w.moveToFailed(job, err)
		}
	})
	report.Failed += loadFailed
	for name, loadErr := range loadErrors {
		report.Errors[name] = loadErr
	}
	w.setLastReport(report)
	return nil
}

// LastReport returns the report of the last Run.
func (w *DirWorker) LastReport() Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReport
}

func (w *DirWorker) setLastReport(r Report) {
	w.mu.Lock()
	w.lastReport = r
	w.mu.Unlock()
}

func (w *DirWorker) listDocuments() ([]string, error) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return nil, fmt.Errorf("read inbox directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != DocumentFileExt {
			continue
		}
		paths = append(paths, filepath.Join(w.inbox, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (w *DirWorker) moveToFailed(job *Job, jobErr error) {
	w.moveFiles(job, w.opts.FailedDir)
	errPath := filepath.Join(w.opts.FailedDir, job.Name+ErrorFileExt)
	if err := os.WriteFile(errPath, []byte(jobErr.Error()+"\n"), 0o644); err != nil { //nolint:gosec
		w.opts.Logger.Error("failed to write error file", log.String("file", errPath), log.Error(err))
	}
}

func (w *DirWorker) moveFiles(job *Job, dir string) {
	for _, src := range job.Files() {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.Rename(src, dst); err != nil {
			w.opts.Logger.Error("failed to move file", log.String("from", src), log.String("to", dst), log.Error(err))
		}
	}
}
