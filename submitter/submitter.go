/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package submitter submits batches of documents concurrently through one shared crpt client.
package submitter

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/acronis/go-crptapi/admission"
	"github.com/acronis/go-crptapi/crpt"
	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/retry"
)

// DefaultConcurrency is used when Opts.Concurrency is not positive.
const DefaultConcurrency = 4

// DocumentCreator is implemented by *crpt.Client.
type DocumentCreator interface {
	CreateDocument(ctx context.Context, doc *crpt.Document, signature string) (*crpt.Result, error)
}

// Opts represents options for the Submitter.
type Opts struct {
	// Concurrency limits the number of simultaneous submissions.
	// The admission gate of the client still bounds the rate.
	Concurrency int

	Logger log.FieldLogger

	// RetryPolicy enables repeating submissions failed with temporary errors (see crpt.IsTemporary).
	// Every repeated submission waits for a new admission. Nil disables retries.
	RetryPolicy retry.Policy
}

// Report summarizes a SubmitAll call.
type Report struct {
	Succeeded int
	Failed    int
	// Canceled counts jobs not submitted because the context was done.
	Canceled int
	// Errors is keyed by the job name. Canceled jobs are included.
	Errors map[string]error
}

// Total returns the number of processed jobs.
func (r Report) Total() int {
	return r.Succeeded + r.Failed + r.Canceled
}

// Submitter runs submissions of many jobs against a single client.
type Submitter struct {
	client DocumentCreator
	opts   Opts
}

// New creates a new Submitter.
func New(client DocumentCreator, opts Opts) *Submitter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Submitter{client: client, opts: opts}
}

// Submit submits a single job, repeating it on temporary errors if the retry policy is set.
func (s *Submitter) Submit(ctx context.Context, job *Job) (*crpt.Result, error) {
	if s.opts.RetryPolicy == nil {
		return s.client.CreateDocument(ctx, job.Document, job.Signature)
	}
	logger := s.opts.Logger.With(log.String("job", job.Name))
	var result *crpt.Result
	err := retry.DoWithRetry(ctx, s.opts.RetryPolicy, crpt.IsTemporary,
		retry.NewLogNotify(logger, "document submission failed, will retry"),
		func(ctx context.Context) error {
			var createErr error
			result, createErr = s.client.CreateDocument(ctx, job.Document, job.Signature)
			return createErr
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DoneFunc is called for every job once its outcome is known. It may be called concurrently.
type DoneFunc func(job *Job, result *crpt.Result, err error)

// SubmitAll submits all jobs with at most Opts.Concurrency submissions in flight.
func (s *Submitter) SubmitAll(ctx context.Context, jobs []*Job) Report {
	return s.SubmitAllWithCallback(ctx, jobs, nil)
}

// SubmitAllWithCallback is like SubmitAll but calls onDone (if not nil) for every job.
func (s *Submitter) SubmitAllWithCallback(ctx context.Context, jobs []*Job, onDone DoneFunc) Report {
	report := Report{Errors: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			var result *crpt.Result
			err := ctx.Err()
			if err == nil {
				result, err = s.Submit(ctx, job)
			}
			mu.Lock()
			switch {
			case err == nil:
				report.Succeeded++
			case IsCanceled(err):
				report.Canceled++
				report.Errors[job.Name] = err
			default:
				report.Failed++
				report.Errors[job.Name] = err
			}
			mu.Unlock()
			if onDone != nil {
				onDone(job, result, err)
			}
			return nil
		})
	}
	_ = g.Wait() // Goroutines never return errors, outcomes are collected in the report.

	s.opts.Logger.Info("documents submission finished",
		log.Int("succeeded", report.Succeeded), log.Int("failed", report.Failed), log.Int("canceled", report.Canceled))
	return report
}

// IsCanceled reports whether the submission was not done because its context was done,
// either while waiting for admission or during the HTTP exchange.
func IsCanceled(err error) bool {
	var canceledErr *admission.CanceledError
	return errors.As(err, &canceledErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
