/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/retry"
)

// DefaultMaxRetryAttempts is used when RetryableRoundTripperOpts.MaxRetryAttempts is zero.
const DefaultMaxRetryAttempts = DefaultRetriesMaxAttempts

// UnlimitedRetryAttempts should be used as RetryableRoundTripperOpts.MaxRetryAttempts value
// when retries should be stopped only by the backoff policy.
const UnlimitedRetryAttempts = -1

// RetryAttemptNumberHeader is an HTTP header name that contains the serial number of the retry attempt.
const RetryAttemptNumberHeader = "X-Retry-Attempt"

// CheckRetryFunc is called right after every attempt and determines if the next retry attempt is needed.
type CheckRetryFunc func(ctx context.Context, resp *http.Response, roundTripErr error, doneRetryAttempts int) (bool, error)

// RetryableRoundTripper wraps http.RoundTripper and resends requests failed with temporary errors.
// Every attempt passes through the whole delegate chain, so each one acquires its own admission.
type RetryableRoundTripper struct {
	// Delegate is the next RoundTripper in the chain.
	Delegate http.RoundTripper

	// Logger is used when LoggerProvider is nil or returns nil.
	Logger log.FieldLogger

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// MaxRetryAttempts limits the number of retries. The request may be sent MaxRetryAttempts + 1 times.
	// UnlimitedRetryAttempts leaves the decision to BackoffPolicy.
	MaxRetryAttempts int

	CheckRetry CheckRetryFunc

	// IgnoreRetryAfter disables using the Retry-After response header as the delay before the next attempt.
	IgnoreRetryAfter bool

	BackoffPolicy retry.Policy
}

// RetryableRoundTripperOpts represents options for RetryableRoundTripper.
type RetryableRoundTripperOpts struct {
	Logger           log.FieldLogger
	LoggerProvider   func(ctx context.Context) log.FieldLogger
	MaxRetryAttempts int
	CheckRetryFunc   CheckRetryFunc
	IgnoreRetryAfter bool
	BackoffPolicy    retry.Policy
}

// NewRetryableRoundTripper returns a new instance of RetryableRoundTripper with default options.
func NewRetryableRoundTripper(delegate http.RoundTripper) (*RetryableRoundTripper, error) {
	return NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{})
}

// NewRetryableRoundTripperWithOpts creates a new instance of RetryableRoundTripper with specified options.
func NewRetryableRoundTripperWithOpts(
	delegate http.RoundTripper, opts RetryableRoundTripperOpts,
) (*RetryableRoundTripper, error) {
	if opts.MaxRetryAttempts < 0 && opts.MaxRetryAttempts != UnlimitedRetryAttempts {
		return nil, fmt.Errorf("incorrect max retry attempts %d", opts.MaxRetryAttempts)
	}
	if opts.MaxRetryAttempts == 0 {
		opts.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.CheckRetryFunc == nil {
		opts.CheckRetryFunc = DefaultCheckRetry
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = DefaultBackoffPolicy
	}
	return &RetryableRoundTripper{
		Delegate:         delegate,
		Logger:           opts.Logger,
		LoggerProvider:   opts.LoggerProvider,
		MaxRetryAttempts: opts.MaxRetryAttempts,
		CheckRetry:       opts.CheckRetryFunc,
		IgnoreRetryAfter: opts.IgnoreRetryAfter,
		BackoffPolicy:    opts.BackoffPolicy,
	}, nil
}

// RoundTrip performs the request and retries it while CheckRetry allows.
// nolint: gocyclo
func (rt *RetryableRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rewindReqBody := func(*http.Request) error { return nil }
	if req.Body != nil {
		originalReqBody := req.Body
		defer func() {
			_ = originalReqBody.Close() // Per RoundTripper contract.
		}()
		var err error
		if rewindReqBody, err = makeRequestBodyRewindable(req); err != nil {
			return nil, &RetryableRoundTripperError{Inner: err}
		}
	}

	reqCtx := req.Context()
	logger := rt.logger(reqCtx).With(log.String("method", req.Method), log.String("url", req.URL.String()))
	getNextWaitTime := rt.makeNextWaitTimeProvider()
	reqCloned := false

	var waitTimer *time.Timer
	defer func() {
		if waitTimer != nil {
			waitTimer.Stop()
		}
	}()

	var resp *http.Response
	var roundTripErr error
	for attemptNum := 0; ; attemptNum++ {
		if attemptNum > 0 {
			if rewindErr := rewindReqBody(req); rewindErr != nil {
				logger.Error("failed to rewind request body between retry attempts",
					log.Int("requests_done", attemptNum), log.Error(rewindErr))
				return resp, roundTripErr
			}
			if resp != nil && roundTripErr == nil {
				drainResponseBody(resp, logger)
			}
			if !reqCloned {
				req, reqCloned = req.Clone(reqCtx), true // Per RoundTripper contract.
			}
			req.Header.Set(RetryAttemptNumberHeader, strconv.Itoa(attemptNum))
		}

		resp, roundTripErr = rt.Delegate.RoundTrip(req)

		needRetry, checkErr := rt.CheckRetry(reqCtx, resp, roundTripErr, attemptNum)
		if checkErr != nil {
			logger.Error("failed to check if retry is needed",
				log.Int("requests_done", attemptNum+1), log.Error(checkErr))
			return resp, roundTripErr
		}
		if !needRetry {
			return resp, roundTripErr
		}

		if rt.MaxRetryAttempts > 0 && attemptNum >= rt.MaxRetryAttempts {
			logger.Warn("max retry attempts exceeded",
				log.Int("max_retry_attempts", rt.MaxRetryAttempts), log.Int("requests_done", attemptNum+1))
			return resp, roundTripErr
		}
		waitTime, stop := getNextWaitTime(resp)
		if stop {
			return resp, roundTripErr
		}

		logger.Debug("retrying request", log.Int("attempt", attemptNum+1), log.Duration("wait", waitTime))
		if waitTimer == nil {
			waitTimer = time.NewTimer(waitTime)
		} else {
			waitTimer.Reset(waitTime)
		}
		select {
		case <-reqCtx.Done():
			logger.Warn("context is done while waiting for the next retry attempt",
				log.Int("requests_done", attemptNum+1), log.Error(reqCtx.Err()))
			return resp, roundTripErr
		case <-waitTimer.C:
		}
	}
}

type waitTimeProvider func(resp *http.Response) (waitTime time.Duration, stop bool)

func (rt *RetryableRoundTripper) makeNextWaitTimeProvider() waitTimeProvider {
	bf := rt.BackoffPolicy.NewBackOff()
	return func(resp *http.Response) (time.Duration, bool) {
		if resp != nil && !rt.IgnoreRetryAfter {
			if retryAfter, ok := parseRetryAfterFromResponse(resp); ok {
				return retryAfter, false
			}
		}
		waitTime := bf.NextBackOff()
		return waitTime, waitTime == backoff.Stop
	}
}

func (rt *RetryableRoundTripper) logger(ctx context.Context) log.FieldLogger {
	if rt.LoggerProvider != nil {
		if l := rt.LoggerProvider(ctx); l != nil {
			return l
		}
	}
	return rt.Logger
}

// RetryableRoundTripperError is returned by RetryableRoundTripper
// when the request cannot be prepared for retries.
type RetryableRoundTripperError struct {
	Inner error
}

func (e *RetryableRoundTripperError) Error() string {
	return fmt.Sprintf("retryable round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RetryableRoundTripperError) Unwrap() error {
	return e.Inner
}

// DefaultCheckRetry retries temporary transport errors and 429/5xx responses.
// Requests with unsafe methods (POST, PATCH) are retried on 5xx only when the server
// could not have processed them (503) or when the context carries the idempotent hint.
// Admission wait failures are never retried.
func DefaultCheckRetry(
	ctx context.Context, resp *http.Response, roundTripErr error, _ int,
) (needRetry bool, err error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if roundTripErr != nil {
		var waitErr *AdmissionWaitError
		if errors.As(roundTripErr, &waitErr) {
			return false, nil
		}
		return CheckErrorIsTemporary(roundTripErr), nil
	}
	if resp == nil {
		return false, fmt.Errorf("both response and round trip error are nil")
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable:
		return true, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return isIdempotentRequest(ctx, resp.Request), nil
	}
	return false, nil
}

func isIdempotentRequest(ctx context.Context, req *http.Request) bool {
	if GetIdempotentHintFromContext(ctx) {
		return true
	}
	if req == nil {
		return false
	}
	switch req.Method {
	case http.MethodPost, http.MethodPatch:
		return false
	}
	return true
}

// DefaultBackoffPolicy is used when RetryableRoundTripperOpts.BackoffPolicy is nil.
var DefaultBackoffPolicy = retry.PolicyFunc(func() backoff.BackOff {
	bf := backoff.NewExponentialBackOff()
	bf.InitialInterval = DefaultExponentialBackoffInitialInterval
	bf.Multiplier = DefaultExponentialBackoffMultiplier
	bf.Reset()
	return bf
})

// CheckErrorIsTemporary checks either error is temporary or not.
func CheckErrorIsTemporary(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var terr interface{ Temporary() bool }
	return errors.As(err, &terr) && terr.Temporary()
}

func parseRetryAfterFromResponse(resp *http.Response) (time.Duration, bool) {
	retryAfterVal := resp.Header.Get("Retry-After")
	if retryAfterVal == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(retryAfterVal); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	parsedTime, err := http.ParseTime(retryAfterVal)
	if err != nil {
		return 0, false
	}
	if d := time.Until(parsedTime); d > 0 {
		return d, true
	}
	return 0, true
}
