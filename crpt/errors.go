/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package crpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrAdmitterRequired is returned by NewClient when no admitter is passed.
var ErrAdmitterRequired = errors.New("admitter is required")

// EncodeError is returned when the document cannot be serialized. No admission is consumed in this case.
type EncodeError struct {
	Inner error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode document: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *EncodeError) Unwrap() error {
	return e.Inner
}

// SubmissionError is returned when the service answers with a non-2xx status.
type SubmissionError struct {
	StatusCode int
	Body       []byte
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("create document: unexpected status code %d", e.StatusCode)
}

// TransportError is returned when no response was received.
type TransportError struct {
	Inner error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send document: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *TransportError) Unwrap() error {
	return e.Inner
}

// IsTemporary reports whether a repeated submission may succeed:
// transport failures and 429/5xx responses. Canceled submissions are not temporary.
func IsTemporary(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var submissionErr *SubmissionError
	if errors.As(err, &submissionErr) {
		return submissionErr.StatusCode == http.StatusTooManyRequests ||
			submissionErr.StatusCode >= http.StatusInternalServerError
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
