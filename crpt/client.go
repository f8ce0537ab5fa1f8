/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package crpt submits documents to the CRPT ("Chestny ZNAK") document service.
// Every HTTP attempt is admitted by the shared admission.Admitter right before it is sent.
package crpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/xid"

	"github.com/acronis/go-crptapi/admission"
	"github.com/acronis/go-crptapi/httpclient"
	"github.com/acronis/go-crptapi/log"
)

// RequestTypeCreateDocument is used as request type in HTTP client logs and metrics.
const RequestTypeCreateDocument = "crpt.createDocument"

const maxResponseBodySize = 1 << 20

// Result is a successful answer of the service.
type Result struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// ClientOpts represents options for NewClient.
type ClientOpts struct {
	// Admitter gates every HTTP attempt. Required.
	Admitter admission.Admitter

	Logger log.FieldLogger

	// HTTPClientOpts is passed to httpclient.NewWithOpts.
	// Admitter, AuthProvider, UserAgent, RequestType and Logger are overridden.
	HTTPClientOpts httpclient.Opts
}

// Client submits documents. It is safe for concurrent use; all callers share one admitter.
type Client struct {
	endpoint        string
	signatureHeader string
	httpClient      *http.Client
	logger          log.FieldLogger
}

// NewClient creates a new Client.
func NewClient(cfg *Config, opts ClientOpts) (*Client, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if opts.Admitter == nil {
		return nil, ErrAdmitterRequired
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}

	httpOpts := opts.HTTPClientOpts
	httpOpts.Admitter = opts.Admitter
	httpOpts.UserAgent = cfg.UserAgent
	httpOpts.RequestType = RequestTypeCreateDocument
	httpOpts.Logger = opts.Logger
	httpOpts.AuthProvider = nil
	if cfg.Token != "" {
		httpOpts.AuthProvider = httpclient.StaticTokenProvider(cfg.Token)
	}
	httpClient, err := httpclient.NewWithOpts(cfg.HTTP, httpOpts)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	signatureHeader := cfg.SignatureHeader
	if signatureHeader == "" {
		signatureHeader = DefaultSignatureHeader
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:        endpoint,
		signatureHeader: signatureHeader,
		httpClient:      httpClient,
		logger:          opts.Logger,
	}, nil
}

// CreateDocument submits the document with its signature.
// It blocks until the admitter grants an attempt, so the call may take a long time when the gate is saturated.
// Errors:
//   - *EncodeError if the document cannot be serialized (no admission is consumed);
//   - *httpclient.AdmissionWaitError (wrapping *admission.CanceledError) if ctx is done while waiting for admission;
//   - *SubmissionError on a non-2xx response;
//   - *TransportError if no response was received.
func (c *Client) CreateDocument(ctx context.Context, doc *Document, signature string) (*Result, error) {
	body, err := encodeDocument(doc)
	if err != nil {
		return nil, &EncodeError{Inner: err}
	}

	// The same request ID is kept across retry attempts.
	requestID := httpclient.GetRequestIDFromContext(ctx)
	if requestID == "" {
		requestID = xid.New().String()
		ctx = httpclient.NewContextWithRequestID(ctx, requestID)
	}
	logger := c.logger.With(log.String("doc_id", doc.DocID), log.String("request_id", requestID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(c.signatureHeader, signature)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var waitErr *httpclient.AdmissionWaitError
		if errors.As(err, &waitErr) {
			logger.Warn("document was not sent, admission wait aborted", log.Error(waitErr))
			return nil, waitErr
		}
		logger.Error("failed to send document", log.Error(err))
		return nil, &TransportError{Inner: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close response body", log.Error(closeErr))
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		logger.Error("failed to read response body", log.Int("status", resp.StatusCode), log.Error(err))
		return nil, &TransportError{Inner: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logger.Error("failed to create document",
			log.Int("status", resp.StatusCode), log.String("response_body", string(respBody)))
		return nil, &SubmissionError{StatusCode: resp.StatusCode, Body: respBody}
	}

	logger.Info("document created", log.Int("status", resp.StatusCode))
	return &Result{StatusCode: resp.StatusCode, Body: respBody, RequestID: requestID}, nil
}

func encodeDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}
	if doc.DocType == "" {
		withType := *doc
		withType.DocType = DocumentTypeIntroduceGoods
		doc = &withType
	}
	return json.Marshal(doc)
}
