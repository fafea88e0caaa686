// Package inference provides the stateless HTTP client for the completion
// service. One call, one candidate; callers decide what a failure means.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
)

const (
	defaultTimeout = 10 * time.Second
	defaultBurst   = 5
)

// Suggestion is a candidate completion with the service's confidence in it.
type Suggestion struct {
	Text       string
	Confidence float64
}

// CompletionRequest is the wire request for one completion call.
type CompletionRequest struct {
	Code           string `json:"code"`
	CursorPosition int    `json:"cursorPosition"`
	Language       string `json:"language"`
}

// CompletionResponse is the wire response from the completion service.
type CompletionResponse struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// Client calls the completion service. It holds no per-session state and is
// safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	transport   *LoggingTransport
	rateLimiter *rate.Limiter
}

// ClientOptions configures optional client behavior.
type ClientOptions struct {
	// Timeout bounds each completion call. Zero means the default.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing calls. Zero means unlimited.
	RequestsPerSecond float64

	// NetworkLogsEnabled records request/response traffic under NetworkLogDir.
	NetworkLogsEnabled bool
	NetworkLogDir      string
}

// NewClient creates a completion client for the given service base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithOptions(baseURL, ClientOptions{})
}

// NewClientWithOptions creates a completion client with explicit options.
func NewClientWithOptions(baseURL string, opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := NewLoggingTransport(nil, opts.NetworkLogDir, opts.NetworkLogsEnabled && opts.NetworkLogDir != "")

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), defaultBurst)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		transport:   transport,
		rateLimiter: limiter,
	}
}

// Complete requests one completion for the document and cursor offset.
// Network failures, non-success statuses, and malformed responses all come
// back as inference errors; the caller treats them as "no suggestion".
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Suggestion, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, cperrors.Wrap(err, cperrors.ErrCodeInferenceTimeout, "rate limit wait cancelled")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInferenceAPI, "encoding completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/autocomplete", bytes.NewReader(body))
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInferenceAPI, "building completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cperrors.Wrap(err, cperrors.ErrCodeInferenceTimeout, "completion call cancelled")
		}
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInferenceAPI, "completion call failed").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, cperrors.New(cperrors.ErrCodeInferenceAPI, "completion service returned non-success status").
			WithContext("status", resp.StatusCode).
			WithContext("body", string(payload)).
			WithRetryable(resp.StatusCode >= 500)
	}

	var out CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInferenceAPI, "decoding completion response")
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return nil, cperrors.New(cperrors.ErrCodeInferenceAPI, fmt.Sprintf("confidence %g outside [0,1]", out.Confidence))
	}

	return &Suggestion{Text: out.Suggestion, Confidence: out.Confidence}, nil
}

// Close releases the diagnostic transport.
func (c *Client) Close() error {
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}
