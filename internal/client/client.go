// Package client calls the edit API over HTTP. A Client submits lighting and
// hotspot edits, queries job status and requests idea drafts; it satisfies
// the Submitter and StatusFetcher interfaces of package resolve.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
)

const (
	// defaultTimeout bounds one HTTP exchange. Synchronous edits can take
	// close to the provider timeout, so this sits above it.
	defaultTimeout = 120 * time.Second

	// maxResponseBytes bounds response bodies; inline outputs are data URLs.
	maxResponseBytes = 32 << 20
)

// Error is a non-2xx response. Message is the body's "error" field or the
// HTTP status text.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus returns the response status code.
func (e *Error) HTTPStatus() int { return e.StatusCode }

// ErrorCode returns the machine-readable code, or "" when the body had none.
func (e *Error) ErrorCode() string { return e.Code }

// TokenSource supplies the bearer token for each request. It may return ""
// when the deployment does not require auth.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Client is an edit API client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token source.
func WithToken(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// New creates a Client for the API at baseURL (for example
// "https://studios.devello.us").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit sends a lighting or hotspot edit request.
func (c *Client) Submit(ctx context.Context, req action.EditRequest) (*apimodel.ActionResponse, error) {
	var path string
	var body any
	switch r := req.(type) {
	case action.LightingRequest:
		path, body = apimodel.PathLighting, r.Body()
	case action.HotspotEditRequest:
		path, body = apimodel.PathEdit, r.Body()
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}

	var resp apimodel.ActionResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("submit %s: %w", req.Kind(), err)
	}
	return &resp, nil
}

// JobStatus queries GET /api/ios/jobs/{jobID}.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*apimodel.JobStatusResponse, error) {
	var resp apimodel.JobStatusResponse
	if err := c.do(ctx, http.MethodGet, apimodel.PathJobs+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, fmt.Errorf("job status %s: %w", jobID, err)
	}
	return &resp, nil
}

// IdeaSpark asks for a draft expanding idea.
func (c *Client) IdeaSpark(ctx context.Context, idea string) (string, error) {
	var resp apimodel.IdeaSparkResponse
	if err := c.do(ctx, http.MethodPost, apimodel.PathIdeaSpark, apimodel.IdeaSparkBody{Idea: idea}, &resp); err != nil {
		return "", fmt.Errorf("idea spark: %w", err)
	}
	if !resp.OK || resp.Draft == "" {
		msg := resp.Error
		if msg == "" {
			msg = "Idea spark failed"
		}
		return "", &Error{StatusCode: http.StatusOK, Code: resp.Code, Message: msg}
	}
	return resp.Draft, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Str("method", method).Str("path", path).Dur("duration", time.Since(start)).Err(err).Msg("API request failed")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Debug().Str("method", method).Str("path", path).Int("statusCode", resp.StatusCode).Dur("duration", time.Since(start)).Msg("API response")

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(data), 200))
	}
	return nil
}

// decodeError builds an *Error from a non-2xx body, falling back to the
// status text when the body is not an error document.
func decodeError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Message: http.StatusText(status)}
	var doc apimodel.ErrorResponse
	if json.Unmarshal(body, &doc) == nil {
		if doc.Error != "" {
			e.Message = doc.Error
		}
		e.Code = doc.Code
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d", status)
	}
	return e
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
