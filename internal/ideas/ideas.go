// Package ideas reads and writes the Supabase "ideas" table through its
// PostgREST endpoint (/rest/v1/ideas). Row level security decides what the
// caller may see, so requests carry the user's access token next to the
// project's anon key.
package ideas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	tablePath = "/rest/v1/ideas"

	// DefaultLimit is how many ideas List returns when asked for none.
	DefaultLimit = 50

	// DefaultSource and DefaultStatus label ideas submitted from this client.
	DefaultSource = "cli"
	DefaultStatus = "submitted"

	maxTextChars     = 2000
	maxResponseBytes = 4 << 20
)

// ErrEmptyText is returned when an idea has no text.
var ErrEmptyText = errors.New("idea text is required")

// Idea is one row of the ideas table.
type Idea struct {
	ID        uuid.UUID  `json:"id"`
	Text      string     `json:"text"`
	Status    string     `json:"status,omitempty"`
	Source    string     `json:"source,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
}

type insert struct {
	Text   string `json:"text"`
	Status string `json:"status"`
	Source string `json:"source"`
	UserID string `json:"user_id,omitempty"`
}

// Error is a non-2xx PostgREST response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ideas: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Client talks to one Supabase project.
type Client struct {
	baseURL     string
	anonKey     string
	accessToken string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sends the signed-in user's token instead of the anon key
// as the bearer credential.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the project at supabaseURL
// ("https://<ref>.supabase.co").
func New(supabaseURL, anonKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(supabaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid Supabase URL %q", supabaseURL)
	}
	if anonKey == "" {
		return nil, errors.New("anon key is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(supabaseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit inserts an idea and returns the stored row. The owner is the
// subject of the access token, when one is set.
func (c *Client) Submit(ctx context.Context, text, source string) (*Idea, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if n := len([]rune(text)); n > maxTextChars {
		return nil, fmt.Errorf("idea text is %d characters, at most %d allowed", n, maxTextChars)
	}
	if source == "" {
		source = DefaultSource
	}

	row := insert{Text: text, Status: DefaultStatus, Source: source}
	if c.accessToken != "" {
		sub, err := TokenSubject(c.accessToken)
		if err != nil {
			return nil, err
		}
		row.UserID = sub
	}

	var created []Idea
	q := url.Values{"select": {"*"}}
	if err := c.do(ctx, http.MethodPost, q, []insert{row}, &created); err != nil {
		return nil, fmt.Errorf("submit idea: %w", err)
	}
	if len(created) == 0 {
		return nil, errors.New("submit idea: no idea returned from server")
	}
	log.Debug().Str("ideaId", created[0].ID.String()).Msg("Idea submitted")
	return &created[0], nil
}

// List returns the newest ideas visible to the caller.
func (c *Client) List(ctx context.Context, limit int) ([]Idea, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(limit)},
	}
	var out []Idea
	if err := c.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+tablePath+"?"+q.Encode(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	bearer := c.anonKey
	if c.accessToken != "" {
		bearer = c.accessToken
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return restError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// restError reads PostgREST's {"message": ...} body, falling back to the
// status text.
func restError(status int, body []byte) *Error {
	var doc struct {
		Message string `json:"message"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(body, &doc) == nil && doc.Message != "" {
		msg = doc.Message
	}
	return &Error{StatusCode: status, Message: msg}
}

// TokenSubject returns the "sub" claim of a Supabase access token without
// verifying it. The database verifies the token; the subject only fills
// user_id.
func TokenSubject(token string) (string, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256, jose.RS256, jose.ES256})
	if err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return "", fmt.Errorf("read access token claims: %w", err)
	}
	return claims.Subject, nil
}
