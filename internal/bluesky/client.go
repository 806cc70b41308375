// Package bluesky is a small XRPC client for the Bluesky (AT Protocol) API
// covering what the bot needs: sessions, author feeds, likes, threads, blob
// upload and post creation. Every call is a single attempt.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL   = "https://bsky.social"
	defaultUserAgent = "blueskybot/0.1"
	defaultTimeout   = 30 * time.Second
)

var tracer = otel.Tracer("blueskybot.internal.bluesky")

var (
	// ErrMissingCredentials is returned when the handle or app password is empty.
	ErrMissingCredentials = errors.New("bluesky: handle and app password are required")
	// ErrAuth marks a rejected login.
	ErrAuth = errors.New("bluesky: authentication failed")
	// ErrNoSession is returned by authenticated calls made before Login.
	ErrNoSession = errors.New("bluesky: not logged in")
)

// Config controls how the client behaves.
type Config struct {
	BaseURL    string
	Handle     string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client wraps the XRPC endpoints used by the bot.
type Client struct {
	baseURL    string
	handle     string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	mu      sync.RWMutex
	session *Session
}

// New creates a configured Client. Credentials are checked here so a missing
// environment variable fails before any network traffic.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Handle) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, ErrMissingCredentials
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		handle:     strings.TrimSpace(cfg.Handle),
		password:   cfg.Password,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// Handle returns the configured account handle.
func (c *Client) Handle() string {
	return c.handle
}

// Session returns the active session, or nil before Login.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Login creates a session with the configured handle and app password.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": c.handle,
		"password":   c.password,
	})
	if err != nil {
		return nil, fmt.Errorf("bluesky: marshal session request: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "com.atproto.server.createSession", nil, body, "application/json", false)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("bluesky: decode session: %w", err)
	}
	if sess.AccessJwt == "" || sess.DID == "" {
		return nil, fmt.Errorf("%w: session response missing token", ErrAuth)
	}

	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()

	attrs := []any{"handle", sess.Handle, "did", sess.DID}
	if exp, ok := sess.ExpiresAt(); ok {
		attrs = append(attrs, "access_expires_at", exp.Format(time.RFC3339))
	}
	c.logger.Info("bluesky session created", attrs...)
	return &sess, nil
}

// GetProfile fetches a profile by handle or DID.
func (c *Client) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, errors.New("bluesky: actor required")
	}
	q := url.Values{}
	q.Set("actor", actor)
	data, err := c.invoke(ctx, http.MethodGet, "app.bsky.actor.getProfile", q, nil, "", true)
	if err != nil {
		return nil, err
	}
	return decode[Profile](data)
}

// GetAuthorFeed fetches one page of an actor's feed.
func (c *Client) GetAuthorFeed(ctx context.Context, params AuthorFeedParams) (*AuthorFeed, error) {
	if strings.TrimSpace(params.Actor) == "" {
		return nil, errors.New("bluesky: actor required")
	}
	q := url.Values{}
	q.Set("actor", params.Actor)
	if params.Limit > 0 {
		q.Set("limit", fmt.Sprint(params.Limit))
	}
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	}
	if params.Filter != "" {
		q.Set("filter", params.Filter)
	}
	data, err := c.invoke(ctx, http.MethodGet, "app.bsky.feed.getAuthorFeed", q, nil, "", true)
	if err != nil {
		return nil, err
	}
	return decode[AuthorFeed](data)
}

// GetLikes fetches one page of likes on the post at uri.
func (c *Client) GetLikes(ctx context.Context, uri string, limit int, cursor string) (*Likes, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("bluesky: post uri required")
	}
	q := url.Values{}
	q.Set("uri", uri)
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	data, err := c.invoke(ctx, http.MethodGet, "app.bsky.feed.getLikes", q, nil, "", true)
	if err != nil {
		return nil, err
	}
	return decode[Likes](data)
}

// GetPostThread fetches the post at uri with its direct replies.
func (c *Client) GetPostThread(ctx context.Context, uri string) (*ThreadViewPost, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("bluesky: post uri required")
	}
	q := url.Values{}
	q.Set("uri", uri)
	q.Set("depth", "1")
	q.Set("parentHeight", "0")
	data, err := c.invoke(ctx, http.MethodGet, "app.bsky.feed.getPostThread", q, nil, "", true)
	if err != nil {
		return nil, err
	}
	out, err := decode[struct {
		Thread ThreadViewPost `json:"thread"`
	}](data)
	if err != nil {
		return nil, err
	}
	return &out.Thread, nil
}

// UploadBlob stores raw media on the PDS and returns the blob reference to
// embed in a record.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*Blob, error) {
	if len(data) == 0 {
		return nil, errors.New("bluesky: blob data required")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	resp, err := c.invoke(ctx, http.MethodPost, "com.atproto.repo.uploadBlob", nil, data, mimeType, true)
	if err != nil {
		return nil, err
	}
	out, err := decode[struct {
		Blob Blob `json:"blob"`
	}](resp)
	if err != nil {
		return nil, err
	}
	return &out.Blob, nil
}

// CreatePost writes an app.bsky.feed.post record to the session's repo.
func (c *Client) CreatePost(ctx context.Context, record PostRecord) (*StrongRef, error) {
	sess := c.Session()
	if sess == nil {
		return nil, ErrNoSession
	}
	body, err := json.Marshal(struct {
		Repo       string     `json:"repo"`
		Collection string     `json:"collection"`
		Record     PostRecord `json:"record"`
	}{
		Repo:       sess.DID,
		Collection: postCollection,
		Record:     record,
	})
	if err != nil {
		return nil, fmt.Errorf("bluesky: marshal record: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "com.atproto.repo.createRecord", nil, body, "application/json", true)
	if err != nil {
		return nil, err
	}
	return decode[StrongRef](data)
}

func (c *Client) invoke(ctx context.Context, method, nsid string, query url.Values, body []byte, contentType string, authed bool) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "bluesky.xrpc", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("xrpc.nsid", nsid),
		attribute.String("http.method", method),
	)

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(nsid, query), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("bluesky: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		ct := contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	if authed {
		sess := c.Session()
		if sess == nil {
			return nil, ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+sess.AccessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http error")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("bluesky: %s: %w", nsid, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bluesky: read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	apiErr := decodeAPIError(resp.StatusCode, data)
	span.SetStatus(codes.Error, apiErr.Error())
	c.logger.Debug("bluesky xrpc error", "nsid", nsid, "status", resp.StatusCode, "error", apiErr)
	return nil, apiErr
}

func (c *Client) buildURL(nsid string, query url.Values) string {
	full := c.baseURL + "/xrpc/" + nsid
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

// APIError is an XRPC error response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("bluesky: %s: %s (status=%d)", e.Code, e.Message, e.StatusCode)
	case e.Code != "":
		return fmt.Sprintf("bluesky: %s (status=%d)", e.Code, e.StatusCode)
	case e.Message != "":
		return fmt.Sprintf("bluesky: %s (status=%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("bluesky: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) *APIError {
	var parsed APIError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	parsed.StatusCode = status
	return &parsed
}

func decode[T any](body []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("bluesky: decode response: %w", err)
	}
	return &out, nil
}
