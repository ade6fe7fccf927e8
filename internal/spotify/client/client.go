package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	rwerrors "github.com/tessro/rewind/internal/errors"
)

// BaseURL is the Spotify Web API base URL.
const BaseURL = "https://api.spotify.com/v1"

// Client is a Spotify Web API client. Each call is a single attempt;
// retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
	baseURL    string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client authorising requests with tokens.
func New(tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		baseURL:    BaseURL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request to the Spotify API.
func (c *Client) Get(ctx context.Context, path string, result any) (int, error) {
	return c.request(ctx, http.MethodGet, path, nil, result)
}

// Put performs a PUT request to the Spotify API.
func (c *Client) Put(ctx context.Context, path string, body any, result any) (int, error) {
	return c.request(ctx, http.MethodPut, path, body, result)
}

// request sends one API call and returns the HTTP status.
func (c *Client) request(ctx context.Context, method, path string, body any, result any) (int, error) {
	if c.tokens == nil {
		return 0, fmt.Errorf("%w: %w", rwerrors.ErrAuth, rwerrors.ErrNotAuthenticated)
	}
	token, err := c.tokens.Token()
	if err != nil {
		return 0, tokenError(err)
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		c.logger.Debug("spotify request", zap.String("method", method), zap.String("path", path), zap.ByteString("body", jsonBody))
	} else {
		c.logger.Debug("spotify request", zap.String("method", method), zap.String("path", path))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: request failed: %w", rwerrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to read response: %w", rwerrors.ErrTransient, err)
	}

	c.logger.Debug("spotify response", zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error struct {
				Status  int    `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		c.logger.Debug("spotify error body", zap.ByteString("body", respBody))
		return resp.StatusCode, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// APIError is a non-2xx Spotify API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Spotify API error %d: %s", e.Status, e.Message)
}

// Unwrap classifies the error: 401 is an auth failure, 404 a missing
// resource and anything else transient.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return rwerrors.ErrAuth
	case http.StatusNotFound:
		return rwerrors.ErrNotFound
	default:
		return rwerrors.ErrTransient
	}
}

// BuildURL builds a URL with query parameters.
func BuildURL(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	u, _ := url.Parse(path)
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// tokenError classifies a token source failure. Only a rejection from the
// token endpoint or a missing login needs the user to sign in again.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) || errors.Is(err, rwerrors.ErrNotAuthenticated) {
		return fmt.Errorf("%w: %w", rwerrors.ErrAuth, err)
	}
	return fmt.Errorf("%w: token refresh failed: %w", rwerrors.ErrTransient, err)
}
