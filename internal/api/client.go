package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/roamdb"
)

const (
	// DefaultBaseURL is the base URL for Roam Research API
	DefaultBaseURL = "https://api.roamresearch.com"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
	// MaxRetries for rate limit errors
	MaxRetries = 3
	// InitialBackoff for rate limit retries
	InitialBackoff = 10 * time.Second
	// maxRedirects bounds peer redirects per call
	maxRedirects = 3
)

var peerRedirect = regexp.MustCompile(`https://(peer-\d+).*?:(\d+)`)

// Client reads a graph through the Roam Research cloud API
type Client struct {
	baseURL    string
	apiToken   string
	graphName  string
	httpClient *http.Client
	log        *zap.Logger

	retries    uint
	retryDelay time.Duration

	mu            sync.Mutex
	redirectCache map[string]string
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the client
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets a custom timeout for the HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger requests and retries are reported to
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRetry sets how often a rate limited call is retried and the first
// backoff delay, which doubles on every retry
func WithRetry(retries uint, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// NewClient creates a new Roam Research API client
func NewClient(graphName, apiToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		apiToken:      apiToken,
		graphName:     graphName,
		log:           zap.NewNop(),
		retries:       MaxRetries,
		retryDelay:    InitialBackoff,
		redirectCache: make(map[string]string),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// peer redirects are resolved by callCtx
				return http.ErrUseLastResponse
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GraphName returns the graph name
func (c *Client) GraphName() string {
	return c.graphName
}

func (c *Client) endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.redirectCache[c.graphName]; ok {
		return cached
	}
	return c.baseURL
}

// callCtx makes a single API call, following Roam's peer redirects
func (c *Client) callCtx(ctx context.Context, path string, body interface{}) ([]byte, error) {
	for redirects := 0; ; redirects++ {
		resp, location, err := c.post(ctx, c.endpoint()+path, body)
		if err != nil {
			return nil, err
		}
		if location == "" {
			return resp, nil
		}
		if redirects >= maxRedirects {
			return nil, fmt.Errorf("too many redirects, last to %s", location)
		}

		matches := peerRedirect.FindStringSubmatch(location)
		if matches == nil {
			return nil, fmt.Errorf("could not parse redirect URL: %s", location)
		}
		peer := fmt.Sprintf("https://%s.api.roamresearch.com:%s", matches[1], matches[2])
		c.log.Debug("Following peer redirect", zap.String("graph", c.graphName), zap.String("peer", peer))

		c.mu.Lock()
		c.redirectCache[c.graphName] = peer
		c.mu.Unlock()
	}
}

// post sends one request. A redirect is reported through location.
func (c *Client) post(ctx context.Context, url string, body interface{}) ([]byte, string, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	// Roam requires both Authorization and x-authorization headers
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("x-authorization", "Bearer "+c.apiToken)

	c.log.Debug("Roam API request", zap.String("url", url))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTemporaryRedirect || resp.StatusCode == http.StatusPermanentRedirect {
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, "", fmt.Errorf("redirect without Location header")
		}
		return nil, location, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return respBody, "", nil
	case http.StatusUnauthorized:
		return nil, "", AuthenticationError{Message: "invalid API token"}
	case http.StatusTooManyRequests:
		return nil, "", RateLimitError{Message: fmt.Sprintf("rate limit exceeded: %s", string(respBody))}
	case http.StatusBadRequest:
		return nil, "", ValidationError{Message: fmt.Sprintf("invalid request: %s", string(respBody))}
	case http.StatusInternalServerError:
		return nil, "", fmt.Errorf("server error: %s", string(respBody))
	default:
		return nil, "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
}

// callWithRetry calls the API, backing off on rate limit errors only
func (c *Client) callWithRetry(ctx context.Context, path string, body interface{}) ([]byte, error) {
	var resp []byte
	err := retry.Do(
		func() error {
			var err error
			resp, err = c.callCtx(ctx, path, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.retries+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			var rl RateLimitError
			return errors.As(err, &rl)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("Rate limited by Roam API, backing off", zap.Uint("attempt", n+1), zap.Error(err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// QueryResult represents the result of a Datalog query
type QueryResult struct {
	Result [][]interface{} `json:"result"`
}

// Query executes a Datalog query against the graph
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	path := fmt.Sprintf("/api/graph/%s/q", c.graphName)

	body := map[string]interface{}{
		"query": query,
	}
	if len(args) > 0 {
		body["args"] = args
	}

	resp, err := c.callWithRetry(ctx, path, body)
	if err != nil {
		return nil, err
	}

	var result QueryResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to parse query result: %w", err)
	}

	return result.Result, nil
}

// PullResult represents the result of a pull operation
type PullResult struct {
	Result json.RawMessage `json:"result"`
}

// Pull retrieves an entity by ID with the given selector pattern
func (c *Client) Pull(ctx context.Context, eid interface{}, selector string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/graph/%s/pull", c.graphName)

	body := map[string]interface{}{
		"eid":      eid,
		"selector": selector,
	}

	resp, err := c.callWithRetry(ctx, path, body)
	if err != nil {
		return nil, err
	}

	var result PullResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to parse pull result: %w", err)
	}

	return result.Result, nil
}

// GetPageByTitle retrieves a page by its title
func (c *Client) GetPageByTitle(ctx context.Context, title string) (*roamdb.Page, error) {
	return getPageByTitle(ctx, c, title)
}

// ListPages returns page titles, optionally only those edited since a time
func (c *Client) ListPages(ctx context.Context, since time.Time, limit int) ([]roamdb.PageRef, error) {
	return listPages(ctx, c, since, limit)
}

var _ RoamAPI = (*Client)(nil)
