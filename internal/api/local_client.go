package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/roamdb"
)

const (
	// LocalAPITimeout is the default timeout for Local API requests
	LocalAPITimeout = 30 * time.Second
	// PortFilePath is the file containing the Local API port
	PortFilePath = ".roam-api-port"
)

// LocalAPIError indicates an error from the Local API
type LocalAPIError struct {
	Message string
}

func (e LocalAPIError) Error() string { return e.Message }

// IsResponseTimeout returns true if this is a "Response timeout" error.
func (e LocalAPIError) IsResponseTimeout() bool {
	return e.Message == "Response timeout"
}

// DesktopNotRunningError indicates the Roam desktop app is not running
type DesktopNotRunningError struct {
	Message string
}

func (e DesktopNotRunningError) Error() string { return e.Message }

// LocalClient reads encrypted graphs through the desktop app's Local API
type LocalClient struct {
	graphName  string
	httpClient *http.Client
	log        *zap.Logger
}

// LocalClientOption is a function that configures a LocalClient
type LocalClientOption func(*LocalClient)

// WithLocalTimeout sets a custom timeout for the HTTP client
func WithLocalTimeout(timeout time.Duration) LocalClientOption {
	return func(c *LocalClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithLocalLogger sets the logger requests are reported to
func WithLocalLogger(log *zap.Logger) LocalClientOption {
	return func(c *LocalClient) {
		if log != nil {
			c.log = log
		}
	}
}

// NewLocalClient creates a client for encrypted graphs using the Local API.
// The Local API requires the Roam desktop app to be running.
func NewLocalClient(graphName string, opts ...LocalClientOption) *LocalClient {
	c := &LocalClient{
		graphName:  graphName,
		httpClient: &http.Client{Timeout: LocalAPITimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GraphName returns the graph name
func (c *LocalClient) GraphName() string {
	return c.graphName
}

// discoverPort reads the port from ~/.roam-api-port
func discoverPort() (int, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return 0, fmt.Errorf("failed to get home directory: %w", err)
	}

	portFile := filepath.Join(homeDir, PortFilePath)
	data, err := os.ReadFile(portFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, DesktopNotRunningError{
				Message: fmt.Sprintf("Roam desktop app not running: port file %s not found. Start Roam and enable 'Encrypted local API' in settings.", portFile),
			}
		}
		return 0, fmt.Errorf("failed to read port file %s: %w", portFile, err)
	}

	portStr := strings.TrimSpace(string(data))
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port in %s: %q", portFile, portStr)
	}

	return port, nil
}

type localRequest struct {
	Action string        `json:"action"`
	Args   []interface{} `json:"args"`
}

type localResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// call invokes one Local API action
func (c *LocalClient) call(ctx context.Context, action string, args ...interface{}) (json.RawMessage, error) {
	port, err := discoverPort()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://localhost:%d/api/%s", port, c.graphName)
	jsonBody, err := json.Marshal(localRequest{Action: action, Args: args})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("Roam Local API request", zap.String("action", action), zap.Int("port", port))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Local API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result localResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("local API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("failed to parse Local API response: %w", err)
	}

	if !result.Success {
		return nil, LocalAPIError{Message: result.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local API error (status %d)", resp.StatusCode)
	}

	return result.Result, nil
}

// Query executes a Datalog query against the graph
func (c *LocalClient) Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	// data.q takes the query string followed by its inputs
	callArgs := make([]interface{}, 0, 1+len(args))
	callArgs = append(callArgs, query)
	callArgs = append(callArgs, args...)

	raw, err := c.call(ctx, "data.q", callArgs...)
	if err != nil {
		return nil, err
	}

	var result [][]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse query result: %w", err)
	}
	return result, nil
}

// Pull retrieves an entity by ID with the given selector pattern
func (c *LocalClient) Pull(ctx context.Context, eid interface{}, selector string) (json.RawMessage, error) {
	return c.call(ctx, "data.pull", selector, eid)
}

// GetPageByTitle retrieves a page by its title
func (c *LocalClient) GetPageByTitle(ctx context.Context, title string) (*roamdb.Page, error) {
	return getPageByTitle(ctx, c, title)
}

// ListPages returns page titles, optionally only those edited since a time
func (c *LocalClient) ListPages(ctx context.Context, since time.Time, limit int) ([]roamdb.PageRef, error) {
	return listPages(ctx, c, since, limit)
}

var _ RoamAPI = (*LocalClient)(nil)
