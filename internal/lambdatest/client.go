package lambdatest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// RequestTimeout is the default automation API request timeout.
	RequestTimeout = 20 * time.Second
	// RetryInterval is the pause between retries of a failed API request.
	RetryInterval = 500 * time.Millisecond
	// MaxRetries specifies max attempts per API request.
	MaxRetries = 3
)

// Client handles communication with the LambdaTest automation API.
type Client struct {
	client    *http.Client
	username  string
	accessKey string
	baseURL   string
	logger    log.FieldLogger

	retries       int
	retryInterval time.Duration
}

// NewClient returns a new client for the automation API.
func NewClient(logger log.FieldLogger, username, accessKey, baseURL string) *Client {
	return &Client{
		client:        &http.Client{Timeout: RequestTimeout},
		username:      username,
		accessKey:     accessKey,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		logger:        logger,
		retries:       MaxRetries,
		retryInterval: RetryInterval,
	}
}

// NewRequest creates a new HTTP request against the automation API.
// A non-nil data is serialized as the JSON body.
func (c *Client) NewRequest(ctx context.Context, method, path string, data interface{}) (*http.Request, error) {
	var buf io.Reader
	if data != nil {
		b, err := json.Marshal(&data)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(c.username, c.accessKey)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do sends a request and decodes the JSON response into v when v is non-nil.
// Server errors are retried a bounded number of times.
func (c *Client) Do(req *http.Request, v interface{}) error {
	if req.Body != nil && req.GetBody == nil {
		originalBody, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		if err = req.Body.Close(); err != nil {
			return err
		}
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(originalBody)), nil
		}
		req.Body, _ = req.GetBody()
	}

	var err error
	for i := 1; i <= c.retries; i++ {
		var retry bool
		retry, err = c.do(req, v, i)
		if !retry {
			return err
		}
		select {
		case <-req.Context().Done():
			return req.Context().Err()
		case <-time.After(c.retryInterval):
		}
		if req.GetBody != nil {
			req.Body, _ = req.GetBody()
		}
	}
	return err
}

func (c *Client) do(req *http.Request, v interface{}, attempt int) (bool, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		if attempt < c.retries {
			c.logger.Debugf("Request to %s failed (attempt %d): %v", req.URL.Path, attempt, err)
			return true, err
		}
		return false, err
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			c.logger.Debugf("Error closing response body: %v", cErr)
		}
	}()

	if resp.StatusCode >= http.StatusInternalServerError && attempt < c.retries {
		c.logger.Debugf("Automation API returned %d for %s (attempt %d), retrying", resp.StatusCode, req.URL.Path, attempt)
		return true, fmt.Errorf("automation API returned %d", resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var msg messageResponse
		if jErr := json.Unmarshal(body, &msg); jErr == nil && msg.Message != "" {
			return false, fmt.Errorf("automation API returned %d: %s", resp.StatusCode, msg.Message)
		}
		return false, fmt.Errorf("automation API returned %d for %s", resp.StatusCode, req.URL.Path)
	}

	if v != nil {
		if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
			return false, fmt.Errorf("failed to decode response from %s: %v", req.URL.Path, err)
		}
	}
	return false, nil
}

// User fetches the account behind the configured credentials. It doubles as
// the credential check performed before the first session is opened.
func (c *Client) User(ctx context.Context) (*User, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}

	var response UserResponse
	if err = c.Do(req, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// Platforms fetches the grid's platform catalog.
func (c *Client) Platforms(ctx context.Context) (*PlatformsResponse, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, "/platforms", nil)
	if err != nil {
		return nil, err
	}

	var response PlatformsResponse
	if err = c.Do(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// BrowserNames flattens the platform catalog into the browser@version:os
// names a test runner selects browsers with. The list is sorted so repeated
// calls present a stable catalog.
func (c *Client) BrowserNames(ctx context.Context) ([]string, error) {
	platforms, err := c.Platforms(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, group := range platforms.Platforms {
		for _, platform := range group {
			for _, browser := range platform.Browsers {
				names = append(names, fmt.Sprintf("%s@%s:%s", browser.Name, browser.Version, platform.OS))
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// UpdateSessionStatus reports the final result of a remote session.
func (c *Client) UpdateSessionStatus(ctx context.Context, sessionID string, update SessionUpdate) error {
	req, err := c.NewRequest(ctx, http.MethodPatch, "/sessions/"+sessionID, update)
	if err != nil {
		return err
	}
	return c.Do(req, nil)
}

// Session fetches the detail record of a remote session.
func (c *Client) Session(ctx context.Context, sessionID string) (*Session, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, "/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}

	var response SessionResponse
	if err = c.Do(req, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}
