// Package gateway is the rate-limited transport to the Habitica v3 API.
//
// All requests from one Client share a single pacing clock: no two requests
// are issued closer together than MinRequestInterval, even when callers fan
// out concurrently. The check-wait-update sequence runs under a mutex so a
// concurrent caller can never observe a stale last-request time and burst
// past the service quota.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MinRequestInterval paces requests to the service's advertised quota of
// 29 requests per minute.
const MinRequestInterval = time.Minute / 29

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://habitica.com/api/v3"

const defaultTimeout = 30 * time.Second

// Config carries the credentials and knobs for a Client.
type Config struct {
	UserID   string
	APIToken string
	BaseURL  string        // DefaultBaseURL when empty
	Timeout  time.Duration // per-request; defaultTimeout when zero
	Interval time.Duration // pacing interval; MinRequestInterval when zero
}

// Client issues authenticated requests against the API. Construct once at
// startup and inject; it is safe for concurrent use.
type Client struct {
	userID     string
	apiToken   string
	baseURL    string
	xClient    string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
	interval    time.Duration
}

// New builds a Client from cfg. The logger must not be nil.
func New(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = MinRequestInterval
	}
	return &Client{
		userID:     cfg.UserID,
		apiToken:   cfg.APIToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		xClient:    cfg.UserID + "-habitsync",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		interval:   interval,
	}
}

// Get issues a GET request for path and returns the unwrapped payload.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request. body may be nil for endpoints that take none.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// waitTurn blocks until this request may be issued, then stamps the pacing
// clock. The mutex is held across the wait so concurrent callers serialize
// and each measures against the true last-issued time.
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRequest.IsZero() {
		if wait := c.interval - time.Since(c.lastRequest); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: "request canceled while waiting for rate limit", Err: err}
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-user", c.userID)
	req.Header.Set("x-api-key", c.apiToken)
	req.Header.Set("x-client", c.xClient)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindNetwork
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &APIError{Kind: kind, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return c.decode(resp.StatusCode, data)
}

// envelope is the standard response wrapper. Success is a pointer so that
// non-enveloped bodies (which lack the field entirely) are distinguishable
// from success=false.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// decode unwraps the response envelope. Empty bodies mean "no payload" and
// return nil, nil; non-enveloped 2xx JSON passes through unchanged.
func (c *Client) decode(status int, data []byte) (json.RawMessage, error) {
	if status == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		if status >= 200 && status < 300 {
			return nil, nil
		}
		return nil, &APIError{Kind: KindHTTP, StatusCode: status, Message: http.StatusText(status)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if status >= 200 && status < 300 {
			// Arrays and other non-object bodies cannot carry the envelope;
			// valid JSON passes through raw, only broken JSON is an error.
			if json.Valid(data) {
				return json.RawMessage(data), nil
			}
			return nil, &APIError{Kind: KindBadJSON, StatusCode: status, Message: err.Error(), Err: err}
		}
		return nil, &APIError{Kind: KindHTTP, StatusCode: status, Message: truncate(string(data), 200)}
	}

	switch {
	case env.Success == nil:
		// Endpoint that skips the envelope; hand the body back raw.
		if status >= 200 && status < 300 {
			return json.RawMessage(data), nil
		}
		return nil, &APIError{Kind: KindHTTP, StatusCode: status, Message: truncate(string(data), 200)}
	case *env.Success:
		return env.Data, nil
	default:
		return nil, &APIError{
			Kind:       KindService,
			StatusCode: status,
			ErrCode:    env.Error,
			Message:    env.Message,
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
