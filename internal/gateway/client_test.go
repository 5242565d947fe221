package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, interval time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		UserID:   "user-1",
		APIToken: "token-1",
		BaseURL:  srv.URL,
		Interval: interval,
	}, zap.NewNop())
	return c, srv
}

func TestGet_UnwrapsEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-1", r.Header.Get("x-api-user"))
		assert.Equal(t, "token-1", r.Header.Get("x-api-key"))
		assert.Equal(t, "user-1-habitsync", r.Header.Get("x-client"))
		w.Write([]byte(`{"success": true, "data": {"hello": "world"}}`))
	}, time.Millisecond)

	data, err := c.Get(context.Background(), "/user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello": "world"}`, string(data))
}

func TestGet_ServiceError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "error": "NotAuthorized", "message": "invalid credentials"}`))
	}, time.Millisecond)

	_, err := c.Get(context.Background(), "/user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindService, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "NotAuthorized", apiErr.ErrCode)
	assert.Equal(t, "invalid credentials", apiErr.Message)
}

func TestGet_NonEnvelopedBodyPassesThrough(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "c1"}, {"id": "c2"}]`))
	}, time.Millisecond)

	data, err := c.Get(context.Background(), "/challenges/user?page=0")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "c1"}, {"id": "c2"}]`, string(data))
}

func TestGet_NoContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, time.Millisecond)

	data, err := c.Get(context.Background(), "/tags/abc")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGet_MalformedJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": tru`))
	}, time.Millisecond)

	_, err := c.Get(context.Background(), "/user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindBadJSON, apiErr.Kind)
}

func TestGet_HTTPErrorWithoutEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}, time.Millisecond)

	_, err := c.Get(context.Background(), "/user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindHTTP, apiErr.Kind)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestGet_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(Config{UserID: "u", APIToken: "t", BaseURL: srv.URL, Interval: time.Millisecond}, zap.NewNop())
	_, err := c.Get(context.Background(), "/user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindNetwork, apiErr.Kind)
}

func TestPost_SendsJSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "todo", body["type"])
		w.Write([]byte(`{"success": true, "data": {}}`))
	}, time.Millisecond)

	_, err := c.Post(context.Background(), "/tasks/user", map[string]string{"type": "todo", "text": "x"})
	require.NoError(t, err)
}

// Concurrent callers must never slip past the pacing interval: the
// check-wait-update runs under the mutex, so each request measures against
// the true last-issued time.
func TestRateLimit_ConcurrentRequestsKeepInterval(t *testing.T) {
	const interval = 40 * time.Millisecond
	const requests = 5

	var mu sync.Mutex
	var arrivals []time.Time
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		w.Write([]byte(`{"success": true, "data": {}}`))
	}, interval)

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/user")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, arrivals, requests)
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(arrivals); i++ {
		gap := arrivals[i].Sub(arrivals[i-1])
		// Small epsilon: the clock is stamped before the request leaves the
		// client, so scheduling jitter can only widen the gap client-side.
		assert.GreaterOrEqual(t, gap, interval-5*time.Millisecond,
			"requests %d and %d issued %v apart", i-1, i, gap)
	}
}

func TestRateLimit_CancelWhileWaiting(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {}}`))
	}, 5*time.Second)

	_, err := c.Get(context.Background(), "/user")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "/user")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDefaultInterval(t *testing.T) {
	c := New(Config{UserID: "u", APIToken: "t"}, zap.NewNop())
	assert.Equal(t, MinRequestInterval, c.interval)
	assert.Equal(t, time.Minute/29, MinRequestInterval)
}
