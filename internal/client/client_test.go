package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"hookcheck/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.HarnessConfig {
	cfg := config.GetDefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Retry = config.RetryConfig{MaxRetries: 2, WaitMin: time.Millisecond, WaitMax: 5 * time.Millisecond}
	return cfg
}

func TestNew_APIBase(t *testing.T) {
	c, err := New(testConfig("https://localhost:9853"))
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:9853/t/carbon.super/api/server/v1", c.APIBase())
	assert.Equal(t, "https://localhost:9853/t/carbon.super", c.TenantBase())
}

func TestNew_UnsupportedAuthMode(t *testing.T) {
	cfg := testConfig("https://localhost:9853")
	cfg.Auth.Mode = "kerberos"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestDo_BasicAuthAndJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "admin", pass)
		assert.Equal(t, "/t/carbon.super/api/server/v1/flow/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "REGISTRATION", body["flowType"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"flowId":"f-123"}`))
	}))
	defer server.Close()

	c, err := New(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Do(t.Context(), http.MethodPost, "/flow/execute", map[string]string{"flowType": "REGISTRATION"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"flowId": "f-123"}, resp.JSON())
}

func TestDo_AbsoluteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scim2/Users", r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Do(t.Context(), http.MethodGet, server.URL+"/scim2/Users", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, resp.JSON())
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Do(t.Context(), http.MethodGet, "webhooks", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ReturnsLastResponseAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	c, err := New(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Do(t.Context(), http.MethodGet, "webhooks", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream down", string(resp.Body))
}

func TestNew_ClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/t/carbon.super/api/server/v1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Auth = config.AuthConfig{
		Mode:         config.AuthModeClientCredentials,
		ClientID:     "hookcheck",
		ClientSecret: "secret",
		Scopes:       []string{"internal_webhook_mgt_create"},
	}

	c, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := c.Do(t.Context(), http.MethodGet, "webhooks", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "token must be reused")
}

func TestDo_DoesNotRetryPostAfterServerError(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"wh-2"}`))
	}))
	defer server.Close()

	c, err := New(testConfig(server.URL))
	require.NoError(t, err)

	_, err = c.CreateWebhook(t.Context(), WebhookRequest{Name: "login", Endpoint: "http://localhost:8580/hooks"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(1), posts.Load(), "a POST the platform may have acted on is sent once")
}

// refusingTransport fails every request before it reaches the network.
type refusingTransport struct {
	calls atomic.Int32
}

func (rt *refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	rt.calls.Add(1)
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestDo_RetriesPostWhenConnectionRefused(t *testing.T) {
	transport := &refusingTransport{}
	c, err := New(testConfig("http://localhost:9853"), WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)

	_, err = c.Do(t.Context(), http.MethodPost, "flow/execute", map[string]string{"flowType": "LOGIN"})
	require.Error(t, err)
	assert.Equal(t, int32(3), transport.calls.Load(), "an unsent POST is retried")
}

func TestRetryUnsent(t *testing.T) {
	dialErr := &url.Error{Op: "Post", URL: "http://localhost:1", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	readErr := &url.Error{Op: "Post", URL: "http://localhost:1", Err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}}

	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{name: "dial failure", err: dialErr, want: true},
		{name: "reset after sending", err: readErr, want: false},
		{name: "server error", resp: &http.Response{StatusCode: http.StatusInternalServerError}, want: false},
		{name: "success", resp: &http.Response{StatusCode: http.StatusCreated}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, err := retryUnsent(context.Background(), tt.resp, tt.err)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, retry)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	retry, err := retryUnsent(ctx, nil, dialErr)
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdempotent(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead} {
		assert.True(t, idempotent(method), method)
	}
	for _, method := range []string{http.MethodPost, http.MethodPatch} {
		assert.False(t, idempotent(method), method)
	}
}
