package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"hookcheck/internal/config"
	"hookcheck/pkg/logging"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// maxErrorBody caps the response body kept in an APIError.
	maxErrorBody = 4096
)

// Client calls the identity platform's management REST API.
type Client struct {
	// http retries idempotent calls; once retries the rest only when
	// they were never sent
	http       *retryablehttp.Client
	once       *retryablehttp.Client
	apiBase    string
	tenantBase string
	basicUser  string
	basicPass  string
}

// ClientOption configures the client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient sets the underlying HTTP client, which is mostly useful for
// tests. Authentication configured through client_credentials wraps it.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// New creates a client for the platform described by cfg.
func New(cfg config.HarnessConfig, opts ...ClientOption) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	timeout := cfg.Server.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	base := options.httpClient
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Server.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local test servers use self-signed certificates
		}
		base = &http.Client{Transport: transport, Timeout: timeout}
	}

	c := &Client{
		apiBase:    cfg.Server.APIBase(),
		tenantBase: tenantBase(cfg.Server),
	}

	httpClient := base
	switch cfg.Auth.Mode {
	case config.AuthModeBasic, "":
		c.basicUser = cfg.Auth.Username
		c.basicPass = cfg.Auth.Password
	case config.AuthModeClientCredentials:
		cc := clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.EffectiveTokenURL(cfg.Server.BaseURL),
			Scopes:       cfg.Auth.Scopes,
		}
		// The token endpoint is reached through the same TLS settings.
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = cc.Client(tokenCtx)
		httpClient.Timeout = base.Timeout
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}

	c.http = newRetryClient(httpClient, cfg.Retry, retryablehttp.DefaultRetryPolicy)
	c.once = newRetryClient(httpClient, cfg.Retry, retryUnsent)

	return c, nil
}

func newRetryClient(httpClient *http.Client, retry config.RetryConfig, policy retryablehttp.CheckRetry) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = logging.Logger("Client")
	rc.RetryMax = retry.MaxRetries
	if retry.WaitMin > 0 {
		rc.RetryWaitMin = retry.WaitMin
	}
	if retry.WaitMax > 0 {
		rc.RetryWaitMax = retry.WaitMax
	}
	rc.CheckRetry = policy
	// Hand the final response back instead of a generic "giving up" error so
	// callers can report the status the platform returned.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// retryUnsent retries only when the connection could not be established,
// so the platform never saw the request. Anything else may have been acted
// on and is returned as is.
func retryUnsent(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if err != nil && errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

// idempotent reports whether method may be sent again after an ambiguous
// failure.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func tenantBase(s config.ServerConfig) string {
	base := strings.TrimSuffix(s.BaseURL, "/")
	if s.Tenant == "" {
		return base
	}
	return base + "/t/" + s.Tenant
}

// APIBase returns the tenant qualified server API base URL.
func (c *Client) APIBase() string {
	return c.apiBase
}

// TenantBase returns the tenant root, for APIs outside /api/server/v1 such
// as SCIM.
func (c *Client) TenantBase() string {
	return c.tenantBase
}

// resolve turns a path into a URL. Absolute URLs are kept; anything else is
// relative to the server API base.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.apiBase + "/" + strings.TrimPrefix(path, "/")
}

// Do sends body as JSON to path and returns the raw response whatever its
// status. A nil body sends no payload; a []byte body is sent verbatim.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	case json.RawMessage:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var reqBody interface{}
	if payload != nil {
		reqBody = payload
	}

	target := c.resolve(path)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.basicUser != "" {
		req.SetBasicAuth(c.basicUser, c.basicPass)
	}

	logging.Debug("Client", "%s %s", method, target)
	rc := c.http
	if !idempotent(method) {
		rc = c.once
	}
	resp, err := rc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, target, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func newAPIError(operation string, resp *Response) *APIError {
	body := resp.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}
