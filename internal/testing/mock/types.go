package mock

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Delivery is one HTTP request accepted by a Receiver at a registered path.
// Deliveries are immutable once recorded.
type Delivery struct {
	// Sequence is the arrival ordinal, starting at 1 and strictly increasing
	// per receiver.
	Sequence uint64 `json:"sequence"`
	// ID uniquely identifies the delivery across receivers.
	ID string `json:"id"`
	// Method is the HTTP method used by the sender
	Method string `json:"method"`
	// Path is the request path the delivery arrived on
	Path string `json:"path"`
	// Headers holds a copy of the request headers
	Headers http.Header `json:"headers,omitempty"`
	// Body is the raw request body, recorded even when it is not valid JSON
	Body []byte `json:"-"`
	// ReceivedAt is the receiver clock time at which the body was read
	ReceivedAt time.Time `json:"received_at"`
}

// BodyString returns the raw body as a string.
func (d Delivery) BodyString() string {
	return string(d.Body)
}

// ReceiverConfig controls how a Receiver binds and advertises itself.
type ReceiverConfig struct {
	// Host is the host name put in advertised URLs (default "localhost")
	Host string
	// Scheme is the scheme put in advertised URLs (default "http")
	Scheme string
	// BindAddress is the interface to listen on; empty means all interfaces
	BindAddress string
	// BindRetries is the number of extra bind attempts when the port is busy.
	// Zero reports the first bind failure immediately.
	BindRetries int
	// BindRetryInterval is the initial backoff between bind attempts
	BindRetryInterval time.Duration
	// ReadyTimeout bounds the wait for the serve loop to start
	ReadyTimeout time.Duration
	// MaxBodyBytes caps recorded request bodies
	MaxBodyBytes int64
	// MetricsPath, when set, serves the receiver's prometheus metrics
	MetricsPath string
	// Clock stamps ReceivedAt; defaults to RealClock
	Clock Clock
}

const (
	defaultHost              = "localhost"
	defaultScheme            = "http"
	defaultBindRetryInterval = 100 * time.Millisecond
	defaultReadyTimeout      = 5 * time.Second
	defaultMaxBodyBytes      = 10 << 20
	shutdownTimeout          = 5 * time.Second
)

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Scheme == "" {
		c.Scheme = defaultScheme
	}
	if c.BindRetryInterval <= 0 {
		c.BindRetryInterval = defaultBindRetryInterval
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	return c
}

// ErrReceiverNotRunning is returned by operations that need a started receiver.
var ErrReceiverNotRunning = errors.New("receiver is not running")

// BindError reports that the receiver could not listen on its port.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to listen on port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
