package mock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hookcheck/pkg/logging"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const receiverSubsystem = "Receiver"

// Receiver is an HTTP server that records webhook deliveries pushed to it by
// the system under test. It serves every method on the paths registered
// through RegisterEndpoint and keeps an append-only, arrival-ordered log.
type Receiver struct {
	cfg ReceiverConfig

	// lifecycle serializes Start and Stop; mu guards the fields below.
	lifecycle sync.Mutex
	mu        sync.RWMutex

	httpServer    *http.Server
	listener      net.Listener
	port          int
	running       bool
	shutdownError error
	paths         map[string]struct{}

	deliveries []Delivery
	nextSeq    uint64
	changed    chan struct{}

	registry   *prometheus.Registry
	recorded   prometheus.Counter
	rejected   *prometheus.CounterVec
	readyAfter time.Duration
}

// NewReceiver creates a receiver; nothing is bound until Start.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	r := &Receiver{
		cfg:     cfg.withDefaults(),
		paths:   make(map[string]struct{}),
		changed: make(chan struct{}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookcheck_receiver_deliveries_total",
			Help: "Total number of webhook deliveries recorded by the receiver",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookcheck_receiver_rejected_total",
			Help: "Total number of requests the receiver refused to record",
		}, []string{"reason"}),
	}
	r.registry = prometheus.NewRegistry()
	r.registry.MustRegister(r.recorded, r.rejected)
	return r
}

// Start binds the receiver to port and serves until Stop. It returns the
// base URL (scheme://host:port) once the serve loop is confirmed running.
// A busy port yields a *BindError after the configured retries.
func (r *Receiver) Start(ctx context.Context, port int) (string, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.RLock()
	running, current := r.running, r.port
	r.mu.RUnlock()
	if running {
		if current == port {
			return r.BaseURL(), nil
		}
		return "", fmt.Errorf("receiver already running on port %d", current)
	}

	started := time.Now()
	listener, err := r.listen(ctx, port)
	if err != nil {
		return "", &BindError{Port: port, Err: err}
	}

	mux := http.NewServeMux()
	if r.cfg.MetricsPath != "" {
		mux.Handle(r.cfg.MetricsPath, promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", r.handleDelivery)

	ready := make(chan struct{})
	var readyOnce sync.Once
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext runs once Serve has taken ownership of the listener,
		// immediately before the accept loop.
		BaseContext: func(net.Listener) context.Context {
			readyOnce.Do(func() { close(ready) })
			return context.Background()
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.mu.Lock()
			r.shutdownError = err
			r.mu.Unlock()
			logging.Error(receiverSubsystem, err, "Receiver on port %d stopped serving", port)
			serveErr <- err
		}
	}()

	timer := time.NewTimer(r.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case err := <-serveErr:
		_ = listener.Close()
		return "", fmt.Errorf("receiver on port %d failed to serve: %w", port, err)
	case <-timer.C:
		_ = httpServer.Close()
		return "", fmt.Errorf("receiver on port %d not ready after %s", port, r.cfg.ReadyTimeout)
	case <-ctx.Done():
		_ = httpServer.Close()
		return "", ctx.Err()
	}

	r.mu.Lock()
	r.httpServer = httpServer
	r.listener = listener
	r.port = port
	r.running = true
	r.shutdownError = nil
	r.readyAfter = time.Since(started)
	r.mu.Unlock()

	logging.Info(receiverSubsystem, "Receiver listening on port %d (ready after %s)", port, r.readyAfter)
	return r.BaseURL(), nil
}

// listen binds the port, retrying with exponential backoff when configured.
func (r *Receiver) listen(ctx context.Context, port int) (net.Listener, error) {
	addr := net.JoinHostPort(r.cfg.BindAddress, strconv.Itoa(port))
	bind := func() (net.Listener, error) {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			logging.Debug(receiverSubsystem, "Bind to %s failed: %v", addr, err)
			return nil, err
		}
		return ln, nil
	}

	if r.cfg.BindRetries <= 0 {
		return bind()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BindRetryInterval
	return backoff.Retry(ctx, bind,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.cfg.BindRetries+1)),
	)
}

// RegisterEndpoint makes path accept deliveries and returns the externally
// reachable URL for it. The receiver must be running.
func (r *Receiver) RegisterEndpoint(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return "", ErrReceiverNotRunning
	}

	path = normalizePath(path)
	r.paths[path] = struct{}{}
	return r.baseURLLocked() + path, nil
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (r *Receiver) isRegistered(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.paths[path]
	return ok
}

// handleDelivery records any request that arrives on a registered path.
func (r *Receiver) handleDelivery(w http.ResponseWriter, req *http.Request) {
	if !r.isRegistered(req.URL.Path) {
		r.rejected.WithLabelValues("unregistered_path").Inc()
		http.NotFound(w, req)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.rejected.WithLabelValues("body_too_large").Inc()
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.rejected.WithLabelValues("read_error").Inc()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d := r.recordDelivery(req.Method, req.URL.Path, req.Header.Clone(), body)
	logging.Debug(receiverSubsystem, "Recorded delivery #%d (%d bytes) on %s %s", d.Sequence, len(body), req.Method, req.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"received"}`))
}

// recordDelivery appends a delivery with the next sequence number. The body
// is stored as-is; parsing is the matcher's job.
func (r *Receiver) recordDelivery(method, path string, headers http.Header, body []byte) Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	d := Delivery{
		Sequence:   r.nextSeq,
		ID:         uuid.NewString(),
		Method:     method,
		Path:       path,
		Headers:    headers,
		Body:       body,
		ReceivedAt: r.cfg.Clock.Now(),
	}
	r.deliveries = append(r.deliveries, d)
	r.recorded.Inc()

	close(r.changed)
	r.changed = make(chan struct{})
	return d
}

// OrderedDeliveries returns a snapshot of the delivery log, oldest first.
// Deliveries recorded after the call are not included.
func (r *Receiver) OrderedDeliveries() []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// DeliveryCount returns the number of deliveries recorded so far.
func (r *Receiver) DeliveryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.deliveries)
}

// WaitForDeliveries blocks until at least n deliveries have been recorded or
// ctx is done.
func (r *Receiver) WaitForDeliveries(ctx context.Context, n int) error {
	for {
		r.mu.RLock()
		count, changed := len(r.deliveries), r.changed
		r.mu.RUnlock()

		if count >= n {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("received %d of %d expected deliveries: %w", count, n, ctx.Err())
		case <-changed:
		}
	}
}

// Stop gracefully shuts down the HTTP server. It is a no-op when the
// receiver never started or is already stopped. Recorded deliveries are kept.
func (r *Receiver) Stop(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	httpServer, port := r.httpServer, r.port
	r.running = false
	r.httpServer = nil
	r.listener = nil
	r.mu.Unlock()

	shutdownCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		// Force close if graceful shutdown fails
		closeErr := httpServer.Close()
		logging.Warn(receiverSubsystem, "Force closed receiver on port %d: %v", port, err)
		if closeErr != nil {
			return fmt.Errorf("failed to close receiver on port %d: %w", port, closeErr)
		}
	}

	logging.Info(receiverSubsystem, "Receiver on port %d stopped", port)
	return nil
}

// Port returns the port the receiver was last started on.
func (r *Receiver) Port() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.port
}

// IsRunning returns whether the receiver is currently serving.
func (r *Receiver) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// BaseURL returns scheme://host:port, or "" when the receiver is not running.
func (r *Receiver) BaseURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.running {
		return ""
	}
	return r.baseURLLocked()
}

func (r *Receiver) baseURLLocked() string {
	return fmt.Sprintf("%s://%s", r.cfg.Scheme, net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.port)))
}

// GetError returns the error that ended the serve loop, if it died before
// Stop.
func (r *Receiver) GetError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shutdownError
}

// Registry exposes the receiver's prometheus metrics.
func (r *Receiver) Registry() *prometheus.Registry {
	return r.registry
}
