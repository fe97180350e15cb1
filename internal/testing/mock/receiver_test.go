package mock

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort asks the kernel for an unused port and releases it.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func startReceiver(t *testing.T, cfg ReceiverConfig) *Receiver {
	t.Helper()
	r := NewReceiver(cfg)
	_, err := r.Start(context.Background(), freePort(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop(context.Background()) })
	return r
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestReceiver_StartStop(t *testing.T) {
	r := NewReceiver(ReceiverConfig{})
	ctx := context.Background()
	port := freePort(t)

	baseURL, err := r.Start(ctx, port)
	require.NoError(t, err)
	assert.Equal(t, r.BaseURL(), baseURL)
	assert.True(t, r.IsRunning())
	assert.Equal(t, port, r.Port())

	// Start returns only once connections are accepted
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	require.NoError(t, err)
	conn.Close()

	// Starting again on the same port is a no-op
	again, err := r.Start(ctx, port)
	require.NoError(t, err)
	assert.Equal(t, baseURL, again)

	require.NoError(t, r.Stop(ctx))
	assert.False(t, r.IsRunning())
	assert.Empty(t, r.BaseURL())

	// Stop is idempotent
	require.NoError(t, r.Stop(ctx))
}

func TestReceiver_ServeFailureIsRecorded(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	assert.NoError(t, r.GetError())

	// Pull the listener out from under the serve loop
	r.mu.RLock()
	ln := r.listener
	r.mu.RUnlock()
	require.NoError(t, ln.Close())

	assert.Eventually(t, func() bool { return r.GetError() != nil }, 5*time.Second, 10*time.Millisecond)
}

func TestReceiver_StopNeverStarted(t *testing.T) {
	r := NewReceiver(ReceiverConfig{})
	assert.NoError(t, r.Stop(context.Background()))
}

func TestReceiver_RegisterEndpointRequiresStart(t *testing.T) {
	r := NewReceiver(ReceiverConfig{})
	_, err := r.RegisterEndpoint("/hooks")
	assert.ErrorIs(t, err, ErrReceiverNotRunning)
}

func TestReceiver_RegisterEndpointURL(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{Host: "receiver.test", Scheme: "https"})

	url, err := r.RegisterEndpoint("hooks/login")
	require.NoError(t, err)
	assert.Equal(t, r.BaseURL()+"/hooks/login", url)
	assert.True(t, strings.HasPrefix(url, "https://receiver.test:"))
}

func TestReceiver_RecordsDeliveriesInOrder(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	bodies := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	for _, b := range bodies {
		resp := post(t, url, b)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"received"}`, string(got))
	}

	deliveries := r.OrderedDeliveries()
	require.Len(t, deliveries, 3)
	for i, d := range deliveries {
		assert.Equal(t, uint64(i+1), d.Sequence)
		assert.Equal(t, bodies[i], d.BodyString())
		assert.Equal(t, http.MethodPost, d.Method)
		assert.Equal(t, "/events", d.Path)
		assert.Equal(t, "application/json", d.Headers.Get("Content-Type"))
		assert.NotEmpty(t, d.ID)
	}
	assert.NotEqual(t, deliveries[0].ID, deliveries[1].ID)
}

func TestReceiver_RecordsMalformedBody(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	resp := post(t, url, `{not json`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	deliveries := r.OrderedDeliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, `{not json`, deliveries[0].BodyString())
}

func TestReceiver_AcceptsAnyMethod(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, r.DeliveryCount())
	assert.Equal(t, http.MethodPut, r.OrderedDeliveries()[0].Method)
}

func TestReceiver_UnregisteredPath(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	_, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	resp := post(t, r.BaseURL()+"/elsewhere", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, r.DeliveryCount())
}

func TestReceiver_BodyTooLarge(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{MaxBodyBytes: 8})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	resp := post(t, url, `{"too":"large"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Zero(t, r.DeliveryCount())
}

func TestReceiver_MockClockStampsDeliveries(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	r := startReceiver(t, ReceiverConfig{Clock: clock})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	post(t, url, `{}`)
	clock.Advance(time.Minute)
	post(t, url, `{}`)

	deliveries := r.OrderedDeliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, start, deliveries[0].ReceivedAt)
	assert.Equal(t, start.Add(time.Minute), deliveries[1].ReceivedAt)
}

func TestReceiver_SteppingClockOrdersStamps(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := startReceiver(t, ReceiverConfig{Clock: NewSteppingClock(start, time.Millisecond)})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		post(t, url, `{}`)
	}

	deliveries := r.OrderedDeliveries()
	require.Len(t, deliveries, 3)
	for i, d := range deliveries {
		assert.Equal(t, start.Add(time.Duration(i)*time.Millisecond), d.ReceivedAt)
	}
}

func TestReceiver_SnapshotIsStable(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	post(t, url, `{"n":1}`)
	snapshot := r.OrderedDeliveries()
	post(t, url, `{"n":2}`)

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, r.DeliveryCount())
}

func TestReceiver_DeliveriesSurviveStop(t *testing.T) {
	r := NewReceiver(ReceiverConfig{})
	ctx := context.Background()
	_, err := r.Start(ctx, freePort(t))
	require.NoError(t, err)
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	post(t, url, `{}`)
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, 1, r.DeliveryCount())
}

func TestReceiver_WaitForDeliveries(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		resp, err := http.Post(url, "application/json", strings.NewReader(`{}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.WaitForDeliveries(ctx, 1))
}

func TestReceiver_WaitForDeliveriesTimeout(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.WaitForDeliveries(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "received 0 of 1")
}

func TestReceiver_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	r := NewReceiver(ReceiverConfig{BindRetries: 2, BindRetryInterval: 10 * time.Millisecond})
	_, err = r.Start(context.Background(), port)
	require.Error(t, err)

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, port, bindErr.Port)
	assert.False(t, r.IsRunning())
}

func TestReceiver_Metrics(t *testing.T) {
	r := startReceiver(t, ReceiverConfig{MetricsPath: "/metrics"})
	url, err := r.RegisterEndpoint("/events")
	require.NoError(t, err)

	post(t, url, `{}`)
	post(t, r.BaseURL()+"/unknown", `{}`)

	resp, err := http.Get(r.BaseURL() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "hookcheck_receiver_deliveries_total 1")
	assert.Contains(t, string(body), `hookcheck_receiver_rejected_total{reason="unregistered_path"} 1`)
	// The metrics endpoint itself is never recorded
	assert.Equal(t, 1, r.DeliveryCount())
}
