package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hookcheck/internal/client"
	"hookcheck/internal/config"
	"hookcheck/internal/testing/mock"
	"hookcheck/pkg/logging"

	"github.com/google/uuid"
)

const managerSubsystem = "EventManager"

// DefaultEventProfileURIs maps well-known event profile names to their URIs.
func DefaultEventProfileURIs() map[string]string {
	return map[string]string{config.DefaultEventProfile: config.DefaultEventProfileURI}
}

// ManagerState is the lifecycle state of an EventTestManager.
type ManagerState int

const (
	StateUninitialized ManagerState = iota
	StateProvisioning
	StateActive
	StateTornDown
)

func (s ManagerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProvisioning:
		return "provisioning"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// WebhookClient is the part of the identity platform API the manager needs.
type WebhookClient interface {
	CreateWebhook(ctx context.Context, req client.WebhookRequest) (*client.WebhookResponse, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// SubscriptionSpec describes the webhook subscription a test needs.
type SubscriptionSpec struct {
	// EndpointPath is the receiver path deliveries are pushed to
	EndpointPath string
	// EventProfile is the event catalogue name, for example "WSO2"
	EventProfile string
	// Channels are the event channels to subscribe to
	Channels []string
	// TestName is used as the subscription name
	TestName string
}

// Environment carries the collaborators and settings shared by managers.
type Environment struct {
	Client WebhookClient
	Ports  *PortAllocator
	// Receiver configures the receiver each manager starts
	Receiver mock.ReceiverConfig
	// EventProfileURIs resolves EventProfile names; profiles not listed are
	// subscribed without a URI
	EventProfileURIs map[string]string
	// Secret signs deliveries; a random one is generated when empty
	Secret string
	// SettleDelay is an optional pause between the receiver becoming ready
	// and the subscription being created
	SettleDelay time.Duration
}

// Cleanuper is satisfied by *testing.T and *testing.B.
type Cleanuper interface {
	Cleanup(func())
	Logf(format string, args ...any)
}

// EventTestManager provisions a receiver and a webhook subscription for one
// test, collects expected payloads and validates them against what the
// identity platform delivered. One manager belongs to one test and is not
// safe for concurrent pushes or validations.
type EventTestManager struct {
	spec    SubscriptionSpec
	env     Environment
	matcher *Matcher

	mu           sync.Mutex
	state        ManagerState
	receiver     *mock.Receiver
	port         int
	endpoint     string
	webhookID    string
	expectations *ExpectationStack
}

// NewEventTestManager provisions the receiver and subscription. On failure
// everything acquired so far is released and a *ProvisioningError is
// returned.
func NewEventTestManager(ctx context.Context, spec SubscriptionSpec, env Environment) (*EventTestManager, error) {
	if env.Client == nil {
		return nil, &ProvisioningError{Stage: StageSubscribe, Err: errors.New("no webhook client configured")}
	}
	if env.Ports == nil {
		return nil, &ProvisioningError{Stage: StageAllocate, Err: errors.New("no port allocator configured")}
	}
	if env.EventProfileURIs == nil {
		env.EventProfileURIs = DefaultEventProfileURIs()
	}
	if env.Secret == "" {
		env.Secret = uuid.NewString()
	}

	m := &EventTestManager{
		spec:         spec,
		env:          env,
		matcher:      NewMatcher(),
		state:        StateUninitialized,
		expectations: NewExpectationStack(),
	}

	if err := m.provision(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EventTestManager) provision(ctx context.Context) error {
	m.state = StateProvisioning

	m.receiver = mock.NewReceiver(m.env.Receiver)

	fail := func(stage string, err error) error {
		if stopErr := m.receiver.Stop(context.Background()); stopErr != nil {
			logging.Error(managerSubsystem, stopErr, "Failed to stop receiver on port %d after provisioning failure", m.port)
		}
		m.state = StateTornDown
		return &ProvisioningError{Stage: stage, Port: m.port, Err: err}
	}

	if err := m.bind(ctx); err != nil {
		logging.Error(managerSubsystem, err, "Failed to start the mock receiver on port %d", m.port)
		return fail(StageBind, err)
	}

	endpoint, err := m.receiver.RegisterEndpoint(m.spec.EndpointPath)
	if err != nil {
		return fail(StageRegister, err)
	}
	m.endpoint = endpoint
	logging.Info(managerSubsystem, "Webhook endpoint registered at %s", endpoint)

	if m.env.SettleDelay > 0 {
		timer := time.NewTimer(m.env.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fail(StageSettle, ctx.Err())
		case <-timer.C:
		}
	}

	resp, err := m.env.Client.CreateWebhook(ctx, m.webhookRequest())
	if err != nil {
		if client.IsUnauthorized(err) {
			err = fmt.Errorf("%w (check the credentials in the auth section of the config)", err)
		}
		return fail(StageSubscribe, err)
	}
	if resp == nil || resp.ID == "" {
		return fail(StageSubscribe, errors.New("webhook created without an id"))
	}
	m.webhookID = resp.ID

	m.state = StateActive
	logging.Info(managerSubsystem, "Webhook %s subscribed for test %q on channels %v", m.webhookID, m.spec.TestName, m.spec.Channels)
	return nil
}

// bind starts the receiver on the next port of the range that can be bound.
// Ports still held by other receivers are skipped, for at most one lap of
// the range.
func (m *EventTestManager) bind(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < m.env.Ports.Size(); attempt++ {
		m.port = m.env.Ports.Next()
		if _, err = m.receiver.Start(ctx, m.port); err == nil {
			return nil
		}
		var bindErr *mock.BindError
		if !errors.As(err, &bindErr) {
			return err
		}
		logging.Debug(managerSubsystem, "Port %d is busy, trying the next one", m.port)
	}
	return err
}

func (m *EventTestManager) webhookRequest() client.WebhookRequest {
	channels := make([]string, len(m.spec.Channels))
	copy(channels, m.spec.Channels)

	return client.WebhookRequest{
		Name:     m.spec.TestName,
		Endpoint: m.endpoint,
		Secret:   m.env.Secret,
		Status:   client.StatusActive,
		EventProfile: client.EventProfile{
			Name: m.spec.EventProfile,
			URI:  m.env.EventProfileURIs[m.spec.EventProfile],
		},
		ChannelsSubscribed: channels,
	}
}

// StackExpectedPayload declares that a delivery carrying eventURI with at
// least the fields of payload must arrive. The payload is normalized through
// JSON so that it compares like a decoded delivery.
func (m *EventTestManager) StackExpectedPayload(eventURI string, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return fmt.Errorf("cannot stack payload for %s in state %s: %w", eventURI, m.state, ErrManagerNotActive)
	}
	if eventURI == "" {
		return errors.New("event URI is required")
	}

	normalized, err := NormalizePayload(payload)
	if err != nil {
		return fmt.Errorf("invalid expected payload for %s: %w", eventURI, err)
	}
	m.expectations.Push(eventURI, normalized)
	return nil
}

// StackExpectedJSON is StackExpectedPayload for a raw JSON object.
func (m *EventTestManager) StackExpectedJSON(eventURI string, raw []byte) error {
	payload, err := decodePayload(raw)
	if err != nil {
		return fmt.Errorf("invalid expected payload for %s: %w", eventURI, err)
	}
	return m.StackExpectedPayload(eventURI, payload)
}

// ValidateEventPayloads drains the expectation stack against the deliveries
// received so far. Expectations whose event type never arrived are collected
// and the pass continues; a field mismatch stops the pass. The returned
// error is a *ValidationError wrapping ErrAssertionFailed, or nil. It does
// not wait for deliveries.
func (m *EventTestManager) ValidateEventPayloads() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return fmt.Errorf("cannot validate in state %s: %w", m.state, ErrManagerNotActive)
	}

	pool := newCandidatePool(m.receiver.OrderedDeliveries())
	var failures []error
	dropped := 0

	for {
		exp, ok := m.expectations.PopOldest()
		if !ok {
			break
		}

		res := m.matcher.Match(pool, exp)
		switch res.Outcome {
		case Matched:
			logging.Debug(managerSubsystem, "Event %s matched delivery #%d", exp.EventURI, res.Delivery.Sequence)
			continue
		case TypeNotFound:
			failures = append(failures, res.Err())
			continue
		}

		failures = append(failures, res.Err())
		dropped = m.expectations.Len()
		m.expectations.Clear()
		break
	}

	if len(failures) == 0 {
		return nil
	}
	err := &ValidationError{Failures: failures, Dropped: dropped}
	logging.Warn(managerSubsystem, "Webhook validation for %q failed: %v", m.spec.TestName, err)
	return err
}

// Teardown stops the receiver, deletes the subscription and clears pending
// expectations. It is safe to call more than once; only the first call does
// any work. Errors are logged and returned joined.
func (m *EventTestManager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateTornDown {
		return nil
	}
	m.state = StateTornDown

	var errs []error
	if m.receiver != nil {
		if err := m.receiver.GetError(); err != nil {
			errs = append(errs, fmt.Errorf("receiver on port %d stopped serving: %w", m.port, err))
		}
		if err := m.receiver.Stop(ctx); err != nil {
			logging.Error(managerSubsystem, err, "Failed to stop receiver on port %d", m.port)
			errs = append(errs, fmt.Errorf("stop receiver: %w", err))
		}
	}

	if m.webhookID != "" {
		id := m.webhookID
		m.webhookID = ""
		if err := m.env.Client.DeleteWebhook(ctx, id); err != nil {
			logging.Error(managerSubsystem, err, "Failed to delete webhook %s", id)
			errs = append(errs, fmt.Errorf("delete webhook %s: %w", id, err))
		} else {
			logging.Info(managerSubsystem, "Webhook %s deleted", id)
		}
	}

	m.expectations.Clear()
	return errors.Join(errs...)
}

// CleanupWith registers Teardown on t's cleanup phase. Teardown errors are
// logged and never fail the test, so they cannot mask its original failure.
func (m *EventTestManager) CleanupWith(t Cleanuper) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.Teardown(ctx); err != nil {
			t.Logf("webhook teardown failed: %v", err)
		}
	})
}

// State returns the current lifecycle state.
func (m *EventTestManager) State() ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Endpoint returns the URL the subscription points at.
func (m *EventTestManager) Endpoint() string {
	return m.endpoint
}

// WebhookID returns the subscription id, or "" once torn down.
func (m *EventTestManager) WebhookID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webhookID
}

// Port returns the receiver port.
func (m *EventTestManager) Port() int {
	return m.port
}

// Receiver exposes the underlying receiver, for example to await deliveries.
func (m *EventTestManager) Receiver() *mock.Receiver {
	return m.receiver
}

// Pending returns the number of expectations awaiting validation.
func (m *EventTestManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expectations.Len()
}

// Deliveries returns the received deliveries with their bodies decoded where
// possible, for reports and debugging.
func (m *EventTestManager) Deliveries() []json.RawMessage {
	deliveries := m.receiver.OrderedDeliveries()
	out := make([]json.RawMessage, 0, len(deliveries))
	for _, d := range deliveries {
		if json.Valid(d.Body) {
			out = append(out, json.RawMessage(d.Body))
			continue
		}
		quoted, _ := json.Marshal(d.BodyString())
		out = append(out, quoted)
	}
	return out
}
