// Package mock provides the webhook delivery receiver used by hookcheck tests.
//
// A Receiver is a small HTTP server that stands in for a webhook consumer.
// The identity platform under test pushes event deliveries to it; the
// receiver records every request made to a registered path, in arrival order,
// without interpreting the body. Interpretation is left to the matcher in
// the parent testing package.
//
// Key Components:
//
// Receiver: binds to a port handed out by the port allocator, confirms the
// serve loop is running before returning from Start, and exposes an
// append-only delivery log through OrderedDeliveries.
//
// Delivery: an immutable record of one accepted request, carrying a
// per-receiver sequence number, a unique ID, headers and the raw body.
//
// Clock: time source used to stamp deliveries. MockClock makes ReceivedAt
// values deterministic in tests.
//
// Usage:
//
//	r := mock.NewReceiver(mock.ReceiverConfig{})
//	if _, err := r.Start(ctx, 8580); err != nil {
//		return err
//	}
//	defer r.Stop(ctx)
//
//	url, err := r.RegisterEndpoint("/webhooks/login")
//	// subscribe url with the identity platform, trigger an action ...
//	err = r.WaitForDeliveries(ctx, 1)
//	for _, d := range r.OrderedDeliveries() {
//		fmt.Println(d.Sequence, d.BodyString())
//	}
//
// Requests to paths that were never registered are answered with 404 and are
// not recorded. Bodies larger than ReceiverConfig.MaxBodyBytes are refused
// with 413. Receiver counters are available through Registry, and are served
// over HTTP when ReceiverConfig.MetricsPath is set.
package mock
