// Package client provides access to the management REST API of the identity
// platform under test.
//
// Only the calls hookcheck needs are modelled: webhook subscriptions are
// created and deleted through CreateWebhook and DeleteWebhook, and scenario
// triggers use the generic Do call. Every request goes to the tenant
// qualified base {base_url}/t/{tenant}/api/server/v1 unless an absolute URL
// is given.
//
// Requests are sent through a retrying HTTP client with bounded retries for
// connection errors and 5xx answers. Authentication is either HTTP basic
// with the admin credentials or a bearer token obtained with the OAuth2
// client credentials grant.
//
//	cfg, _ := config.LoadConfig(path)
//	c, err := client.New(cfg)
//	if err != nil {
//		return err
//	}
//	hook, err := c.CreateWebhook(ctx, client.WebhookRequest{...})
//
// Unexpected statuses are reported as *APIError.
package client
