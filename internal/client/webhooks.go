package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"hookcheck/pkg/logging"
)

const webhooksPath = "webhooks"

// CreateWebhook registers a webhook subscription. The platform answers 201
// with the created resource.
func (c *Client) CreateWebhook(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	resp, err := c.Do(ctx, http.MethodPost, webhooksPath, req)
	if err != nil {
		return nil, fmt.Errorf("create webhook %q: %w", req.Name, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, newAPIError("create webhook", resp)
	}

	var created WebhookResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created webhook: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create webhook %q: response carries no id", req.Name)
	}

	logging.Debug("Client", "Created webhook %s (%s) for endpoint %s", created.ID, req.Name, req.Endpoint)
	return &created, nil
}

// DeleteWebhook removes a webhook subscription. A subscription that no
// longer exists counts as deleted.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete webhook: empty id")
	}

	resp, err := c.Do(ctx, http.MethodDelete, webhooksPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("delete webhook %s: %w", id, err)
	}

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		logging.Debug("Client", "Webhook %s already deleted", id)
		return nil
	default:
		return newAPIError("delete webhook "+id, resp)
	}
}
