package client

import (
	"encoding/json"
	"net/http"
)

// WebhookStatus is the activation state of a webhook subscription.
type WebhookStatus string

const (
	StatusActive   WebhookStatus = "ACTIVE"
	StatusInactive WebhookStatus = "INACTIVE"
)

// EventProfile names the event catalogue a webhook subscribes to.
type EventProfile struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// WebhookRequest is the body of a webhook creation call.
type WebhookRequest struct {
	Name               string        `json:"name"`
	Endpoint           string        `json:"endpoint"`
	Secret             string        `json:"secret,omitempty"`
	Status             WebhookStatus `json:"status"`
	EventProfile       EventProfile  `json:"eventProfile"`
	ChannelsSubscribed []string      `json:"channelsSubscribed"`
}

// SubscribedChannel reports the subscription state of one channel.
type SubscribedChannel struct {
	ChannelURI string `json:"channelUri"`
	Status     string `json:"status,omitempty"`
}

// WebhookResponse is the webhook resource returned by the platform.
type WebhookResponse struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name,omitempty"`
	Endpoint           string              `json:"endpoint,omitempty"`
	Status             WebhookStatus       `json:"status,omitempty"`
	EventProfile       EventProfile        `json:"eventProfile,omitempty"`
	ChannelsSubscribed []SubscribedChannel `json:"channelsSubscribed,omitempty"`
	CreatedAt          string              `json:"createdAt,omitempty"`
	UpdatedAt          string              `json:"updatedAt,omitempty"`
}

// Response is the raw result of a generic API call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into a generic value, or returns nil for an empty
// or non-JSON body.
func (r *Response) JSON() interface{} {
	if len(r.Body) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil
	}
	return v
}
