package httpserver

import "drift/internal/config"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse carries an error message to the host UI.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FeedConfigRequest is the PUT /config/feed body; it mirrors the persisted
// record shape.
type FeedConfigRequest struct {
	Source config.Source `json:"source"`
	URL    string        `json:"url,omitempty"`
	Owner  string        `json:"owner,omitempty"`
	Repo   string        `json:"repo,omitempty"`
}

// ChannelRequest is the PUT /config/channel body.
type ChannelRequest struct {
	Channel config.Channel `json:"channel"`
}

// ChannelResponse is returned by channel reads and writes.
type ChannelResponse struct {
	Channel config.Channel `json:"channel"`
}

// AcceptedResponse acknowledges an operation that continues asynchronously.
type AcceptedResponse struct {
	Status string `json:"status"`
}
