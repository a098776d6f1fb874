// Package transport wraps outbound mail delivery behind a single Mailer
// boundary: a structured send request in, an accepted result with a
// provider-assigned identifier or an error out. Any provider with "accept
// JSON, return id or error" semantics fits behind it.
package transport

import "context"

// EmailAddress is a bare address plus optional display name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// SendRequest is one transmission to one or more recipients.
type SendRequest struct {
	From        EmailAddress
	To          []EmailAddress
	Subject     string
	HTMLBody    string
	TrackOpens  bool
	TrackClicks bool
}

// SendResult reports an accepted transmission.
type SendResult struct {
	RequestID   string
	RawResponse string
}

// Mailer delivers one send request. An error return is a hard failure for
// this transmission; no retry is attempted at this layer.
type Mailer interface {
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
}
