// Package push delivers notifications to registered device tokens.
package push

import "context"

// Notification is one message addressed to every token of a single user.
type Notification struct {
	UserID string            `json:"user_id"`
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// TokenFailure records a token the push service rejected.
type TokenFailure struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Report summarises one dispatch. Queued is set when delivery was deferred
// to the push worker and per-token outcomes are not yet known.
type Report struct {
	Sent     int            `json:"sent"`
	Failures []TokenFailure `json:"failures,omitempty"`
	Queued   bool           `json:"queued,omitempty"`
}

// Dispatcher hands a notification to the push service. A non-nil error means
// nothing was delivered; individual token rejections are in the report.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) (Report, error)
}
