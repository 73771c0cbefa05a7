// Package mailer builds and delivers the outgoing email for contact messages
// and newsletter subscriptions.
package mailer

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no provider credentials are present.
	ErrNotConfigured = errors.New("mailer is not configured")
	// ErrRejected is returned when the provider refused to accept an email.
	ErrRejected = errors.New("email rejected by provider")
)

type Email struct {
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Result is what the provider reported for an accepted email.
type Result struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, email *Email) (*Result, error)
}
