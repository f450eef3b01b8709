// Package sms defines the Provider interface for outbound text messages to
// passengers.
package sms

import (
	"context"
	"errors"
)

// ErrDisabled is returned by providers that are configured but switched off.
var ErrDisabled = errors.New("sms: sending disabled")

// Message is one outbound SMS.
type Message struct {
	To   string
	Body string
}

// Receipt acknowledges an accepted message.
type Receipt struct {
	// ID is the provider's message identifier.
	ID string

	// Status is the provider's initial delivery state, e.g. "queued".
	Status string
}

// Provider sends SMS messages. Implementations must be safe for concurrent use.
type Provider interface {
	// Send submits msg for delivery. A nil error means the provider accepted
	// the message, not that it was delivered.
	Send(ctx context.Context, msg Message) (*Receipt, error)
}
