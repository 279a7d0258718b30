// Package services – Notifier
//
// The Notifier contract decouples the core from the messaging transport.
// Core operations treat delivery as best-effort: a failed send is logged and
// swallowed by the caller, never rolled into the durable operation's outcome.
package services

import "context"

// Notifier delivers a text message to a user over the messaging transport.
//
// Implementations should be safe for concurrent use. A returned error means
// delivery failed (for example the user never started a conversation with the
// bot); callers log it and move on.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// NopNotifier discards every message. Used in tests and when the transport
// is not configured.
type NopNotifier struct{}

// Send implements Notifier by doing nothing.
func (NopNotifier) Send(context.Context, int64, string) error { return nil }
