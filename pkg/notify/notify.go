// Package notify delivers client secret rotation events.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// EventTypeRotated is the type of the event emitted after a new secret has
// been persisted.
const EventTypeRotated = "client_secret.rotated"

// Event describes a completed rotation. It never carries the secret itself.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Reason     string    `json:"reason"`
	Decision   string    `json:"decision"`
	Store      string    `json:"store"`
	TeamID     string    `json:"teamId"`
	ClientID   string    `json:"clientId"`
	KeyID      string    `json:"keyId"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`

	// PreviousExpiresAt is unset when there was no decodable previous secret.
	PreviousExpiresAt *time.Time `json:"previousExpiresAt,omitempty"`
}

// Notifier publishes rotation events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Log writes events to a structured logger.
type Log struct {
	logger *slog.Logger
}

// Ensure Log implements Notifier interface.
var _ Notifier = (*Log)(nil)

// NewLog creates a logging Notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs the event.
func (l *Log) Notify(_ context.Context, event Event) error {
	l.logger.Info("Client secret rotation event",
		"id", event.ID,
		"type", event.Type,
		"reason", event.Reason,
		"decision", event.Decision,
		"store", event.Store,
		"clientId", event.ClientID,
		"keyId", event.KeyID,
		"expiresAt", event.ExpiresAt.UTC().Format(time.RFC3339),
	)
	return nil
}

// Multi fans an event out to several notifiers. Every notifier is called;
// the returned error joins all failures.
type Multi []Notifier

// Ensure Multi implements Notifier interface.
var _ Notifier = Multi(nil)

// Notify calls every notifier in order.
func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
