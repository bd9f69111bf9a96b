// Package mail sends rendered notification emails.
package mail

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrThrottled marks a provider rejection due to send-rate limits.
var ErrThrottled = errors.New("mail provider throttled the request")

// Message is one rendered email to one recipient.
type Message struct {
	To             string
	Subject        string
	HTML           string
	Text           string
	Kind           string
	IdempotencyKey string
}

// Transport delivers a message and returns the provider's message id.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogTransport logs messages instead of sending them (dry-run mode).
type LogTransport struct {
	log *zerolog.Logger
}

// NewLogTransport creates a dry-run transport.
func NewLogTransport(log *zerolog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

// Send logs the envelope and always succeeds.
func (t *LogTransport) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "dry-run-" + uuid.NewString()
	t.log.Info().
		Str("provider_id", id).
		Str("recipient", msg.To).
		Str("subject", msg.Subject).
		Str("kind", msg.Kind).
		Str("idempotency_key", msg.IdempotencyKey).
		Int("html_bytes", len(msg.HTML)).
		Msg("email not sent (dry run)")
	return id, nil
}
