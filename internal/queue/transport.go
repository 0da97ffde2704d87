// Package queue contains the worker loop that drives review processing and
// the Postgres-backed transport it polls. A received message is leased for a
// visibility window; it is deleted once the review completed or failed
// fatally with the outcome durably recorded, and otherwise becomes visible
// again for another worker so retryable failures get another attempt.
package queue

import (
	"context"
	"strings"
)

// Message is one leased queue message. Receipt identifies the lease for
// deletion; Body is the raw JSON payload.
type Message struct {
	Receipt      string
	Body         []byte
	ReceiveCount int
}

// Transport is the queue the worker polls. Receive leases up to max messages
// for the transport's visibility window.
type Transport interface {
	Send(ctx context.Context, body []byte) error
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, receipt string) error
}

// criticalPhrases identify transport failures that retrying cannot fix: the
// worker loop must stop rather than spin on them.
var criticalPhrases = []string{
	"nonexistentqueue",
	"queue does not exist",
	"does not exist",
	"access denied",
	"accessdenied",
	"permission denied",
	"forbidden",
	"invalid credentials",
	"authentication failed",
}

// IsCritical reports whether a transport error should stop the worker loop.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range criticalPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
