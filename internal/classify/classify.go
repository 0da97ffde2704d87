/*
Package classify turns raw failures into short, user-safe messages and a
fatal/retryable disposition. Classification is a strict priority list, not a
fallback chain: timeouts first, then the canonical-message table, then
inference-prefix stripping, then truncation. It is pure and total; it never
returns an error or panics.
*/
package classify

import (
	"context"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/contentreview/pkg/models"
)

// InferencePrefix tags error messages that originate from the inference
// adapter. Rule 3 strips it before the message is shown to a user.
const InferencePrefix = "inference error: "

// maxUserMessage caps what end users are ever shown.
const maxUserMessage = 100

// TimeoutMessage is the constant label for rule 1.
const TimeoutMessage = "The review timed out. Please try again."

var timeoutPhrases = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
}

// rule is one row of the canonical-message table. A row matches when any of
// its keywords appears in the lowercased error text; the first matching row
// wins, so ordering is load-bearing.
type rule struct {
	keywords    []string
	message     string
	disposition string
}

var rules = []rule{
	{
		keywords:    []string{"blocked", "guardrail", "safety filter", "content filter"},
		message:     "The content could not be reviewed because it was flagged by safety filters.",
		disposition: models.DispositionFatal,
	},
	{
		keywords:    []string{"quota", "rate limit", "too many requests", "throttl"},
		message:     "The review service is busy right now. Please try again in a few minutes.",
		disposition: models.DispositionRetryable,
	},
	{
		keywords:    []string{"unavailable", "connection refused", "connection reset", "no such host"},
		message:     "The review service is temporarily unavailable. Please try again later.",
		disposition: models.DispositionRetryable,
	},
	{
		keywords:    []string{"access denied", "accessdenied", "forbidden", "not authorized"},
		message:     "We don't have permission to complete this review. Please contact support.",
		disposition: models.DispositionFatal,
	},
	{
		keywords:    []string{"not found", "notfound", "no such key", "does not exist"},
		message:     "The content to review could not be found.",
		disposition: models.DispositionFatal,
	},
	{
		keywords:    []string{"credential", "api key", "unauthorized", "authentication"},
		message:     "The review service rejected our credentials. Please contact support.",
		disposition: models.DispositionFatal,
	},
	{
		keywords:    []string{"validation", "invalid request", "malformed"},
		message:     "The request was invalid and could not be reviewed.",
		disposition: models.DispositionFatal,
	},
}

// Message returns the user-safe message for err.
func Message(err error) string {
	msg, _ := classify(err)
	return msg
}

// Disposition returns "fatal" or "retryable" for err.
func Disposition(err error) string {
	_, disposition := classify(err)
	return disposition
}

// Record builds the full ErrorRecord for err, keeping the original technical
// message for logs.
func Record(err error) models.ErrorRecord {
	msg, disposition := classify(err)
	original := ""
	if err != nil {
		original = err.Error()
	}
	return models.ErrorRecord{
		UserMessage:     msg,
		Disposition:     disposition,
		OriginalMessage: original,
	}
}

func classify(err error) (string, string) {
	if err == nil {
		return "", models.DispositionRetryable
	}
	raw := err.Error()
	lower := strings.ToLower(raw)

	// Rule 1: timeouts, by error identity or by phrase.
	if isTimeout(err) || containsAny(lower, timeoutPhrases) {
		return TimeoutMessage, models.DispositionRetryable
	}

	// Rule 2: first matching table row wins.
	for _, r := range rules {
		if containsAny(lower, r.keywords) {
			return r.message, r.disposition
		}
	}

	// Rule 3: inference-adapter messages lose their prefix and get truncated.
	if strings.HasPrefix(raw, InferencePrefix) {
		msg := strings.TrimPrefix(raw, InferencePrefix)
		return truncate(msg, maxUserMessage), models.DispositionRetryable
	}

	// Rule 4: anything else over the cap is truncated with an ellipsis.
	if len(raw) > maxUserMessage {
		return truncate(raw, maxUserMessage-3) + "...", models.DispositionRetryable
	}

	// Rule 5: pass through unchanged.
	return raw, models.DispositionRetryable
}

// truncate caps s at limit bytes without splitting a multi-byte rune, so the
// user-facing message stays valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
