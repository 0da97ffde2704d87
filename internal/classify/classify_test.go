package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/contentreview/pkg/models"
)

func TestTimeoutByIdentity(t *testing.T) {
	wrapped := fmt.Errorf("calling model: %w", context.DeadlineExceeded)

	assert.Equal(t, TimeoutMessage, Message(wrapped))
	assert.Equal(t, models.DispositionRetryable, Disposition(wrapped))
}

func TestTimeoutByPhraseBeatsTable(t *testing.T) {
	// Rule ordering: a timeout phrase wins even when table keywords are
	// present in the same message.
	err := errors.New("request timed out waiting for rate limit slot")

	assert.Equal(t, TimeoutMessage, Message(err))
}

func TestCanonicalTableRows(t *testing.T) {
	cases := []struct {
		raw         string
		want        string
		disposition string
	}{
		{"ThrottlingException: rate limit exceeded", "The review service is busy right now. Please try again in a few minutes.", models.DispositionRetryable},
		{"dial tcp: connection refused", "The review service is temporarily unavailable. Please try again later.", models.DispositionRetryable},
		{"AccessDenied: cannot read object", "We don't have permission to complete this review. Please contact support.", models.DispositionFatal},
		{"NoSuchKey: object not found", "The content to review could not be found.", models.DispositionFatal},
		{"invalid api key supplied", "The review service rejected our credentials. Please contact support.", models.DispositionFatal},
		{"validation failed on field contentType", "The request was invalid and could not be reviewed.", models.DispositionFatal},
	}
	for _, tc := range cases {
		err := errors.New(tc.raw)
		assert.Equal(t, tc.want, Message(err), tc.raw)
		assert.Equal(t, tc.disposition, Disposition(err), tc.raw)
	}
}

func TestBlockedDistinctFromGenericFailure(t *testing.T) {
	blocked := errors.New(InferencePrefix + "content blocked by safety filters: HATE")
	generic := errors.New(InferencePrefix + "model request failed: http 500")

	assert.NotEqual(t, Message(blocked), Message(generic))
	assert.Equal(t, models.DispositionFatal, Disposition(blocked))
}

func TestInferencePrefixStrippedAndTruncated(t *testing.T) {
	long := strings.Repeat("x", 150)
	err := errors.New(InferencePrefix + long)

	msg := Message(err)
	assert.Equal(t, 100, len(msg))
	assert.False(t, strings.Contains(msg, InferencePrefix))
}

func TestLongMessageTruncatedWithEllipsis(t *testing.T) {
	err := errors.New(strings.Repeat("y", 150))

	msg := Message(err)
	assert.Equal(t, 100, len(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestTruncationKeepsValidUTF8(t *testing.T) {
	// A multi-byte rune straddling the cap must be dropped whole, not split.
	err := errors.New(strings.Repeat("a", 96) + "é…")

	msg := Message(err)
	assert.True(t, utf8.ValidString(msg))
	assert.LessOrEqual(t, len(msg), 100)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestPrefixedTruncationKeepsValidUTF8(t *testing.T) {
	err := errors.New(InferencePrefix + strings.Repeat("b", 99) + "é")

	msg := Message(err)
	assert.True(t, utf8.ValidString(msg))
	assert.LessOrEqual(t, len(msg), 100)
	assert.False(t, strings.Contains(msg, InferencePrefix))
}

func TestShortMessagePassesThrough(t *testing.T) {
	err := errors.New("something odd happened")

	assert.Equal(t, "something odd happened", Message(err))
}

func TestRecordKeepsOriginal(t *testing.T) {
	err := errors.New("AccessDenied: bucket policy")

	rec := Record(err)
	assert.Equal(t, models.DispositionFatal, rec.Disposition)
	assert.Equal(t, "AccessDenied: bucket policy", rec.OriginalMessage)
	assert.LessOrEqual(t, len(rec.UserMessage), 100)
}

func TestNilError(t *testing.T) {
	assert.Equal(t, "", Message(nil))
}
