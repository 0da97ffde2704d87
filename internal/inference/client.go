// Package inference defines the contract with the hosted model and its
// langchaingo-backed implementation. The adapter only moves prompts and
// responses; deciding what a blocked or failed response means for a review is
// the orchestrator's job.
package inference

import (
	"context"

	"github.com/contentreview/pkg/models"
)

// Request is one review exchange: a system turn carrying the instructions, an
// assistant turn acknowledging them, then the content to review.
type Request struct {
	System       string
	AssistantAck string
	UserPrompt   string
}

// Response is what came back from the model. Blocked responses are not
// errors at this layer; the caller decides their disposition.
type Response struct {
	Success             bool
	Blocked             bool
	Reason              string
	Content             string // primary text for parsing
	Raw                 string // full raw completion, kept for fallback and storage
	StopReason          string
	GuardrailAssessment string
	Usage               models.TokenUsage
}

// Client sends a review request to the hosted model.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
}
