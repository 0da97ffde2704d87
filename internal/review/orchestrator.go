/*
Package review drives one review end to end: status transitions, content
resolution, the model exchange, response parsing and outcome persistence.

The state machine per attempt is queued → processing → completed|failed.
Redelivery of the same identifier re-enters processing; completed simply
overwrites any earlier failed record, which is safe because all state-store
writes are keyed by review identifier and last-writer-wins.
*/
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contentreview/internal/classify"
	"github.com/contentreview/internal/inference"
	"github.com/contentreview/internal/logging"
	"github.com/contentreview/internal/parser"
	"github.com/contentreview/pkg/models"
)

// StateStore is the durable key-value store holding each review's status and
// terminal record. Writes are last-writer-wins by review identifier.
type StateStore interface {
	MarkProcessing(ctx context.Context, id string) error
	SaveCompleted(ctx context.Context, id string, rec models.CompletedRecord) error
	SaveFailed(ctx context.Context, id string, rec models.ErrorRecord) error
	// SaveFailureMarker writes a minimal generic failed record. It is the
	// bounded retry for when SaveFailed itself fails.
	SaveFailureMarker(ctx context.Context, id string) error
}

// ContentSource resolves a queue message into the raw text to review.
type ContentSource interface {
	Resolve(ctx context.Context, msg models.ReviewMessage) (string, error)
}

// Result reports the terminal outcome of one processing attempt. Recorded is
// false only on the double-fault path where not even the generic failure
// marker could be written; the worker must then leave the message for
// redelivery because no durable outcome exists. Disposition is set on failed
// outcomes and tells the worker whether the failure is fatal (delete the
// message) or retryable (leave it for lease-expiry redelivery).
type Result struct {
	ID          string
	Status      models.ReviewStatus
	Recorded    bool
	Disposition string
}

// Orchestrator processes reviews using injected collaborators, so tests can
// substitute any of them without runtime patching.
type Orchestrator struct {
	store  StateStore
	source ContentSource
	model  inference.Client
}

// New constructs an Orchestrator.
func New(store StateStore, source ContentSource, model inference.Client) *Orchestrator {
	return &Orchestrator{store: store, source: source, model: model}
}

// Process runs one review attempt. It returns an error only when the attempt
// was abandoned before reaching a terminal outcome (context cancellation);
// every other failure is classified, recorded and reported in the Result.
func (o *Orchestrator) Process(ctx context.Context, msg models.ReviewMessage) (Result, error) {
	id := msg.EffectiveID()
	rl := logging.ForReview(id)

	// Losing the processing-status update must not block the review; the
	// inconsistency is logged and accepted.
	finish := rl.Step("mark processing")
	if err := o.store.MarkProcessing(ctx, id); err != nil {
		rl.Error(err).Msg("failed to mark review as processing, continuing anyway")
	}
	finish()

	finish = rl.Step("resolve content")
	text, err := o.source.Resolve(ctx, msg)
	finish()
	if err != nil {
		return o.fail(ctx, rl, id, fmt.Errorf("content resolution failed: %w", err))
	}

	finish = rl.Step("model exchange")
	resp, err := o.invokeModel(ctx, text)
	finish()
	if err != nil {
		return o.fail(ctx, rl, id, err)
	}

	finish = rl.Step("parse response")
	parsed := o.parseWithFallback(rl, resp)
	finish()

	finish = rl.Step("persist result")
	record := models.CompletedRecord{
		ReviewData:          parsed,
		RawResponse:         resp.Raw,
		GuardrailAssessment: resp.GuardrailAssessment,
		StopReason:          resp.StopReason,
		CompletedAt:         time.Now().UTC(),
		Usage:               resp.Usage,
	}
	err = o.store.SaveCompleted(ctx, id, record)
	finish()
	if err != nil {
		return o.fail(ctx, rl, id, fmt.Errorf("failed to persist review result: %w", err))
	}

	rl.Info().Int("scores", len(parsed.Scores)).
		Int("issues", len(parsed.ReviewedContent.Issues)).
		Int("improvements", len(parsed.Improvements)).
		Msg("review completed")
	return Result{ID: id, Status: models.StatusCompleted, Recorded: true}, nil
}

// invokeModel performs the fixed priming exchange and turns blocked and
// failed responses into distinct errors so classification can tell them
// apart downstream.
func (o *Orchestrator) invokeModel(ctx context.Context, text string) (*inference.Response, error) {
	resp, err := o.model.Send(ctx, inference.Request{
		System:       reviewInstructions,
		AssistantAck: reviewAcknowledgement,
		UserPrompt:   wrapContent(text),
	})
	if err != nil {
		return nil, fmt.Errorf(classify.InferencePrefix+"model request failed: %w", err)
	}
	if resp.Blocked {
		return nil, fmt.Errorf(classify.InferencePrefix+"content blocked by safety filters: %s", resp.Reason)
	}
	if !resp.Success {
		return nil, fmt.Errorf(classify.InferencePrefix+"model returned a failure response: %s", resp.Reason)
	}
	return resp, nil
}

// parseWithFallback parses the primary text, falling back to the raw text
// only when the primary is empty or parsed to nothing at all. The parser
// itself never substitutes input; that policy lives here.
func (o *Orchestrator) parseWithFallback(rl *logging.ReviewLog, resp *inference.Response) models.ParsedReview {
	parsed := parser.Parse(resp.Content)
	if resp.Content != "" && !parsed.IsEmpty() {
		return parsed
	}
	if resp.Raw == "" || resp.Raw == resp.Content {
		return parsed
	}
	rl.Warn().
		Str("input_used", "raw fallback").
		Bool("primary_empty", resp.Content == "").
		Msg("primary response text yielded nothing, reparsing raw text")
	return parser.Parse(resp.Raw)
}

// fail classifies the error and records the failed outcome. A failed write of
// the error record gets one bounded retry with a minimal generic marker; if
// that also fails, the review is stuck and is logged as such — nothing
// further can safely be done here, so this path never returns an error.
func (o *Orchestrator) fail(ctx context.Context, rl *logging.ReviewLog, id string, cause error) (Result, error) {
	// An attempt abandoned by shutdown records nothing; the lease will make
	// the message visible again for another worker.
	if errors.Is(cause, context.Canceled) {
		return Result{ID: id}, cause
	}

	record := classify.Record(cause)
	rl.Error(cause).
		Str("user_message", record.UserMessage).
		Str("disposition", record.Disposition).
		Msg("review failed")

	if err := o.store.SaveFailed(ctx, id, record); err != nil {
		rl.Error(err).Msg("failed to persist error record, retrying with generic marker")
		if retryErr := o.store.SaveFailureMarker(ctx, id); retryErr != nil {
			rl.Stuck(retryErr, "review failed and no error record could be written; manual intervention required")
			return Result{ID: id, Status: models.StatusFailed, Recorded: false, Disposition: record.Disposition}, nil
		}
	}
	return Result{ID: id, Status: models.StatusFailed, Recorded: true, Disposition: record.Disposition}, nil
}
