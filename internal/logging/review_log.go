// Package logging provides the per-review logger used by the orchestrator.
// Every processing step is logged with the time elapsed since the review
// started, so a single review's lifecycle can be reconstructed from logs.
package logging

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReviewLog carries one review's identity and start time through the
// orchestrator.
type ReviewLog struct {
	logger    zerolog.Logger
	startTime time.Time
}

// ForReview creates the logger for a single review attempt.
func ForReview(reviewID string) *ReviewLog {
	return &ReviewLog{
		logger:    log.With().Str("review_id", reviewID).Logger(),
		startTime: time.Now(),
	}
}

// Step logs the start of a named step and returns a function that logs its
// completion with the step's own duration plus total elapsed time.
func (r *ReviewLog) Step(name string) func() {
	stepStart := time.Now()
	r.logger.Info().
		Str("step", name).
		Dur("elapsed", time.Since(r.startTime)).
		Msg("step started")
	return func() {
		r.logger.Info().
			Str("step", name).
			Dur("duration", time.Since(stepStart)).
			Dur("elapsed", time.Since(r.startTime)).
			Msg("step finished")
	}
}

// Info starts an info event with elapsed time attached.
func (r *ReviewLog) Info() *zerolog.Event {
	return r.logger.Info().Dur("elapsed", time.Since(r.startTime))
}

// Warn starts a warning event with elapsed time attached.
func (r *ReviewLog) Warn() *zerolog.Event {
	return r.logger.Warn().Dur("elapsed", time.Since(r.startTime))
}

// Error starts an error event with elapsed time attached. Used for the
// swallowed bookkeeping failures that must not block the review itself.
func (r *ReviewLog) Error(err error) *zerolog.Event {
	return r.logger.Error().Err(err).Dur("elapsed", time.Since(r.startTime))
}

// Stuck logs at the highest severity that a review has no durable record and
// needs manual intervention. The double-fault path ends here: there is
// nothing left to do but flag it.
func (r *ReviewLog) Stuck(err error, msg string) {
	r.logger.Error().
		Err(err).
		Bool("needs_manual_intervention", true).
		Dur("elapsed", time.Since(r.startTime)).
		Msg(msg)
}
