package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/contentreview/internal/retry"
	"github.com/contentreview/internal/review"
	"github.com/contentreview/pkg/models"
)

// Processor handles one review message. Satisfied by *review.Orchestrator.
type Processor interface {
	Process(ctx context.Context, msg models.ReviewMessage) (review.Result, error)
}

// WorkerConfig tunes one worker loop instance.
type WorkerConfig struct {
	BatchSize    int          // messages leased per receive call
	ReceiveLimit rate.Limit   // polling pace; the transport itself may long-poll
	Retry        retry.Config // backoff for transient receive/delete failures
}

// DefaultWorkerConfig returns the standard loop tuning.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:    5,
		ReceiveLimit: rate.Limit(2), // at most two receive calls per second
		Retry:        retry.TransportConfig(),
	}
}

// Worker polls the transport and hands messages to the processor. Several
// workers may run concurrently against the same transport; leases keep them
// from processing the same message at once.
type Worker struct {
	transport Transport
	processor Processor
	limiter   *rate.Limiter
	batchSize int
	retryCfg  retry.Config
}

// NewWorker constructs a worker loop.
func NewWorker(transport Transport, processor Processor, cfg WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.ReceiveLimit <= 0 {
		cfg.ReceiveLimit = defaults.ReceiveLimit
	}
	if cfg.Retry.IsZero() {
		cfg.Retry = defaults.Retry
	}
	return &Worker{
		transport: transport,
		processor: processor,
		limiter:   rate.NewLimiter(cfg.ReceiveLimit, 1),
		batchSize: cfg.BatchSize,
		retryCfg:  cfg.Retry,
	}
}

// Run polls until the context ends or a critical transport error occurs.
// Transient transport errors back off and never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Int("batch_size", w.batchSize).Msg("worker loop started")
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			log.Info().Msg("worker loop stopped")
			return nil
		}

		messages, err := w.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if IsCritical(err) {
				log.Error().Err(err).Msg("critical queue transport error, stopping worker")
				return fmt.Errorf("queue transport: %w", err)
			}
			// Transient and already backed off inside receive; poll again.
			continue
		}

		for _, msg := range messages {
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) receive(ctx context.Context) ([]Message, error) {
	var messages []Message
	err := retry.Do(ctx, w.retryCfg, "queue receive", func() error {
		got, err := w.transport.Receive(ctx, w.batchSize)
		if err != nil {
			// Backing off only helps transient failures; anything else goes
			// straight back to the loop, which stops on critical errors and
			// otherwise just polls again.
			if IsCritical(err) || !retry.IsTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}
		messages = got
		return nil
	})
	return messages, err
}

// handle processes one leased message. The message is deleted when the
// review completed, when a fatal failure was durably recorded, or when the
// message itself is structurally invalid and can never be processed.
// Recorded retryable failures and unrecorded outcomes stay leased and
// redeliver when the lease lapses.
func (w *Worker) handle(ctx context.Context, msg Message) {
	var body models.ReviewMessage
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		log.Error().Err(err).Str("receipt", msg.Receipt).Msg("unparseable queue message, deleting")
		w.delete(ctx, msg.Receipt)
		return
	}
	if body.EffectiveID() == "" {
		log.Error().Str("receipt", msg.Receipt).Msg("queue message has neither reviewId nor uploadId, deleting")
		w.delete(ctx, msg.Receipt)
		return
	}

	result, err := w.process(ctx, body)
	if err != nil {
		log.Warn().Err(err).Str("review_id", body.EffectiveID()).
			Msg("attempt abandoned before a terminal outcome, leaving message for redelivery")
		return
	}
	if !result.Recorded {
		log.Warn().Str("review_id", result.ID).
			Msg("terminal outcome not durably recorded, leaving message for redelivery")
		return
	}
	if result.Status == models.StatusFailed && result.Disposition == models.DispositionRetryable {
		// The failed record is durable, but the failure can heal on its own;
		// the lease expiry redelivers the message for another attempt. The
		// receive ceiling bounds how often.
		log.Warn().
			Str("review_id", result.ID).
			Int("receive_count", msg.ReceiveCount).
			Msg("retryable failure recorded, leaving message for redelivery")
		return
	}

	log.Info().
		Str("review_id", result.ID).
		Str("status", string(result.Status)).
		Str("disposition", result.Disposition).
		Int("receive_count", msg.ReceiveCount).
		Msg("message processed")
	w.delete(ctx, msg.Receipt)
}

// process shields the loop from a panicking processor; a panic abandons the
// attempt and the lease redelivers the message.
func (w *Worker) process(ctx context.Context, body models.ReviewMessage) (result review.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, body)
}

func (w *Worker) delete(ctx context.Context, receipt string) {
	err := retry.Do(ctx, w.retryCfg, "queue delete", func() error {
		if err := w.transport.Delete(ctx, receipt); err != nil {
			if !retry.IsTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		// The lease expires and the message redelivers; the store upsert
		// makes reprocessing the same identifier harmless.
		log.Error().Err(err).Str("receipt", receipt).Msg("failed to delete message after terminal outcome")
	}
}
