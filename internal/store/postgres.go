package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentreview/pkg/models"
)

// ErrNotFound is returned by Get when no review exists for the identifier.
var ErrNotFound = errors.New("review not found")

// PostgresStore persists review state in a single table keyed by review
// identifier. All writes are upserts, so writing a terminal record for an
// identifier that was never marked queued still succeeds, and concurrent
// writers resolve last-writer-wins.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const reviewSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	completed    JSONB,
	error        JSONB,
	error_detail TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the reviews table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, reviewSchema); err != nil {
		return fmt.Errorf("create reviews schema: %w", err)
	}
	return nil
}

// MarkQueued seeds the row when a review is first accepted.
func (s *PostgresStore) MarkQueued(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.StatusQueued)
}

// MarkProcessing records that a worker has picked the review up.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.StatusProcessing)
}

func (s *PostgresStore) setStatus(ctx context.Context, id string, status models.ReviewStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reviews (id, status, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = now()`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("set review %s status to %s: %w", id, status, err)
	}
	return nil
}

// SaveCompleted writes the terminal completed record, clearing any earlier
// error from a failed attempt of the same identifier.
func (s *PostgresStore) SaveCompleted(ctx context.Context, id string, rec models.CompletedRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode completed record: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO reviews (id, status, completed, error, error_detail, updated_at)
		VALUES ($1, $2, $3, NULL, '', now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    completed = EXCLUDED.completed,
		    error = NULL,
		    error_detail = '',
		    updated_at = now()`,
		id, string(models.StatusCompleted), payload)
	if err != nil {
		return fmt.Errorf("save completed review %s: %w", id, err)
	}
	return nil
}

// SaveFailed writes the terminal failed record. The original technical
// message goes to error_detail and never into the user-facing error JSON.
func (s *PostgresStore) SaveFailed(ctx context.Context, id string, rec models.ErrorRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode error record: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO reviews (id, status, error, error_detail, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    error = EXCLUDED.error,
		    error_detail = EXCLUDED.error_detail,
		    updated_at = now()`,
		id, string(models.StatusFailed), payload, rec.OriginalMessage)
	if err != nil {
		return fmt.Errorf("save failed review %s: %w", id, err)
	}
	return nil
}

// SaveFailureMarker writes a minimal generic failed record. It exists so a
// failed SaveFailed still leaves the review in a terminal state.
func (s *PostgresStore) SaveFailureMarker(ctx context.Context, id string) error {
	marker := models.ErrorRecord{
		UserMessage: "The review failed. Please try again.",
		Disposition: models.DispositionFatal,
	}
	if err := s.SaveFailed(ctx, id, marker); err != nil {
		return fmt.Errorf("save failure marker for review %s: %w", id, err)
	}
	return nil
}

// Get loads the full record for one review.
func (s *PostgresStore) Get(ctx context.Context, id string) (models.ReviewRecord, error) {
	var (
		rec           models.ReviewRecord
		status        string
		completedJSON []byte
		errorJSON     []byte
		errorDetail   string
		updatedAt     time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT status, completed, error, error_detail, updated_at
		FROM reviews WHERE id = $1`, id)
	if err := row.Scan(&status, &completedJSON, &errorJSON, &errorDetail, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ReviewRecord{}, ErrNotFound
		}
		return models.ReviewRecord{}, fmt.Errorf("load review %s: %w", id, err)
	}

	rec.ID = id
	rec.Status = models.ReviewStatus(status)
	rec.ErrorDetail = errorDetail
	rec.UpdatedAt = updatedAt
	if len(completedJSON) > 0 {
		var completed models.CompletedRecord
		if err := json.Unmarshal(completedJSON, &completed); err != nil {
			return models.ReviewRecord{}, fmt.Errorf("decode completed record for review %s: %w", id, err)
		}
		rec.Completed = &completed
	}
	if len(errorJSON) > 0 {
		var errRec models.ErrorRecord
		if err := json.Unmarshal(errorJSON, &errRec); err != nil {
			return models.ReviewRecord{}, fmt.Errorf("decode error record for review %s: %w", id, err)
		}
		rec.Error = &errRec
	}
	return rec, nil
}
