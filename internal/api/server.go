package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/contentreview/internal/store"
	"github.com/contentreview/pkg/models"
)

// ReviewReader loads review records for the status endpoint.
type ReviewReader interface {
	Get(ctx context.Context, id string) (models.ReviewRecord, error)
	MarkQueued(ctx context.Context, id string) error
}

// Sender enqueues accepted review requests.
type Sender interface {
	Send(ctx context.Context, body []byte) error
}

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	addr   string
	store  ReviewReader
	sender Sender
}

// NewServer creates a new API server
func NewServer(addr string, st ReviewReader, sender Sender) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:   e,
		addr:   addr,
		store:  st,
		sender: sender,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/reviews", s.createReview)
	v1.GET("/reviews/:id", s.getReviewByID)
}

// createReviewRequest is the accepted submission shape. Either textContent
// or an object reference must be present.
type createReviewRequest struct {
	ReviewID    string `json:"reviewId"`
	Filename    string `json:"filename"`
	S3Bucket    string `json:"s3Bucket"`
	S3Key       string `json:"s3Key"`
	ContentType string `json:"contentType"`
	FileSize    int64  `json:"fileSize"`
	MessageType string `json:"messageType"`
	TextContent string `json:"textContent"`
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId"`
}

func (s *Server) createReview(c echo.Context) error {
	var req createReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.TextContent == "" && req.S3Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "either textContent or s3Key is required")
	}

	id := req.ReviewID
	if id == "" {
		id = uuid.NewString()
	}

	msg := models.ReviewMessage{
		ReviewID:    id,
		Filename:    req.Filename,
		S3Bucket:    req.S3Bucket,
		S3Key:       req.S3Key,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
		MessageType: req.MessageType,
		TextContent: req.TextContent,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode message")
	}

	// Enqueue before seeding the status row: a row without a message would
	// sit queued forever, while a message without a row self-heals when the
	// worker upserts processing.
	ctx := c.Request().Context()
	if err := s.sender.Send(ctx, body); err != nil {
		log.Error().Err(err).Str("review_id", id).Msg("failed to enqueue review")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue review")
	}
	if err := s.store.MarkQueued(ctx, id); err != nil {
		// The message is already on the queue, so the review will still run.
		log.Warn().Err(err).Str("review_id", id).Msg("failed to seed queued status row")
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"id":     id,
		"status": string(models.StatusQueued),
	})
}

func (s *Server) getReviewByID(c echo.Context) error {
	id := c.Param("id")
	rec, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "review not found")
		}
		log.Error().Err(err).Str("review_id", id).Msg("failed to load review")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load review")
	}
	return c.JSON(http.StatusOK, rec)
}

// Start begins serving and blocks until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
