package models

import (
	"time"
)

// ReviewStatus tracks where a review is in its lifecycle
type ReviewStatus string

const (
	StatusQueued     ReviewStatus = "queued"
	StatusProcessing ReviewStatus = "processing"
	StatusCompleted  ReviewStatus = "completed"
	StatusFailed     ReviewStatus = "failed"
)

// Message type discriminators carried in the queue message body
const (
	MessageTypeFileUpload     = "file_upload"
	MessageTypeTextSubmission = "text_submission"
)

// ReviewMessage is the queue message body that triggers one review.
// The effective review identifier is ReviewID when present, else UploadID.
type ReviewMessage struct {
	UploadID    string `json:"uploadId,omitempty"`
	ReviewID    string `json:"reviewId,omitempty"`
	Filename    string `json:"filename,omitempty"`
	S3Bucket    string `json:"s3Bucket,omitempty"`
	S3Key       string `json:"s3Key,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	TextContent string `json:"textContent,omitempty"`
	UserID      string `json:"userId,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

// EffectiveID returns the review identifier for this message, or "" when the
// message carries neither identifier field and is structurally invalid.
func (m ReviewMessage) EffectiveID() string {
	if m.ReviewID != "" {
		return m.ReviewID
	}
	return m.UploadID
}

// CategoryScore is one scored category from the review response
type CategoryScore struct {
	Score int    `json:"score"`
	Note  string `json:"note"`
}

// Issue is one inline issue span found in the reviewed content
type Issue struct {
	Category string `json:"category"`
	Text     string `json:"text"`
	Position int    `json:"position"` // byte offset of the opening marker in the block text
}

// ReviewedContent holds the marker-stripped text plus the issues found in it
type ReviewedContent struct {
	PlainText string  `json:"plainText"`
	Issues    []Issue `json:"issues"`
}

// Improvement is one prioritized suggestion. Severity and Category are free
// text from the model, deliberately not an enum.
type Improvement struct {
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Issue     string `json:"issue"`
	Why       string `json:"why"`
	Current   string `json:"current"`
	Suggested string `json:"suggested"`
}

// ParsedReview is the structured form of a review response. Every field is
// always present with an empty container default; consumers never see a nil
// top-level shape.
type ParsedReview struct {
	Scores          map[string]CategoryScore `json:"scores"`
	ReviewedContent ReviewedContent          `json:"reviewedContent"`
	Improvements    []Improvement            `json:"improvements"`
}

// EmptyParsedReview returns a ParsedReview with all containers allocated.
func EmptyParsedReview() ParsedReview {
	return ParsedReview{
		Scores:          map[string]CategoryScore{},
		ReviewedContent: ReviewedContent{PlainText: "", Issues: []Issue{}},
		Improvements:    []Improvement{},
	}
}

// IsEmpty reports whether parsing recovered nothing at all: no scores, no
// issues and no improvements.
func (p ParsedReview) IsEmpty() bool {
	return len(p.Scores) == 0 && len(p.ReviewedContent.Issues) == 0 && len(p.Improvements) == 0
}

// TokenUsage mirrors whatever usage metrics the inference adapter reported
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// ErrorRecord is the terminal failure record for a review. UserMessage is the
// short classifier output shown to end users; OriginalMessage is kept for
// logs and never surfaced.
type ErrorRecord struct {
	UserMessage     string `json:"userMessage"`
	Disposition     string `json:"disposition"` // "fatal" or "retryable"
	OriginalMessage string `json:"-"`
}

const (
	DispositionFatal     = "fatal"
	DispositionRetryable = "retryable"
)

// CompletedRecord is the state-store value written when a review completes
type CompletedRecord struct {
	ReviewData          ParsedReview `json:"reviewData"`
	RawResponse         string       `json:"rawResponse"`
	GuardrailAssessment string       `json:"guardrailAssessment,omitempty"`
	StopReason          string       `json:"stopReason,omitempty"`
	CompletedAt         time.Time    `json:"completedAt"`
	Usage               TokenUsage   `json:"usage"`
}

// ReviewRecord is the full state-store row for one review identifier
type ReviewRecord struct {
	ID          string           `json:"id"`
	Status      ReviewStatus     `json:"status"`
	Completed   *CompletedRecord `json:"completed,omitempty"`
	Error       *ErrorRecord     `json:"error,omitempty"`
	ErrorDetail string           `json:"-"` // original technical message, logs only
	UpdatedAt   time.Time        `json:"updatedAt"`
}
