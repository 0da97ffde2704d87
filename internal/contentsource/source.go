// Package contentsource resolves a queue message into the raw text to
// review: either a stored file that needs fetching and text extraction, or
// text submitted directly.
package contentsource

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/contentreview/pkg/models"
)

// BlobFetcher reads an object from the storage backend. The message keeps the
// s3Bucket/s3Key wire names regardless of which backend serves them.
type BlobFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Resolver dispatches on the message-type discriminator.
type Resolver struct {
	blobs         BlobFetcher
	defaultBucket string
}

// NewResolver constructs a Resolver. defaultBucket is used when a message
// carries a key but no bucket.
func NewResolver(blobs BlobFetcher, defaultBucket string) *Resolver {
	return &Resolver{blobs: blobs, defaultBucket: defaultBucket}
}

// Resolve returns the text to review. An unrecognized discriminator is fatal
// for the attempt, phrased so classification lands on the validation rule.
func (r *Resolver) Resolve(ctx context.Context, msg models.ReviewMessage) (string, error) {
	switch effectiveType(msg) {
	case models.MessageTypeFileUpload:
		return r.resolveFile(ctx, msg)
	case models.MessageTypeTextSubmission:
		return r.resolveText(ctx, msg)
	default:
		return "", fmt.Errorf("invalid request: unrecognized message type %q", msg.MessageType)
	}
}

// effectiveType infers the discriminator for legacy messages that omit it:
// storage coordinates mean a file upload, inline text means a submission.
// Anything else falls through to the unrecognized-type error.
func effectiveType(msg models.ReviewMessage) string {
	if msg.MessageType != "" {
		return msg.MessageType
	}
	if msg.S3Key != "" {
		return models.MessageTypeFileUpload
	}
	if msg.TextContent != "" {
		return models.MessageTypeTextSubmission
	}
	return ""
}

func (r *Resolver) resolveFile(ctx context.Context, msg models.ReviewMessage) (string, error) {
	if msg.S3Key == "" {
		return "", fmt.Errorf("invalid request: file upload message without a storage key")
	}
	bucket := msg.S3Bucket
	if bucket == "" {
		bucket = r.defaultBucket
	}

	data, err := r.blobs.Fetch(ctx, bucket, msg.S3Key)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s/%s: %w", bucket, msg.S3Key, err)
	}
	log.Debug().
		Str("bucket", bucket).
		Str("key", msg.S3Key).
		Int("bytes", len(data)).
		Msg("fetched uploaded file")

	text, err := ExtractText(data, msg.ContentType, msg.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", msg.S3Key, err)
	}
	return text, nil
}

// resolveText fetches raw text directly: inline when the message carries it,
// otherwise straight from storage with no extraction step.
func (r *Resolver) resolveText(ctx context.Context, msg models.ReviewMessage) (string, error) {
	if msg.TextContent != "" {
		return msg.TextContent, nil
	}
	if msg.S3Key == "" {
		return "", fmt.Errorf("invalid request: text submission with neither inline text nor a storage key")
	}
	bucket := msg.S3Bucket
	if bucket == "" {
		bucket = r.defaultBucket
	}
	data, err := r.blobs.Fetch(ctx, bucket, msg.S3Key)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s/%s: %w", bucket, msg.S3Key, err)
	}
	return string(data), nil
}
