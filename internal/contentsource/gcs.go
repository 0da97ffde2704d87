package contentsource

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSFetcher implements BlobFetcher against a cloud storage bucket.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher builds a fetcher using ambient credentials.
func NewGCSFetcher(ctx context.Context) (*GCSFetcher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

// Fetch reads one object fully into memory. Review inputs are bounded text
// documents, not media.
func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, fmt.Errorf("object not found: %s/%s", bucket, key)
		}
		return nil, fmt.Errorf("failed to open %s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Close releases the underlying client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}
