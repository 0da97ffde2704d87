package contentsource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentreview/pkg/models"
)

type mockBlobs struct {
	data         map[string][]byte
	err          error
	lastBucket   string
	lastKey      string
	fetchedCount int
}

func (m *mockBlobs) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	m.fetchedCount++
	m.lastBucket = bucket
	m.lastKey = key
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.data[bucket+"/"+key]
	if !ok {
		return nil, errors.New("object not found: " + bucket + "/" + key)
	}
	return data, nil
}

func TestResolveDirectText(t *testing.T) {
	blobs := &mockBlobs{}
	r := NewResolver(blobs, "default-bucket")

	text, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID:    "r1",
		MessageType: models.MessageTypeTextSubmission,
		TextContent: "inline content",
	})

	require.NoError(t, err)
	assert.Equal(t, "inline content", text)
	assert.Equal(t, 0, blobs.fetchedCount)
}

func TestResolveTextFromStorage(t *testing.T) {
	blobs := &mockBlobs{data: map[string][]byte{"b/k": []byte("stored text")}}
	r := NewResolver(blobs, "default-bucket")

	text, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID:    "r1",
		MessageType: models.MessageTypeTextSubmission,
		S3Bucket:    "b",
		S3Key:       "k",
	})

	require.NoError(t, err)
	assert.Equal(t, "stored text", text)
}

func TestResolveFileUpload(t *testing.T) {
	blobs := &mockBlobs{data: map[string][]byte{"uploads/doc.txt": []byte("file body\r\nsecond line")}}
	r := NewResolver(blobs, "uploads")

	text, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID:    "r1",
		MessageType: models.MessageTypeFileUpload,
		S3Key:       "doc.txt",
		ContentType: "text/plain",
	})

	require.NoError(t, err)
	assert.Equal(t, "file body\nsecond line", text)
	assert.Equal(t, "uploads", blobs.lastBucket) // default bucket applied
}

func TestResolveFileUploadHTML(t *testing.T) {
	page := `<html><head><style>p{color:red}</style></head><body><h1>Title</h1><p>Hello <b>world</b></p><script>alert(1)</script></body></html>`
	blobs := &mockBlobs{data: map[string][]byte{"b/page.html": []byte(page)}}
	r := NewResolver(blobs, "b")

	text, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID:    "r1",
		MessageType: models.MessageTypeFileUpload,
		S3Bucket:    "b",
		S3Key:       "page.html",
		ContentType: "text/html",
	})

	require.NoError(t, err)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Hello world")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
}

func TestResolveUnrecognizedTypeFatal(t *testing.T) {
	r := NewResolver(&mockBlobs{}, "b")

	_, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID:    "r1",
		MessageType: "carrier_pigeon",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized message type")
}

func TestResolveInfersTypeFromFields(t *testing.T) {
	blobs := &mockBlobs{data: map[string][]byte{"b/k.txt": []byte("from storage")}}
	r := NewResolver(blobs, "b")

	// Storage key and no discriminator: treated as a file upload.
	text, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID: "r1", S3Key: "k.txt", ContentType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "from storage", text)

	// Inline text and no discriminator: treated as a text submission.
	text, err = r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID: "r1", TextContent: "inline",
	})
	require.NoError(t, err)
	assert.Equal(t, "inline", text)

	// Neither: unrecognized.
	_, err = r.Resolve(context.Background(), models.ReviewMessage{ReviewID: "r1"})
	assert.Error(t, err)
}

func TestResolveFetchFailure(t *testing.T) {
	blobs := &mockBlobs{err: errors.New("AccessDenied")}
	r := NewResolver(blobs, "b")

	_, err := r.Resolve(context.Background(), models.ReviewMessage{
		ReviewID:    "r1",
		MessageType: models.MessageTypeFileUpload,
		S3Key:       "k",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestExtractTextUnsupportedType(t *testing.T) {
	_, err := ExtractText([]byte{0x25, 0x50, 0x44, 0x46}, "application/pdf", "doc.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestExtractTextRejectsBinary(t *testing.T) {
	_, err := ExtractText([]byte{0xff, 0xfe, 0x00, 0x01}, "text/plain", "doc.txt")

	require.Error(t, err)
}

func TestExtractTextExtensionFallback(t *testing.T) {
	text, err := ExtractText([]byte("# Heading"), "", "notes.md")

	require.NoError(t, err)
	assert.Equal(t, "# Heading", text)
}
