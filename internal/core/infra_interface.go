package core

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/embedding-forge/internal/models"
)

// ErrObjectNotFound is returned by ObjectClient.GetFile when the key does not
// exist in the bucket. Callers treat it as "already absent", not as a failure.
var ErrObjectNotFound = errors.New("object not found")

// ErrUnsupportedFileType is returned by the extractor for extensions it has
// no parser for. Unlike not-found this is a loud failure: a silently skipped
// file would hide a real gap in format coverage.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// QueueMessage is one raw message received from the queue. ReceiptHandle is
// what the provider expects back for deletion.
type QueueMessage struct {
	MessageID     string
	ReceiptHandle string
	Body          string
}

// QueueClient defines interactions with the message queue (SQS or anything
// with compatible receive/delete semantics).
type QueueClient interface {
	ReceiveMessages(ctx context.Context, maxMessages int32, wait time.Duration) ([]QueueMessage, error)
	DeleteMessage(ctx context.Context, receiptHandle string) error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// EmbeddingProvider computes one vector per input text, order-preserving.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordFilter selects vector records by metadata. Zero-value fields are
// ignored; an all-zero filter is rejected by implementations so a bug can
// never wipe the whole index.
type RecordFilter struct {
	BucketName string
	ObjectKey  string
	FileType   string
}

// VectorStore abstracts the vector database. All writes are keyed by the
// deterministic chunk id, which is also what ListIDsByPrefix matches on.
type VectorStore interface {
	UpsertRecord(ctx context.Context, rec models.EmbeddingRecord) error
	ListIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByFilter(ctx context.Context, filter RecordFilter) error
	Close() error
}

// DocumentExtractor fetches an object's bytes and converts them into
// normalized text documents.
type DocumentExtractor interface {
	FetchAndParse(ctx context.Context, ref models.FileReference) ([]models.TextDocument, error)
}
