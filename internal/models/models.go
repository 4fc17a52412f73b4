package models

import (
	"fmt"
	"path"
	"strings"
)

// EventType classifies a provider file-change notification after
// normalization. Provider event names vary in casing and may carry an
// "s3:" prefix; ParseEventType folds those variants into one value.
type EventType int

const (
	EventUnknown EventType = iota
	EventCreated
	EventUpdated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ParseEventType maps a raw provider event name onto an EventType.
//
// Removal events ("ObjectRemoved:Delete", "ObjectRemoved:DeleteMarkerCreated",
// ...) map to EventRemoved. Creation events that can overwrite an existing
// object (Put, Post, CompleteMultipartUpload) map to EventUpdated so the
// router knows to clear stale vectors first; other creation events (Copy,
// wildcard notifications) map to EventCreated. Everything else is
// EventUnknown.
func ParseEventType(raw string) EventType {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "s3:"))

	switch {
	case strings.HasPrefix(name, "objectremoved"):
		return EventRemoved
	case strings.HasPrefix(name, "objectcreated"):
		if strings.Contains(name, "put") ||
			strings.Contains(name, "post") ||
			strings.Contains(name, "completemultipartupload") {
			return EventUpdated
		}
		return EventCreated
	default:
		return EventUnknown
	}
}

// FileReference identifies one object in object storage. Immutable once
// parsed from a queue message.
type FileReference struct {
	BucketName string
	ObjectKey  string
}

// Source returns the canonical URI stamped into document and record metadata.
func (r FileReference) Source() string {
	return fmt.Sprintf("s3://%s/%s", r.BucketName, r.ObjectKey)
}

// FileChangeEvent is one parsed queue message.
type FileChangeEvent struct {
	Ref       FileReference
	Type      EventType
	RawType   string
	MessageID string
}

// DocumentMeta carries the provenance of an extracted text document. Every
// document leaving the extractor has BucketName, ObjectKey, Source and
// FileType set; Sheet and Page are only set for spreadsheet and PDF sources.
type DocumentMeta struct {
	BucketName string
	ObjectKey  string
	Source     string
	FileType   string
	Sheet      string
	Page       int
}

// TextDocument is one logical unit of extracted text: a whole text file, a
// PDF page, or one spreadsheet sheet.
type TextDocument struct {
	Content string
	Meta    DocumentMeta
}

// ChunkDocument is a bounded slice of a parent TextDocument. Meta is a copy
// of the parent's, never shared, so mutating one chunk cannot leak into its
// siblings. Index is zero-based and monotonically increasing across all
// documents of a single source object.
type ChunkDocument struct {
	Content    string
	Meta       DocumentMeta
	Index      int
	TokenCount int
}

// RecordMeta is the metadata persisted next to each vector.
type RecordMeta struct {
	BucketName string
	ObjectKey  string
	ChunkIndex int
	ChunkText  string
	Source     string
	FileType   string
	Title      string
}

// EmbeddingRecord is one row in the vector database. ID is deterministic
// ("{objectKey}-chunk-{index}") and is the join key between chunks and
// stored vectors; prefix deletion relies on it.
type EmbeddingRecord struct {
	ID     string
	Vector []float32
	Meta   RecordMeta
}

// ChunkPrefix returns the id prefix shared by every chunk of an object.
func ChunkPrefix(objectKey string) string {
	return objectKey + "-chunk-"
}

// ChunkID returns the deterministic record id for one chunk of an object.
func ChunkID(objectKey string, index int) string {
	return fmt.Sprintf("%s%d", ChunkPrefix(objectKey), index)
}

// TitleFor derives the display title stored with each record.
func TitleFor(objectKey string) string {
	return path.Base(objectKey)
}
