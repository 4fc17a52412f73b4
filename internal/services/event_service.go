package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/core/ingestion_engine"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

// EventService routes a parsed file-change event to the right handling:
// deletion by id prefix for removals, delete-then-reindex for overwrites,
// plain indexing for creations.
type EventService struct {
	extractor  core.DocumentExtractor
	chunker    *ingestion_engine.Chunker
	embeddings *EmbeddingService
}

func NewEventService(extractor core.DocumentExtractor, chunker *ingestion_engine.Chunker, embeddings *EmbeddingService) *EventService {
	return &EventService{extractor: extractor, chunker: chunker, embeddings: embeddings}
}

// Handle processes one event and reports whether the file is now fully
// synchronized: a true return means the queue message may be deleted.
// Failures in any stage are logged here or below and reported as false;
// nothing escapes as an error.
func (s *EventService) Handle(ctx context.Context, ev models.FileChangeEvent) bool {
	key := ev.Ref.ObjectKey

	switch ev.Type {
	case models.EventRemoved:
		slog.Info("processing delete event", "object_key", key)
		return s.embeddings.DeleteObjectEmbeddings(ctx, key)

	case models.EventCreated, models.EventUpdated:
		slog.Info("processing index event", "object_key", key, "event_type", ev.Type.String())

		if ev.Type == models.EventUpdated {
			// Overwrite-capable event: clear old vectors before reindexing.
			// Best effort: the update must not skip reindexing because
			// cleanup failed, but if the old chunk count exceeded the new
			// one the orphans will linger until the next clean delete.
			if !s.embeddings.DeleteObjectEmbeddings(ctx, key) {
				slog.Warn("stale vector cleanup failed, reindexing anyway", "object_key", key)
			}
		}

		docs, err := s.extractor.FetchAndParse(ctx, ev.Ref)
		if err != nil {
			if errors.Is(err, core.ErrObjectNotFound) {
				// Already gone from storage: nothing to index, but the
				// message is stale and should still be cleared.
				slog.Info("object no longer exists, skipping", "object_key", key)
				return true
			}
			slog.Error("fetch/parse failed", "object_key", key, "event_type", ev.Type.String(), "error", err)
			return false
		}
		if len(docs) == 0 {
			slog.Info("no documents extracted", "object_key", key)
			return true
		}

		chunks := s.chunker.ChunkDocuments(docs)
		return s.embeddings.UpsertChunks(ctx, chunks, ev.Ref)

	default:
		slog.Error("unsupported event type", "object_key", key, "event_type", ev.RawType)
		return false
	}
}
