package services

import (
	"context"
	"log/slog"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

// EmbeddingService turns chunk text into vectors and keeps the vector store
// in sync with the latest chunking of each object.
type EmbeddingService struct {
	embedder core.EmbeddingProvider
	store    core.VectorStore
}

func NewEmbeddingService(embedder core.EmbeddingProvider, store core.VectorStore) *EmbeddingService {
	return &EmbeddingService{embedder: embedder, store: store}
}

// GenerateEmbeddings computes vectors for all texts in one batched call.
// Any failure is logged and reported as an empty result; callers must treat
// empty as "nothing computed", never as "zero chunks".
func (s *EmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) [][]float32 {
	vecs, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		slog.Error("error generating embeddings", "texts", len(texts), "error", err)
		return nil
	}
	return vecs
}

// UpsertChunks embeds every chunk and writes one record per (index, vector)
// pair under the deterministic id "{objectKey}-chunk-{index}". Returns true
// iff at least one record was written: partial indexing beats total loss for
// retrieval, so some chunks failing does not fail the document.
func (s *EmbeddingService) UpsertChunks(ctx context.Context, chunks []models.ChunkDocument, ref models.FileReference) bool {
	if len(chunks) == 0 {
		slog.Warn("no chunks to index", "object_key", ref.ObjectKey)
		return false
	}

	slog.Info("generating embeddings", "chunks", len(chunks), "object_key", ref.ObjectKey)

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vecs := s.GenerateEmbeddings(ctx, texts)
	if len(vecs) == 0 {
		slog.Error("failed to generate embeddings", "object_key", ref.ObjectKey)
		return false
	}
	if len(vecs) != len(chunks) {
		slog.Error("embedding count mismatch", "object_key", ref.ObjectKey,
			"chunks", len(chunks), "vectors", len(vecs))
		return false
	}

	succeeded := 0
	for i, vec := range vecs {
		rec := models.EmbeddingRecord{
			ID:     models.ChunkID(ref.ObjectKey, chunks[i].Index),
			Vector: vec,
			Meta: models.RecordMeta{
				BucketName: ref.BucketName,
				ObjectKey:  ref.ObjectKey,
				ChunkIndex: chunks[i].Index,
				ChunkText:  chunks[i].Content,
				Source:     ref.Source(),
				FileType:   chunks[i].Meta.FileType,
				Title:      models.TitleFor(ref.ObjectKey),
			},
		}
		if err := s.store.UpsertRecord(ctx, rec); err != nil {
			slog.Error("error upserting embedding", "id", rec.ID, "error", err)
			continue
		}
		succeeded++
	}

	slog.Info("upserted embeddings", "object_key", ref.ObjectKey,
		"succeeded", succeeded, "total", len(chunks))
	return succeeded > 0
}

// DeleteObjectEmbeddings removes every record whose id carries the object's
// chunk prefix. An object that was never indexed deletes zero records and
// still counts as success.
func (s *EmbeddingService) DeleteObjectEmbeddings(ctx context.Context, objectKey string) bool {
	prefix := models.ChunkPrefix(objectKey)

	ids, err := s.store.ListIDsByPrefix(ctx, prefix)
	if err != nil {
		slog.Error("error listing embeddings", "object_key", objectKey, "error", err)
		return false
	}
	if len(ids) == 0 {
		slog.Info("no embeddings to delete", "object_key", objectKey)
		return true
	}

	if err := s.store.DeleteByIDs(ctx, ids); err != nil {
		slog.Error("error deleting embeddings", "object_key", objectKey, "error", err)
		return false
	}

	slog.Info("deleted embeddings", "object_key", objectKey, "records", len(ids))
	return true
}
