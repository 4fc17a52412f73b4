package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/embedding-forge/internal/config"
	db "github.com/markdave123-py/embedding-forge/internal/core/database"
	"github.com/markdave123-py/embedding-forge/internal/core/ingestion_engine"
	"github.com/markdave123-py/embedding-forge/internal/core/llm"
	objectclient "github.com/markdave123-py/embedding-forge/internal/core/object-client"
	queueclient "github.com/markdave123-py/embedding-forge/internal/core/queue-client"
	"github.com/markdave123-py/embedding-forge/internal/services"
)

// App owns the external clients and the wired services. Clients are
// constructed once here and passed in explicitly, so tests can substitute
// fakes at any seam.
type App struct {
	Store    *db.VectorClient
	Object   *objectclient.S3Client
	Queue    *queueclient.SQSClient
	Embedder *llm.GeminiEmbedder

	Events   *services.EventService
	Poller   *services.PollerService
	Backfill *services.BackfillService
}

// NewApp connects every client and wires the pipeline. The Poller is only
// built when QUEUE_URL is configured; the backfill CLI runs without one.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewVectorClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("vector database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	chunker, err := ingestion_engine.NewChunker(cfg.ChunkTargetTokens, cfg.ChunkOverlapRatio)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, err
	}

	extractor := ingestion_engine.NewDocumentExtractor(objClient)
	embeddingService := services.NewEmbeddingService(embedder, store)
	events := services.NewEventService(extractor, chunker, embeddingService)

	a := &App{
		Store:    store,
		Object:   objClient,
		Embedder: embedder,
		Events:   events,
		Backfill: services.NewBackfillService(objClient, events.Handle, cfg.BackfillBatchSize),
	}

	if cfg.QueueURL != "" {
		queue, err := queueclient.NewSQSClient(appCtx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = queue
		a.Poller = services.NewPollerService(queue, events.Handle)
	}

	return a, nil
}

func (a *App) Close() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
