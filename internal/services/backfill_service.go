package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

// BackfillService reindexes a whole bucket outside the queue flow. Objects
// are processed in bounded batches of concurrent tasks; the next batch only
// starts after the previous one finished, which keeps per-object failure
// isolation without unbounded concurrency.
type BackfillService struct {
	obj       core.ObjectClient
	handler   EventHandler
	batchSize int
}

func NewBackfillService(obj core.ObjectClient, handler EventHandler, batchSize int) *BackfillService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &BackfillService{obj: obj, handler: handler, batchSize: batchSize}
}

// ProcessBucket lists every object under the prefix and runs each through
// the creation path of the event router. Listing failure aborts; per-object
// failures are logged and counted, never fatal.
func (s *BackfillService) ProcessBucket(ctx context.Context, bucket, prefix string) error {
	keys, err := s.obj.ListKeys(ctx, bucket, prefix)
	if err != nil {
		return fmt.Errorf("list bucket %s: %w", bucket, err)
	}

	slog.Info("processing bucket", "bucket", bucket, "prefix", prefix, "objects", len(keys))

	succeeded := 0
	batches := (len(keys) + s.batchSize - 1) / s.batchSize
	for start := 0; start < len(keys); start += s.batchSize {
		batch := keys[start:min(start+s.batchSize, len(keys))]

		results := make([]bool, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, key := range batch {
			g.Go(func() error {
				ev := models.FileChangeEvent{
					Ref:     models.FileReference{BucketName: bucket, ObjectKey: key},
					Type:    models.EventCreated,
					RawType: "backfill",
				}
				results[i] = s.handler(gctx, ev)
				return nil
			})
		}
		_ = g.Wait()

		batchSucceeded := 0
		for _, ok := range results {
			if ok {
				batchSucceeded++
			}
		}
		succeeded += batchSucceeded

		slog.Info("processed batch", "batch", start/s.batchSize+1, "batches", batches,
			"succeeded", batchSucceeded, "size", len(batch))
	}

	slog.Info("finished processing bucket", "bucket", bucket,
		"succeeded", succeeded, "objects", len(keys))
	return nil
}
