package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

// In-memory doubles for the infra interfaces. Each exposes failure switches
// so tests can force a specific stage to break.

type fakeQueue struct {
	batches    [][]core.QueueMessage
	receiveErr error
	deleted    []string
	deleteErr  map[string]error

	calls int
}

func (q *fakeQueue) ReceiveMessages(_ context.Context, _ int32, _ time.Duration) ([]core.QueueMessage, error) {
	if q.receiveErr != nil {
		return nil, q.receiveErr
	}
	if q.calls >= len(q.batches) {
		return nil, nil
	}
	batch := q.batches[q.calls]
	q.calls++
	return batch, nil
}

func (q *fakeQueue) DeleteMessage(_ context.Context, receiptHandle string) error {
	if err := q.deleteErr[receiptHandle]; err != nil {
		return err
	}
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

type fakeObject struct {
	files    map[string][]byte
	listKeys []string
	listErr  error
}

func (o *fakeObject) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := o.files[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, core.ErrObjectNotFound)
	}
	return data, nil
}

func (o *fakeObject) DeleteFile(context.Context, string, string) error { return nil }

func (o *fakeObject) ListKeys(context.Context, string, string) ([]string, error) {
	return o.listKeys, o.listErr
}

type fakeEmbedder struct {
	err   error
	short bool // return one vector fewer than requested
	calls int
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	n := len(texts)
	if e.short && n > 0 {
		n--
	}
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = []float32{float32(i), float32(len(texts[i]))}
	}
	return vecs, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.EmbeddingRecord

	failUpsertIDs map[string]bool
	listErr       error
	deleteErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]models.EmbeddingRecord{}}
}

func (s *fakeStore) UpsertRecord(_ context.Context, rec models.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsertIDs[rec.ID] {
		return errors.New("upsert rejected")
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) ListIDsByPrefix(_ context.Context, prefix string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.records {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) DeleteByIDs(_ context.Context, ids []string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *fakeStore) DeleteByFilter(_ context.Context, filter core.RecordFilter) error {
	if filter == (core.RecordFilter{}) {
		return errors.New("empty record filter")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if filter.BucketName != "" && rec.Meta.BucketName != filter.BucketName {
			continue
		}
		if filter.ObjectKey != "" && rec.Meta.ObjectKey != filter.ObjectKey {
			continue
		}
		if filter.FileType != "" && rec.Meta.FileType != filter.FileType {
			continue
		}
		delete(s.records, id)
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fakeExtractor returns canned documents per object key without touching
// storage, for tests that only exercise routing.
type fakeExtractor struct {
	docs  map[string][]models.TextDocument
	errs  map[string]error
	calls int
}

func (e *fakeExtractor) FetchAndParse(_ context.Context, ref models.FileReference) ([]models.TextDocument, error) {
	e.calls++
	if err, ok := e.errs[ref.ObjectKey]; ok {
		return nil, err
	}
	docs, ok := e.docs[ref.ObjectKey]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref.ObjectKey, core.ErrObjectNotFound)
	}
	return docs, nil
}
