package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

func queueMsg(id, key, eventType string) core.QueueMessage {
	return core.QueueMessage{
		MessageID:     id,
		ReceiptHandle: "rh-" + id,
		Body:          fmt.Sprintf(`{"bucket":"docs","key":%q,"eventType":%q}`, key, eventType),
	}
}

// recordingHandler reports a fixed outcome per object key and remembers the
// order events arrived in.
type recordingHandler struct {
	outcomes map[string]bool
	seen     []models.FileChangeEvent
}

func (h *recordingHandler) handle(_ context.Context, ev models.FileChangeEvent) bool {
	h.seen = append(h.seen, ev)
	return h.outcomes[ev.Ref.ObjectKey]
}

func TestPollerRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Drains Until Empty Then Stops", func(t *testing.T) {
		queue := &fakeQueue{batches: [][]core.QueueMessage{
			{queueMsg("m1", "a.txt", "s3:ObjectCreated:Put")},
			{queueMsg("m2", "b.txt", "s3:ObjectCreated:Put")},
		}}
		handler := &recordingHandler{outcomes: map[string]bool{"a.txt": true, "b.txt": true}}
		poller := NewPollerService(queue, handler.handle)

		require.NoError(t, poller.Run(ctx))

		require.Len(t, handler.seen, 2)
		assert.Equal(t, "a.txt", handler.seen[0].Ref.ObjectKey)
		assert.Equal(t, "b.txt", handler.seen[1].Ref.ObjectKey)
		assert.Equal(t, []string{"rh-m1", "rh-m2"}, queue.deleted)
	})

	t.Run("Deletes Only Successful Messages", func(t *testing.T) {
		queue := &fakeQueue{batches: [][]core.QueueMessage{{
			queueMsg("m1", "good.txt", "s3:ObjectCreated:Put"),
			queueMsg("m2", "bad.txt", "s3:ObjectCreated:Put"),
			queueMsg("m3", "also-good.txt", "s3:ObjectCreated:Put"),
		}}}
		handler := &recordingHandler{outcomes: map[string]bool{
			"good.txt":      true,
			"bad.txt":       false,
			"also-good.txt": true,
		}}
		poller := NewPollerService(queue, handler.handle)

		require.NoError(t, poller.Run(ctx))

		assert.Equal(t, []string{"rh-m1", "rh-m3"}, queue.deleted,
			"the failed message stays queued for redelivery")
		assert.Len(t, handler.seen, 3, "one failure never skips the rest of the batch")
	})

	t.Run("Malformed Message Keeps Its Slot", func(t *testing.T) {
		queue := &fakeQueue{batches: [][]core.QueueMessage{{
			{MessageID: "m1", ReceiptHandle: "rh-m1", Body: "not json"},
			queueMsg("m2", "fine.txt", "s3:ObjectRemoved:Delete"),
			{MessageID: "m3", ReceiptHandle: "rh-m3", Body: `{"bucket":"docs","key":""}`},
		}}}
		handler := &recordingHandler{outcomes: map[string]bool{"fine.txt": true}}
		poller := NewPollerService(queue, handler.handle)

		require.NoError(t, poller.Run(ctx))

		require.Len(t, handler.seen, 1, "unparseable messages never reach the handler")
		assert.Equal(t, models.EventRemoved, handler.seen[0].Type)
		assert.Equal(t, []string{"rh-m2"}, queue.deleted)
	})

	t.Run("Receive Error Aborts Run", func(t *testing.T) {
		queue := &fakeQueue{receiveErr: errors.New("access denied")}
		handler := &recordingHandler{}
		poller := NewPollerService(queue, handler.handle)

		err := poller.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "receive messages")
		assert.Empty(t, handler.seen)
	})

	t.Run("Delete Failure Does Not Stop The Batch", func(t *testing.T) {
		queue := &fakeQueue{
			batches: [][]core.QueueMessage{{
				queueMsg("m1", "a.txt", "s3:ObjectCreated:Put"),
				queueMsg("m2", "b.txt", "s3:ObjectCreated:Put"),
			}},
			deleteErr: map[string]error{"rh-m1": errors.New("receipt expired")},
		}
		handler := &recordingHandler{outcomes: map[string]bool{"a.txt": true, "b.txt": true}}
		poller := NewPollerService(queue, handler.handle)

		require.NoError(t, poller.Run(ctx))
		assert.Equal(t, []string{"rh-m2"}, queue.deleted)
	})

	t.Run("Empty Queue", func(t *testing.T) {
		queue := &fakeQueue{}
		handler := &recordingHandler{}
		poller := NewPollerService(queue, handler.handle)

		require.NoError(t, poller.Run(ctx))
		assert.Empty(t, handler.seen)
		assert.Empty(t, queue.deleted)
	})
}

func TestParseMessage(t *testing.T) {
	t.Run("Valid Body", func(t *testing.T) {
		ev, err := parseMessage(queueMsg("m1", "a/b.txt", "s3:ObjectCreated:CompleteMultipartUpload"))
		require.NoError(t, err)

		assert.Equal(t, "docs", ev.Ref.BucketName)
		assert.Equal(t, "a/b.txt", ev.Ref.ObjectKey)
		assert.Equal(t, models.EventUpdated, ev.Type)
		assert.Equal(t, "s3:ObjectCreated:CompleteMultipartUpload", ev.RawType)
		assert.Equal(t, "m1", ev.MessageID)
	})

	t.Run("Empty Body", func(t *testing.T) {
		_, err := parseMessage(core.QueueMessage{MessageID: "m1", Body: "  "})
		assert.Error(t, err)
	})

	t.Run("Missing Bucket", func(t *testing.T) {
		_, err := parseMessage(core.QueueMessage{
			MessageID: "m1",
			Body:      `{"key":"a.txt","eventType":"s3:ObjectCreated:Put"}`,
		})
		assert.Error(t, err)
	})
}
