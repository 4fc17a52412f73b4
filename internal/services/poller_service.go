package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

const (
	maxBatchMessages = 10
	pollWait         = 10 * time.Second
)

// EventHandler processes one parsed event and reports whether its message
// may be removed from the queue.
type EventHandler func(ctx context.Context, ev models.FileChangeEvent) bool

// queueMessageBody is the JSON envelope carried by each queue message.
type queueMessageBody struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	EventType string `json:"eventType"`
}

// PollerService drains the queue: it long-polls for message batches, hands
// each message to the event handler, and deletes exactly the messages whose
// handling succeeded. Failed messages stay queued for provider-level
// redelivery; there is no local retry.
type PollerService struct {
	queue   core.QueueClient
	handler EventHandler
}

func NewPollerService(queue core.QueueClient, handler EventHandler) *PollerService {
	return &PollerService{queue: queue, handler: handler}
}

// Run polls until an empty response ends the drain. A receive error aborts
// the run; the error is logged here and returned for the caller's exit code,
// never retried.
func (s *PollerService) Run(ctx context.Context) error {
	log := slog.With("run_id", uuid.NewString())
	log.Info("starting queue polling")

	var seen, deleted int
	for {
		msgs, err := s.queue.ReceiveMessages(ctx, maxBatchMessages, pollWait)
		if err != nil {
			log.Error("error polling messages", "error", err)
			return fmt.Errorf("receive messages: %w", err)
		}
		if len(msgs) == 0 {
			log.Info("no messages received, ending polling")
			break
		}

		log.Info("received messages", "count", len(msgs))
		seen += len(msgs)

		outcomes := s.processBatch(ctx, msgs)

		batchDeleted := 0
		for i, ok := range outcomes {
			if !ok {
				continue
			}
			if err := s.queue.DeleteMessage(ctx, msgs[i].ReceiptHandle); err != nil {
				log.Error("failed to delete message", "message_id", msgs[i].MessageID, "error", err)
				continue
			}
			batchDeleted++
		}
		deleted += batchDeleted

		log.Info("processed batch", "received", len(msgs), "deleted", batchDeleted)
	}

	log.Info("finished queue drain", "messages_seen", seen, "messages_deleted", deleted)
	return nil
}

// processBatch parses and handles every message, returning one outcome per
// input message in input order. A message that fails to parse keeps its
// slot false; one file's failure never touches another file's outcome.
func (s *PollerService) processBatch(ctx context.Context, msgs []core.QueueMessage) []bool {
	outcomes := make([]bool, len(msgs))

	events := make([]*models.FileChangeEvent, len(msgs))
	parsed := 0
	for i, m := range msgs {
		ev, err := parseMessage(m)
		if err != nil {
			slog.Error("error parsing message", "message_id", m.MessageID, "error", err)
			continue
		}
		events[i] = ev
		parsed++
	}
	slog.Info("parsed messages", "parsed", parsed, "received", len(msgs))

	for i, ev := range events {
		if ev == nil {
			continue
		}
		outcomes[i] = s.handler(ctx, *ev)
	}

	return outcomes
}

func parseMessage(m core.QueueMessage) (*models.FileChangeEvent, error) {
	if strings.TrimSpace(m.Body) == "" {
		return nil, fmt.Errorf("message has no body")
	}

	var body queueMessageBody
	if err := json.Unmarshal([]byte(m.Body), &body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if body.Bucket == "" || body.Key == "" {
		return nil, fmt.Errorf("message missing bucket or key")
	}

	return &models.FileChangeEvent{
		Ref:       models.FileReference{BucketName: body.Bucket, ObjectKey: body.Key},
		Type:      models.ParseEventType(body.EventType),
		RawType:   body.EventType,
		MessageID: m.MessageID,
	}, nil
}
