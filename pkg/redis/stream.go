package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher appends outbox messages to a redis stream, trimmed approximately to
// maxLen entries.
type StreamPublisher struct {
	client *Client
	stream string
	maxLen int64
}

// StreamMessage is one entry appended by StreamPublisher.
type StreamMessage struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
	RequestID     string
	OccurredAt    time.Time
	Payload       []byte
}

func NewStreamPublisher(client *Client, stream string, maxLen int64) (*StreamPublisher, error) {
	if err := client.ready(); err != nil {
		return nil, err
	}
	if stream == "" {
		return nil, errors.New("stream name is required")
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}, nil
}

// Append adds msg to the stream and returns the entry id.
func (p *StreamPublisher) Append(ctx context.Context, msg StreamMessage) (string, error) {
	values := map[string]any{
		"event_id":       msg.EventID,
		"event_type":     msg.EventType,
		"aggregate_type": msg.AggregateType,
		"aggregate_id":   msg.AggregateID,
		"occurred_at":    msg.OccurredAt.UTC().Format(time.RFC3339Nano),
		"payload":        string(msg.Payload),
	}
	if msg.RequestID != "" {
		values["request_id"] = msg.RequestID
	}
	args := &redis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.store.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
