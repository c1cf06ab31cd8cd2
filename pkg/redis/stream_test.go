package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPublisherAppends(t *testing.T) {
	mock := newMockCmdable()
	pub, err := NewStreamPublisher(&Client{store: mock}, "receiving.events", 1000)
	require.NoError(t, err)

	occurred := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	id, err := pub.Append(context.Background(), StreamMessage{
		EventID:     "evt-1",
		EventType:   "receipt_session_saved",
		AggregateID: "sess-1",
		OccurredAt:  occurred,
		Payload:     []byte(`{"version":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "1-1", id)

	entries := mock.streams["receiving.events"]
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-1", entries[0]["event_id"])
	assert.Equal(t, `{"version":1}`, entries[0]["payload"])
	assert.Equal(t, "2026-01-10T09:00:00Z", entries[0]["occurred_at"])
	assert.NotContains(t, entries[0], "request_id")
}

func TestStreamPublisherErrors(t *testing.T) {
	_, err := NewStreamPublisher(&Client{}, "s", 0)
	assert.Error(t, err)
	_, err = NewStreamPublisher(&Client{store: newMockCmdable()}, "", 0)
	assert.Error(t, err)

	mock := newMockCmdable()
	mock.xaddErr = errors.New("READONLY")
	pub, err := NewStreamPublisher(&Client{store: mock}, "s", 0)
	require.NoError(t, err)
	_, err = pub.Append(context.Background(), StreamMessage{EventID: "e"})
	require.ErrorContains(t, err, "READONLY")
}
