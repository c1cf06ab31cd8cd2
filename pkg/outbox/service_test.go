package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox/payloads"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  request_id TEXT,
  payload BLOB NOT NULL,
  occurred_at DATETIME NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(outboxEvents).Error)
	return db
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	sessionID := uuid.New()
	requestID := "req-" + uuid.NewString()
	event := DomainEvent{
		EventType:     enums.EventReceiptSessionSaved,
		AggregateType: enums.AggregateReceiptSession,
		AggregateID:   sessionID,
		RequestID:     requestID,
		Data: payloads.ReceiptSessionSavedEvent{
			SessionID:     sessionID,
			Workflow:      enums.WorkflowGRN,
			Name:          "Jan-Office",
			ItemCount:     1,
			TotalQuantity: 50,
		},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	})
	require.NoError(t, err)

	rows, err := repo.ListForAggregate(enums.AggregateReceiptSession, sessionID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventReceiptSessionSaved, rows[0].EventType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, requestID, envelope.RequestID)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.Equal(t, enums.EventReceiptSessionSaved, envelope.EventType)
	assert.Equal(t, sessionID.String(), envelope.AggregateID)
	require.NotNil(t, rows[0].RequestID)
	assert.Equal(t, requestID, *rows[0].RequestID)
	assert.False(t, rows[0].OccurredAt.IsZero())

	var data payloads.ReceiptSessionSavedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "Jan-Office", data.Name)
	assert.Equal(t, 50, data.TotalQuantity)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	assert.Error(t, err)
}

func TestListByRequestGroupsOneRequest(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	requestID := "req-" + uuid.NewString()
	orderID := uuid.New()
	sessionID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventReceiptSessionSaved,
			AggregateType: enums.AggregateReceiptSession,
			AggregateID:   sessionID,
			RequestID:     requestID,
			Data:          payloads.ReceiptSessionSavedEvent{SessionID: sessionID},
		}); err != nil {
			return err
		}
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPurchaseOrderStatusAdvanced,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   orderID,
			RequestID:     requestID,
			Data:          payloads.PurchaseOrderStatusAdvancedEvent{PurchaseOrderID: orderID},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByRequest(requestID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: "order_shipped"})
	})
	assert.Error(t, err)
}
