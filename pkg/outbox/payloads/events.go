package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// ReceiptSessionSavedEvent is emitted when a GRN or QC session is committed.
type ReceiptSessionSavedEvent struct {
	PurchaseOrderID uuid.UUID      `json:"purchase_order_id"`
	SessionID       uuid.UUID      `json:"session_id"`
	Workflow        enums.Workflow `json:"workflow"`
	Name            string         `json:"name"`
	RecordedAt      time.Time      `json:"recorded_at"`
	ItemCount       int            `json:"item_count"`
	TotalQuantity   int            `json:"total_quantity"`
}

// ReceiptSessionDeletedEvent is emitted when a saved session is removed.
type ReceiptSessionDeletedEvent struct {
	PurchaseOrderID uuid.UUID      `json:"purchase_order_id"`
	SessionID       uuid.UUID      `json:"session_id"`
	Workflow        enums.Workflow `json:"workflow"`
	Name            string         `json:"name"`
}

// PurchaseOrderStatusAdvancedEvent is emitted when receiving moves the order to a new status.
type PurchaseOrderStatusAdvancedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	From            enums.PurchaseOrderStatus `json:"from"`
	To              enums.PurchaseOrderStatus `json:"to"`
	Workflow        enums.Workflow            `json:"workflow"`
}
