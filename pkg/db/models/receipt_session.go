package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// ReceiptSession is a saved, immutable batch of GRN or QC quantities.
type ReceiptSession struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseOrderID uuid.UUID            `gorm:"column:purchase_order_id;type:uuid;not null"`
	Workflow        enums.Workflow       `gorm:"column:workflow;type:receipt_workflow;not null"`
	Name            string               `gorm:"column:name;not null"`
	RecordedAt      time.Time            `gorm:"column:recorded_at;not null"`
	Items           []ReceiptSessionItem `gorm:"foreignKey:SessionID"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}
