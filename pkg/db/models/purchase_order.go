package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// PurchaseOrder is the parent reference document receiving sessions are recorded against.
type PurchaseOrder struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number       string                    `gorm:"column:number;not null"`
	SupplierName string                    `gorm:"column:supplier_name;not null"`
	Status       enums.PurchaseOrderStatus `gorm:"column:status;type:purchase_order_status;not null;default:'draft'"`
	Items        []PurchaseOrderItem       `gorm:"foreignKey:PurchaseOrderID"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
