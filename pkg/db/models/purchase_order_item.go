package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// PurchaseOrderItem is one orderable line: a SKU/size pair or a misc named item.
type PurchaseOrderItem struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseOrderID uuid.UUID      `gorm:"column:purchase_order_id;type:uuid;not null"`
	ItemType        enums.ItemType `gorm:"column:item_type;type:item_type;not null"`
	SKUID           *string        `gorm:"column:sku_id"`
	SizeID          *string        `gorm:"column:size_id"`
	MiscName        *string        `gorm:"column:misc_name"`
	Code            string         `gorm:"column:code;not null"`
	Name            string         `gorm:"column:name;not null"`
	OrderedQty      int            `gorm:"column:ordered_qty;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
