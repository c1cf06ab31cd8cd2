package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// ReceiptSessionItem stores one item's quantities inside a saved session. GRN rows use
// good/bad quantities; QC rows persist the sampling outcome including derived fields.
type ReceiptSessionItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID      uuid.UUID       `gorm:"column:session_id;type:uuid;not null"`
	ItemType       enums.ItemType  `gorm:"column:item_type;type:item_type;not null"`
	SKUID          *string         `gorm:"column:sku_id"`
	SizeID         *string         `gorm:"column:size_id"`
	MiscName       *string         `gorm:"column:misc_name"`
	GoodQty        int             `gorm:"column:good_qty;not null;default:0"`
	BadQty         int             `gorm:"column:bad_qty;not null;default:0"`
	SamplesChecked int             `gorm:"column:samples_checked;not null;default:0"`
	SamplesOK      int             `gorm:"column:samples_ok;not null;default:0"`
	SamplesNotOK   int             `gorm:"column:samples_not_ok;not null;default:0"`
	QCPercentage   decimal.Decimal `gorm:"column:qc_percentage;type:numeric(5,2);not null;default:0"`
}
