package receipts

import (
	"github.com/angelmondragon/packfinderz-receiving/internal/reconciliation"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func itemKey(itemType enums.ItemType, skuID, sizeID, miscName *string) reconciliation.ItemKey {
	if itemType == enums.ItemTypeMisc {
		return reconciliation.NewMiscKey(deref(miscName))
	}
	return reconciliation.NewSKUKey(deref(skuID), deref(sizeID))
}

func orderItemKey(item models.PurchaseOrderItem) reconciliation.ItemKey {
	return itemKey(item.ItemType, item.SKUID, item.SizeID, item.MiscName)
}

func sessionItemKey(item models.ReceiptSessionItem) reconciliation.ItemKey {
	return itemKey(item.ItemType, item.SKUID, item.SizeID, item.MiscName)
}

func trackedItem(item models.PurchaseOrderItem, baseline int) reconciliation.TrackedItem {
	return reconciliation.TrackedItem{
		Key:      orderItemKey(item),
		ItemID:   item.ID.String(),
		Code:     item.Code,
		Name:     item.Name,
		Baseline: baseline,
	}
}

func storedSessions(rows []models.ReceiptSession) []reconciliation.StoredSession {
	out := make([]reconciliation.StoredSession, 0, len(rows))
	for _, row := range rows {
		session := reconciliation.StoredSession{
			ID:        row.ID.String(),
			Name:      row.Name,
			Timestamp: row.RecordedAt,
			Rows:      make([]reconciliation.StoredRow, 0, len(row.Items)),
		}
		for _, item := range row.Items {
			session.Rows = append(session.Rows, reconciliation.StoredRow{
				RowID: item.ID.String(),
				SerializedEntry: reconciliation.SerializedEntry{
					Key:            sessionItemKey(item),
					GoodQuantity:   item.GoodQty,
					BadQuantity:    item.BadQty,
					SamplesChecked: item.SamplesChecked,
					SamplesOK:      item.SamplesOK,
					SamplesNotOK:   item.SamplesNotOK,
					QCPercentage:   item.QCPercentage.InexactFloat64(),
				},
			})
		}
		out = append(out, session)
	}
	return out
}

func sessionItems(sessionID uuid.UUID, entries []reconciliation.SerializedEntry) []models.ReceiptSessionItem {
	out := make([]models.ReceiptSessionItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, models.ReceiptSessionItem{
			ID:             uuid.New(),
			SessionID:      sessionID,
			ItemType:       entry.Key.Type,
			SKUID:          optional(entry.Key.SKUID),
			SizeID:         optional(entry.Key.SizeID),
			MiscName:       optional(entry.Key.MiscName),
			GoodQty:        entry.GoodQuantity,
			BadQty:         entry.BadQuantity,
			SamplesChecked: entry.SamplesChecked,
			SamplesOK:      entry.SamplesOK,
			SamplesNotOK:   entry.SamplesNotOK,
			QCPercentage:   decimal.NewFromFloat(entry.QCPercentage).Round(2),
		})
	}
	return out
}

// sumByKey totals one quantity per item identity across saved sessions.
func sumByKey(sessions []models.ReceiptSession, quantity func(models.ReceiptSessionItem) int) map[reconciliation.ItemKey]int {
	totals := make(map[reconciliation.ItemKey]int)
	for _, session := range sessions {
		for _, item := range session.Items {
			totals[sessionItemKey(item)] += quantity(item)
		}
	}
	return totals
}

func goodQuantity(item models.ReceiptSessionItem) int { return item.GoodQty }

func receivedQuantity(item models.ReceiptSessionItem) int { return item.GoodQty + item.BadQty }

func checkedQuantity(item models.ReceiptSessionItem) int { return item.SamplesChecked }

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
