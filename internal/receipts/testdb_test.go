package receipts

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-receiving/pkg/config"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var receiptsSchema = []string{`
CREATE TABLE IF NOT EXISTS purchase_orders (
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL,
  supplier_name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS purchase_order_items (
  id TEXT PRIMARY KEY,
  purchase_order_id TEXT NOT NULL,
  item_type TEXT NOT NULL,
  sku_id TEXT,
  size_id TEXT,
  misc_name TEXT,
  code TEXT NOT NULL,
  name TEXT NOT NULL,
  ordered_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS receipt_sessions (
  id TEXT PRIMARY KEY,
  purchase_order_id TEXT NOT NULL,
  workflow TEXT NOT NULL,
  name TEXT NOT NULL,
  recorded_at DATETIME NOT NULL,
  created_at DATETIME,
  UNIQUE (purchase_order_id, workflow, name)
);`, `
CREATE TABLE IF NOT EXISTS receipt_session_items (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  item_type TEXT NOT NULL,
  sku_id TEXT,
  size_id TEXT,
  misc_name TEXT,
  good_qty INTEGER NOT NULL DEFAULT 0,
  bad_qty INTEGER NOT NULL DEFAULT 0,
  samples_checked INTEGER NOT NULL DEFAULT 0,
  samples_ok INTEGER NOT NULL DEFAULT 0,
  samples_not_ok INTEGER NOT NULL DEFAULT 0,
  qc_percentage NUMERIC NOT NULL DEFAULT 0
);`, `
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
);`}

func setupReceiptsDB(t *testing.T) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := db.New(context.Background(), config.DBConfig{
		Driver:       config.DBDriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	for _, stmt := range receiptsSchema {
		require.NoError(t, client.DB().Exec(stmt).Error)
	}
	return client
}

func strPtr(value string) *string {
	return &value
}

func skuLine(skuID, sizeID, code string, ordered int) models.PurchaseOrderItem {
	return models.PurchaseOrderItem{
		ID:         uuid.New(),
		ItemType:   enums.ItemTypeSKU,
		SKUID:      strPtr(skuID),
		SizeID:     strPtr(sizeID),
		Code:       code,
		Name:       code,
		OrderedQty: ordered,
	}
}

func miscLine(name, code string, ordered int) models.PurchaseOrderItem {
	return models.PurchaseOrderItem{
		ID:         uuid.New(),
		ItemType:   enums.ItemTypeMisc,
		MiscName:   strPtr(name),
		Code:       code,
		Name:       name,
		OrderedQty: ordered,
	}
}

func seedOrder(t *testing.T, client *db.Client, status enums.PurchaseOrderStatus, items ...models.PurchaseOrderItem) models.PurchaseOrder {
	t.Helper()

	order := models.PurchaseOrder{
		ID:           uuid.New(),
		Number:       "PO-1001",
		SupplierName: "Acme Apparel",
		Status:       status,
	}
	require.NoError(t, client.DB().Create(&order).Error)
	for i := range items {
		items[i].PurchaseOrderID = order.ID
	}
	if len(items) > 0 {
		require.NoError(t, client.DB().Create(&items).Error)
	}
	order.Items = items
	return order
}

type seededRow struct {
	line      models.PurchaseOrderItem
	good, bad int
	checked   int
	ok        int
}

func seedSession(t *testing.T, client *db.Client, orderID uuid.UUID, workflow enums.Workflow, name string, at time.Time, rows ...seededRow) models.ReceiptSession {
	t.Helper()

	session := models.ReceiptSession{
		ID:              uuid.New(),
		PurchaseOrderID: orderID,
		Workflow:        workflow,
		Name:            name,
		RecordedAt:      at,
	}
	for _, row := range rows {
		session.Items = append(session.Items, models.ReceiptSessionItem{
			ID:             uuid.New(),
			ItemType:       row.line.ItemType,
			SKUID:          row.line.SKUID,
			SizeID:         row.line.SizeID,
			MiscName:       row.line.MiscName,
			GoodQty:        row.good,
			BadQty:         row.bad,
			SamplesChecked: row.checked,
			SamplesOK:      row.ok,
			SamplesNotOK:   row.checked - row.ok,
			QCPercentage:   decimal.Zero,
		})
	}
	require.NoError(t, NewRepository(client.DB()).CreateSession(context.Background(), &session))
	return session
}

func orderStatus(t *testing.T, client *db.Client, orderID uuid.UUID) enums.PurchaseOrderStatus {
	t.Helper()
	order, err := NewRepository(client.DB()).FindPurchaseOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order.Status
}
