package receipts

import (
	"context"

	"github.com/angelmondragon/packfinderz-receiving/internal/repo"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	repo.Base
}

// NewRepository builds a receipts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.DB(ctx).
		Preload("Items", orderedItems).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockPurchaseOrder reads the order with a row lock so concurrent saves serialize on it.
func (r *repository) LockPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.ForUpdate(ctx).
		Preload("Items", orderedItems).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdatePurchaseOrderStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseOrderStatus) error {
	res := r.DB(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ?", id).
		Update("status", status)
	return repo.RequireAffected(res)
}

func (r *repository) ListSessions(ctx context.Context, purchaseOrderID uuid.UUID, workflow enums.Workflow) ([]models.ReceiptSession, error) {
	var rows []models.ReceiptSession
	err := r.DB(ctx).
		Preload("Items").
		Where("purchase_order_id = ? AND workflow = ?", purchaseOrderID, workflow).
		Order("recorded_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindSession(ctx context.Context, purchaseOrderID, sessionID uuid.UUID, workflow enums.Workflow) (*models.ReceiptSession, error) {
	var session models.ReceiptSession
	err := r.DB(ctx).
		Preload("Items").
		Where("id = ? AND purchase_order_id = ? AND workflow = ?", sessionID, purchaseOrderID, workflow).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) CountSessions(ctx context.Context, purchaseOrderID uuid.UUID, workflow enums.Workflow) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.ReceiptSession{}).
		Where("purchase_order_id = ? AND workflow = ?", purchaseOrderID, workflow).
		Count(&count).Error
	return count, err
}

// CreateSession inserts the session and its rows.
func (r *repository) CreateSession(ctx context.Context, session *models.ReceiptSession) error {
	return r.DB(ctx).Create(session).Error
}

func (r *repository) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.DB(ctx).Where("session_id = ?", sessionID).Delete(&models.ReceiptSessionItem{}).Error; err != nil {
		return err
	}
	return repo.RequireAffected(r.DB(ctx).Where("id = ?", sessionID).Delete(&models.ReceiptSession{}))
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("code ASC").Order("id ASC")
}
