package receipts

import (
	"context"

	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for purchase orders and receipt sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	LockPurchaseOrder(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseOrderStatus) error
	ListSessions(ctx context.Context, purchaseOrderID uuid.UUID, workflow enums.Workflow) ([]models.ReceiptSession, error)
	FindSession(ctx context.Context, purchaseOrderID, sessionID uuid.UUID, workflow enums.Workflow) (*models.ReceiptSession, error)
	CountSessions(ctx context.Context, purchaseOrderID uuid.UUID, workflow enums.Workflow) (int64, error)
	CreateSession(ctx context.Context, session *models.ReceiptSession) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
