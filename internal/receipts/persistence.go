package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-receiving/internal/reconciliation"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PersistenceParams wires a Persistence.
type PersistenceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Workflow  reconciliation.Workflow
	RequestID string
	Clock     func() time.Time
}

// Persistence stores the sessions of one workflow in the receipt tables. Saves and deletes
// run in one transaction together with the status update and outbox events.
type Persistence struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	workflow  reconciliation.Workflow
	requestID string
	clock     func() time.Time
}

var _ reconciliation.Persistence = (*Persistence)(nil)

// NewPersistence builds the gorm-backed session persistence. Outbox is optional.
func NewPersistence(params PersistenceParams) (*Persistence, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("receipts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Workflow == nil {
		return nil, fmt.Errorf("workflow required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Persistence{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		workflow:  params.Workflow,
		requestID: params.RequestID,
		clock:     clock,
	}, nil
}

func (p *Persistence) LoadSessions(ctx context.Context, referenceID string) (*reconciliation.Snapshot, error) {
	orderID, err := parseReference(referenceID)
	if err != nil {
		return nil, err
	}
	order, err := p.repo.FindPurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, orderLookupError(err)
	}

	items, err := p.baselineItems(ctx, p.repo, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load baseline items")
	}
	sessions, err := p.repo.ListSessions(ctx, orderID, p.workflow.Kind())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list receipt sessions")
	}

	return &reconciliation.Snapshot{
		Status:   order.Status,
		Items:    items,
		Sessions: storedSessions(sessions),
	}, nil
}

func (p *Persistence) SaveSession(ctx context.Context, referenceID, name string, entries []reconciliation.SerializedEntry) (string, error) {
	orderID, err := parseReference(referenceID)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session has no entries")
	}
	for _, entry := range entries {
		if err := entry.Key.Validate(); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry identity")
		}
	}

	sessionID := uuid.New()
	recordedAt := p.clock().UTC()
	kind := p.workflow.Kind()

	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		order, err := repo.LockPurchaseOrder(ctx, orderID)
		if err != nil {
			return orderLookupError(err)
		}
		if !p.workflow.OpenFor(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf(
				"purchase order is %s; %s sessions cannot be recorded", order.Status, kind,
			))
		}
		if err := p.checkCapacity(ctx, repo, order, entries); err != nil {
			return err
		}

		session := models.ReceiptSession{
			ID:              sessionID,
			PurchaseOrderID: orderID,
			Workflow:        kind,
			Name:            name,
			RecordedAt:      recordedAt,
			Items:           sessionItems(sessionID, entries),
		}
		if err := repo.CreateSession(ctx, &session); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("a %s session named %q already exists", kind, name))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create receipt session")
		}

		if err := p.emit(ctx, tx, enums.EventReceiptSessionSaved, enums.AggregateReceiptSession, sessionID, payloads.ReceiptSessionSavedEvent{
			PurchaseOrderID: orderID,
			SessionID:       sessionID,
			Workflow:        kind,
			Name:            name,
			RecordedAt:      recordedAt,
			ItemCount:       len(entries),
			TotalQuantity:   p.totalQuantity(entries),
		}); err != nil {
			return err
		}
		return p.advanceStatus(ctx, tx, repo, order)
	})
	if err != nil {
		return "", err
	}
	return sessionID.String(), nil
}

func (p *Persistence) DeleteSession(ctx context.Context, sessionID, referenceID string) error {
	orderID, err := parseReference(referenceID)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid session id")
	}
	kind := p.workflow.Kind()

	return p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		order, err := repo.LockPurchaseOrder(ctx, orderID)
		if err != nil {
			return orderLookupError(err)
		}
		if order.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "purchase order is %s", order.Status)
		}
		session, err := repo.FindSession(ctx, orderID, id, kind)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "receipt session not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt session")
		}
		if kind == enums.WorkflowGRN {
			inspected, err := repo.CountSessions(ctx, orderID, enums.WorkflowQC)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count qc sessions")
			}
			if inspected > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "goods receipts cannot be deleted once quality control has started")
			}
		}

		if err := repo.DeleteSession(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete receipt session")
		}
		if err := p.emit(ctx, tx, enums.EventReceiptSessionDeleted, enums.AggregateReceiptSession, id, payloads.ReceiptSessionDeletedEvent{
			PurchaseOrderID: orderID,
			SessionID:       id,
			Workflow:        kind,
			Name:            session.Name,
		}); err != nil {
			return err
		}
		return p.advanceStatus(ctx, tx, repo, order)
	})
}

func (p *Persistence) baselineItems(ctx context.Context, repo Repository, order *models.PurchaseOrder) ([]reconciliation.TrackedItem, error) {
	items := make([]reconciliation.TrackedItem, 0, len(order.Items))
	if p.workflow.Kind() != enums.WorkflowQC {
		for _, item := range order.Items {
			items = append(items, trackedItem(item, item.OrderedQty))
		}
		return items, nil
	}

	received, err := receivedBaseline(ctx, repo, order)
	if err != nil {
		return nil, err
	}
	for _, item := range order.Items {
		if qty, ok := received[orderItemKey(item)]; ok {
			items = append(items, trackedItem(item, qty))
		}
	}
	return items, nil
}

func (p *Persistence) advanceStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.PurchaseOrder) error {
	next, err := nextStatus(ctx, repo, order, p.workflow.Kind())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive purchase order status")
	}
	if next == order.Status {
		return nil
	}
	if err := repo.UpdatePurchaseOrderStatus(ctx, order.ID, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
	}
	return p.emit(ctx, tx, enums.EventPurchaseOrderStatusAdvanced, enums.AggregatePurchaseOrder, order.ID, payloads.PurchaseOrderStatusAdvancedEvent{
		PurchaseOrderID: order.ID,
		From:            order.Status,
		To:              next,
		Workflow:        p.workflow.Kind(),
	})
}

func (p *Persistence) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, data any) error {
	if p.outbox == nil {
		return nil
	}
	err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		RequestID:     p.requestID,
		Data:          data,
		OccurredAt:    p.clock().UTC(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit outbox event")
	}
	return nil
}

// checkCapacity re-reads committed sessions under the order lock. The entries were validated
// against the pending seen at load time, and another save may have committed since.
func (p *Persistence) checkCapacity(ctx context.Context, repo Repository, order *models.PurchaseOrder, entries []reconciliation.SerializedEntry) error {
	items, err := p.baselineItems(ctx, repo, order)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load baseline items")
	}
	baseline := make(map[reconciliation.ItemKey]int, len(items))
	for _, item := range items {
		baseline[item.Key] = item.Baseline
	}
	sessions, err := repo.ListSessions(ctx, order.ID, p.workflow.Kind())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list receipt sessions")
	}
	recorded := sumByKey(sessions, p.rowQuantity)

	for _, entry := range entries {
		limit, ok := baseline[entry.Key]
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "item %s is no longer open for %s", entry.Key, p.workflow.Kind())
		}
		if recorded[entry.Key]+p.entryQuantity(entry) > limit {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"item %s changed since it was loaded: %d of %d already recorded; reload and try again",
				entry.Key, recorded[entry.Key], limit,
			)
		}
	}
	return nil
}

func (p *Persistence) entryQuantity(entry reconciliation.SerializedEntry) int {
	if p.workflow.Kind() == enums.WorkflowQC {
		return entry.SamplesChecked
	}
	return entry.GoodQuantity + entry.BadQuantity
}

func (p *Persistence) rowQuantity(item models.ReceiptSessionItem) int {
	if p.workflow.Kind() == enums.WorkflowQC {
		return checkedQuantity(item)
	}
	return receivedQuantity(item)
}

func (p *Persistence) totalQuantity(entries []reconciliation.SerializedEntry) int {
	total := 0
	for _, entry := range entries {
		total += p.entryQuantity(entry)
	}
	return total
}

func parseReference(referenceID string) (uuid.UUID, error) {
	id, err := uuid.Parse(referenceID)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid purchase order id")
	}
	return id, nil
}

func orderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
}
