package receipts

import (
	"context"

	"github.com/angelmondragon/packfinderz-receiving/internal/reconciliation"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// nextStatus derives the order status implied by the saved sessions of one workflow.
// Statuses outside the workflow's range are returned unchanged.
func nextStatus(ctx context.Context, repo Repository, order *models.PurchaseOrder, workflow enums.Workflow) (enums.PurchaseOrderStatus, error) {
	switch workflow {
	case enums.WorkflowGRN:
		return nextGRNStatus(ctx, repo, order)
	case enums.WorkflowQC:
		return nextQCStatus(ctx, repo, order)
	}
	return order.Status, nil
}

func nextGRNStatus(ctx context.Context, repo Repository, order *models.PurchaseOrder) (enums.PurchaseOrderStatus, error) {
	switch order.Status {
	case enums.PurchaseOrderStatusIssued,
		enums.PurchaseOrderStatusPartiallyReceived,
		enums.PurchaseOrderStatusReceived:
	default:
		return order.Status, nil
	}

	sessions, err := repo.ListSessions(ctx, order.ID, enums.WorkflowGRN)
	if err != nil {
		return "", err
	}
	received := sumByKey(sessions, receivedQuantity)

	total := 0
	complete := len(order.Items) > 0
	for _, item := range order.Items {
		got := received[orderItemKey(item)]
		total += got
		if got < item.OrderedQty {
			complete = false
		}
	}
	switch {
	case total == 0:
		return enums.PurchaseOrderStatusIssued, nil
	case complete:
		return enums.PurchaseOrderStatusReceived, nil
	default:
		return enums.PurchaseOrderStatusPartiallyReceived, nil
	}
}

func nextQCStatus(ctx context.Context, repo Repository, order *models.PurchaseOrder) (enums.PurchaseOrderStatus, error) {
	if order.Status != enums.PurchaseOrderStatusReceived && order.Status != enums.PurchaseOrderStatusInspected {
		return order.Status, nil
	}

	baseline, err := receivedBaseline(ctx, repo, order)
	if err != nil {
		return "", err
	}
	sessions, err := repo.ListSessions(ctx, order.ID, enums.WorkflowQC)
	if err != nil {
		return "", err
	}
	checked := sumByKey(sessions, checkedQuantity)

	inspected := len(baseline) > 0
	for key, qty := range baseline {
		if checked[key] < qty {
			inspected = false
			break
		}
	}
	if inspected {
		return enums.PurchaseOrderStatusInspected, nil
	}
	return enums.PurchaseOrderStatusReceived, nil
}

// receivedBaseline is the QC baseline: good quantity received per item across saved GRN
// sessions. Items nothing good was received for are left out.
func receivedBaseline(ctx context.Context, repo Repository, order *models.PurchaseOrder) (map[reconciliation.ItemKey]int, error) {
	sessions, err := repo.ListSessions(ctx, order.ID, enums.WorkflowGRN)
	if err != nil {
		return nil, err
	}
	good := sumByKey(sessions, goodQuantity)
	out := make(map[reconciliation.ItemKey]int, len(good))
	for key, qty := range good {
		if qty > 0 {
			out[key] = qty
		}
	}
	return out, nil
}
