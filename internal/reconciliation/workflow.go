package reconciliation

import (
	"fmt"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
)

// Workflow adapts the generic session machinery to one receiving stage.
type Workflow interface {
	Kind() enums.Workflow
	Fields() []Field
	PendingOptions() PendingOptions
	Validate(entry Entry, update EntryFieldUpdate) (Outcome, error)
	// Active reports whether the entry carries anything worth persisting.
	Active(entry Entry) bool
	Serialize(entry Entry) SerializedEntry
	Hydrate(item TrackedItem, row StoredRow) Entry
	// OpenFor reports whether a new unsaved session may be started for the order status.
	OpenFor(status enums.PurchaseOrderStatus) bool
}

// WorkflowFor returns the adapter for a workflow kind.
func WorkflowFor(kind enums.Workflow) (Workflow, error) {
	switch kind {
	case enums.WorkflowGRN:
		return GRN{}, nil
	case enums.WorkflowQC:
		return QC{}, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown workflow %q", kind)
}

// GRN records good and bad quantities received against the ordered quantity.
type GRN struct{}

func (GRN) Kind() enums.Workflow { return enums.WorkflowGRN }

func (GRN) Fields() []Field {
	return []Field{FieldGoodQuantity, FieldBadQuantity}
}

func (g GRN) PendingOptions() PendingOptions {
	return PendingOptions{Fields: g.Fields()}
}

func (g GRN) Validate(entry Entry, update EntryFieldUpdate) (Outcome, error) {
	if err := checkEntry(entry); err != nil {
		return Outcome{}, err
	}

	var other int
	var otherField Field
	switch update.(type) {
	case GoodQuantity:
		other, otherField = entry.BadQuantity, FieldBadQuantity
	case BadQuantity:
		other, otherField = entry.GoodQuantity, FieldGoodQuantity
	default:
		return Outcome{}, unsupportedUpdate(g.Kind(), update)
	}

	value := update.Value()
	if value < 0 {
		return rejectNegative(entry, update), nil
	}
	if value+other > entry.Pending {
		limit := max(entry.Pending-other, 0)
		return rejectLimit(entry, update, limit, fmt.Sprintf(
			"%s for %s cannot exceed %d (pending %d, %s %d)",
			update.Field(), entry.Code, limit, entry.Pending, otherField, other,
		)), nil
	}

	next := entry
	if update.Field() == FieldGoodQuantity {
		next.GoodQuantity = value
	} else {
		next.BadQuantity = value
	}
	return Outcome{Entry: next.withDerived()}, nil
}

func (GRN) Active(entry Entry) bool {
	return entry.GoodQuantity+entry.BadQuantity > 0
}

func (GRN) Serialize(entry Entry) SerializedEntry {
	return SerializedEntry{
		Key:          entry.Key,
		GoodQuantity: entry.GoodQuantity,
		BadQuantity:  entry.BadQuantity,
	}
}

func (GRN) Hydrate(item TrackedItem, row StoredRow) Entry {
	entry := newEntry(item)
	entry.GoodQuantity = row.GoodQuantity
	entry.BadQuantity = row.BadQuantity
	return entry
}

func (GRN) OpenFor(status enums.PurchaseOrderStatus) bool {
	return status == enums.PurchaseOrderStatusIssued ||
		status == enums.PurchaseOrderStatusPartiallyReceived
}

// QC records sampling results against the quantity actually received.
type QC struct{}

func (QC) Kind() enums.Workflow { return enums.WorkflowQC }

func (QC) Fields() []Field {
	return []Field{FieldSamplesChecked, FieldSamplesOK}
}

func (QC) PendingOptions() PendingOptions {
	return PendingOptions{Fields: []Field{FieldSamplesChecked}}
}

func (q QC) Validate(entry Entry, update EntryFieldUpdate) (Outcome, error) {
	if err := checkEntry(entry); err != nil {
		return Outcome{}, err
	}
	if update == nil {
		return Outcome{}, unsupportedUpdate(q.Kind(), update)
	}
	if entry.SamplesOK > entry.SamplesChecked {
		return Outcome{}, pkgerrors.Newf(pkgerrors.CodeInternal, "entry %s has samples_ok above samples_checked", entry.ID)
	}

	value := update.Value()
	next := entry
	clamped := false

	switch update.(type) {
	case SamplesChecked:
		if value < 0 {
			return rejectNegative(entry, update), nil
		}
		// Pending is received minus what earlier sessions sampled, so it never exceeds Baseline.
		if value > entry.Pending {
			return rejectLimit(entry, update, entry.Pending, fmt.Sprintf(
				"%s for %s cannot exceed %d still to inspect (received %d)",
				update.Field(), entry.Code, entry.Pending, entry.Baseline,
			)), nil
		}
		next.SamplesChecked = value
		if next.SamplesOK > value {
			next.SamplesOK = value
			clamped = true
		}
	case SamplesOK:
		if value < 0 {
			return rejectNegative(entry, update), nil
		}
		if value > entry.SamplesChecked {
			return rejectLimit(entry, update, entry.SamplesChecked, fmt.Sprintf(
				"%s for %s cannot exceed samples checked %d",
				update.Field(), entry.Code, entry.SamplesChecked,
			)), nil
		}
		next.SamplesOK = value
	default:
		return Outcome{}, unsupportedUpdate(q.Kind(), update)
	}

	return Outcome{Entry: next.withDerived(), Clamped: clamped}, nil
}

func (QC) Active(entry Entry) bool {
	return entry.SamplesChecked > 0
}

func (QC) Serialize(entry Entry) SerializedEntry {
	entry = entry.withDerived()
	return SerializedEntry{
		Key:            entry.Key,
		SamplesChecked: entry.SamplesChecked,
		SamplesOK:      entry.SamplesOK,
		SamplesNotOK:   entry.SamplesNotOK,
		QCPercentage:   entry.QCPercentage,
	}
}

// Hydrate keeps the stored derived values; they record the outcome as it was inspected.
func (QC) Hydrate(item TrackedItem, row StoredRow) Entry {
	entry := newEntry(item)
	entry.SamplesChecked = row.SamplesChecked
	entry.SamplesOK = row.SamplesOK
	entry.SamplesNotOK = row.SamplesNotOK
	entry.QCPercentage = row.QCPercentage
	return entry
}

func (QC) OpenFor(status enums.PurchaseOrderStatus) bool {
	return status == enums.PurchaseOrderStatusPartiallyReceived ||
		status == enums.PurchaseOrderStatusReceived
}
