package reconciliation

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// SerializedEntry is the persisted shape of an active entry.
type SerializedEntry struct {
	Key            ItemKey `json:"key"`
	GoodQuantity   int     `json:"goodQuantity,omitempty"`
	BadQuantity    int     `json:"badQuantity,omitempty"`
	SamplesChecked int     `json:"samples_checked,omitempty"`
	SamplesOK      int     `json:"samples_ok,omitempty"`
	SamplesNotOK   int     `json:"samples_not_ok,omitempty"`
	QCPercentage   float64 `json:"qc_percentage,omitempty"`
}

// StoredRow is one persisted session row. RowID is a surrogate and is only used for reporting.
type StoredRow struct {
	RowID string
	SerializedEntry
}

// StoredSession is a saved session as returned by persistence.
type StoredSession struct {
	ID        string
	Name      string
	Timestamp time.Time
	Rows      []StoredRow
}

// Snapshot is everything Load needs for one purchase order and workflow.
type Snapshot struct {
	Status   enums.PurchaseOrderStatus
	Items    []TrackedItem
	Sessions []StoredSession
}

// Persistence is the storage collaborator of a Store. Implementations are bound to a single
// workflow.
type Persistence interface {
	LoadSessions(ctx context.Context, referenceID string) (*Snapshot, error)
	SaveSession(ctx context.Context, referenceID, name string, entries []SerializedEntry) (string, error)
	DeleteSession(ctx context.Context, sessionID, referenceID string) error
}
