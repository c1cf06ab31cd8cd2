package reconciliation

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
	"go.uber.org/multierr"
)

const (
	AnomalyUnmatchedRow  = "unmatched_row"
	AnomalyDuplicateItem = "duplicate_item"
	AnomalyOverReceipt   = "over_receipt"
)

// UnmatchedRowError reports a saved row whose identity matches no baseline item.
type UnmatchedRowError struct {
	SessionID string  `json:"session_id"`
	RowID     string  `json:"row_id,omitempty"`
	Key       ItemKey `json:"key"`
}

func (e *UnmatchedRowError) Error() string {
	return fmt.Sprintf("session %s row %s references unknown item %s", e.SessionID, e.RowID, e.Key)
}

// DuplicateItemError reports two baseline items sharing one identity.
type DuplicateItemError struct {
	Key ItemKey `json:"key"`
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("baseline item %s appears more than once", e.Key)
}

// IntegrityAnomaly is a non-fatal inconsistency found while loading.
type IntegrityAnomaly struct {
	Kind     string  `json:"kind"`
	Key      ItemKey `json:"key"`
	Code     string  `json:"code"`
	Baseline int     `json:"baseline"`
	Consumed int     `json:"consumed"`
}

// IntegrityDetails is attached to DATA_INTEGRITY errors.
type IntegrityDetails struct {
	ReferenceID string   `json:"reference_id"`
	Problems    []error  `json:"-"`
	Messages    []string `json:"problems"`
}

func newDataIntegrityError(referenceID string, combined error) *pkgerrors.Error {
	problems := multierr.Errors(combined)
	messages := make([]string, 0, len(problems))
	for _, problem := range problems {
		messages = append(messages, problem.Error())
	}
	return pkgerrors.Wrap(
		pkgerrors.CodeDataIntegrity,
		combined,
		fmt.Sprintf("sessions for reference %s do not match the baseline (%d problem(s))", referenceID, len(problems)),
	).WithDetails(IntegrityDetails{
		ReferenceID: referenceID,
		Problems:    problems,
		Messages:    messages,
	})
}
