package reconciliation

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
)

// ValidationKey locates a cell-level rejection inside a session.
type ValidationKey struct {
	SessionID string `json:"session_id"`
	EntryID   string `json:"entry_id"`
	Field     Field  `json:"field"`
}

func (k ValidationKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SessionID, k.EntryID, k.Field)
}

// ValidationError is an expected, user-recoverable rejection of a single edit.
type ValidationError struct {
	Code      pkgerrors.Code `json:"code"`
	SessionID string         `json:"session_id,omitempty"`
	EntryID   string         `json:"entry_id"`
	Field     Field          `json:"field"`
	Value     int            `json:"value"`
	Limit     *int           `json:"limit,omitempty"`
	Message   string         `json:"message"`
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Key returns where the rejection is stored.
func (e *ValidationError) Key() ValidationKey {
	return ValidationKey{SessionID: e.SessionID, EntryID: e.EntryID, Field: e.Field}
}

// AsAPIError converts the rejection into a typed error carrying the rejection as details.
func (e *ValidationError) AsAPIError() *pkgerrors.Error {
	return pkgerrors.New(e.Code, e.Message).WithDetails(e)
}

// Outcome is the result of validating one edit. Rejection is nil when the edit is accepted,
// in which case Entry carries the new values with derived fields recomputed.
type Outcome struct {
	Entry     Entry
	Rejection *ValidationError
	Clamped   bool
}

func (o Outcome) Accepted() bool {
	return o.Rejection == nil
}

// ValidateUpdate checks a proposed edit against the workflow rules. The returned error is
// reserved for programmer errors; rule violations are reported through Outcome.Rejection.
func ValidateUpdate(workflow Workflow, entry Entry, update EntryFieldUpdate) (Outcome, error) {
	if workflow == nil {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeInternal, "workflow is required")
	}
	return workflow.Validate(entry, update)
}

func rejectNegative(entry Entry, update EntryFieldUpdate) Outcome {
	return Outcome{
		Entry: entry,
		Rejection: &ValidationError{
			Code:    pkgerrors.CodeInvalidQuantity,
			EntryID: entry.ID,
			Field:   update.Field(),
			Value:   update.Value(),
			Message: fmt.Sprintf("%s for %s must not be negative", update.Field(), entry.Code),
		},
	}
}

func rejectLimit(entry Entry, update EntryFieldUpdate, limit int, message string) Outcome {
	return Outcome{
		Entry: entry,
		Rejection: &ValidationError{
			Code:    pkgerrors.CodeQuantityLimit,
			EntryID: entry.ID,
			Field:   update.Field(),
			Value:   update.Value(),
			Limit:   &limit,
			Message: message,
		},
	}
}

func checkEntry(entry Entry) error {
	if entry.ID == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "entry id is required")
	}
	if entry.Pending < 0 || entry.Baseline < 0 {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "entry %s has negative pending or baseline", entry.ID)
	}
	if entry.GoodQuantity < 0 || entry.BadQuantity < 0 || entry.SamplesChecked < 0 || entry.SamplesOK < 0 {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "entry %s has negative quantities", entry.ID)
	}
	return nil
}

func unsupportedUpdate(kind fmt.Stringer, update EntryFieldUpdate) error {
	if update == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "update is required")
	}
	return pkgerrors.Newf(pkgerrors.CodeInternal, "field %s is not editable in %s", update.Field(), kind)
}
