package reconciliation

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a wire field name maps to no editable field.
var ErrUnknownField = errors.New("unknown entry field")

// EntryFieldUpdate is a proposed change to one editable quantity. The set of
// implementations is closed: GoodQuantity, BadQuantity, SamplesChecked, SamplesOK.
type EntryFieldUpdate interface {
	Field() Field
	Value() int
	isEntryFieldUpdate()
}

// GoodQuantity sets the units received in usable condition (GRN).
type GoodQuantity int

func (GoodQuantity) Field() Field        { return FieldGoodQuantity }
func (u GoodQuantity) Value() int        { return int(u) }
func (GoodQuantity) isEntryFieldUpdate() {}

// BadQuantity sets the units received damaged or rejected at the dock (GRN).
type BadQuantity int

func (BadQuantity) Field() Field        { return FieldBadQuantity }
func (u BadQuantity) Value() int        { return int(u) }
func (BadQuantity) isEntryFieldUpdate() {}

// SamplesChecked sets how many received units were inspected (QC). Lowering it below
// samples_ok clamps samples_ok down.
type SamplesChecked int

func (SamplesChecked) Field() Field        { return FieldSamplesChecked }
func (u SamplesChecked) Value() int        { return int(u) }
func (SamplesChecked) isEntryFieldUpdate() {}

// SamplesOK sets how many inspected units passed (QC).
type SamplesOK int

func (SamplesOK) Field() Field        { return FieldSamplesOK }
func (u SamplesOK) Value() int        { return int(u) }
func (SamplesOK) isEntryFieldUpdate() {}

// ParseFieldUpdate maps a wire field name and value onto the matching update variant.
func ParseFieldUpdate(field string, value int) (EntryFieldUpdate, error) {
	switch Field(field) {
	case FieldGoodQuantity:
		return GoodQuantity(value), nil
	case FieldBadQuantity:
		return BadQuantity(value), nil
	case FieldSamplesChecked:
		return SamplesChecked(value), nil
	case FieldSamplesOK:
		return SamplesOK(value), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
}
