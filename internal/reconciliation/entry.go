package reconciliation

import "github.com/shopspring/decimal"

// Field names an editable quantity on an entry.
type Field string

const (
	FieldGoodQuantity   Field = "goodQuantity"
	FieldBadQuantity    Field = "badQuantity"
	FieldSamplesChecked Field = "samples_checked"
	FieldSamplesOK      Field = "samples_ok"
)

// Entry is a tracked item inside a session together with its workflow quantities.
// SamplesNotOK and QCPercentage are derived from SamplesChecked/SamplesOK and are only
// ever written by withDerived.
type Entry struct {
	ID string `json:"id"`
	TrackedItem
	Pending int `json:"pending"`

	GoodQuantity int `json:"goodQuantity"`
	BadQuantity  int `json:"badQuantity"`

	SamplesChecked int     `json:"samples_checked"`
	SamplesOK      int     `json:"samples_ok"`
	SamplesNotOK   int     `json:"samples_not_ok"`
	QCPercentage   float64 `json:"qc_percentage"`
}

func newEntry(item TrackedItem) Entry {
	return Entry{ID: item.Key.String(), TrackedItem: item}
}

// Quantity returns the value of an editable field.
func (e Entry) Quantity(field Field) int {
	switch field {
	case FieldGoodQuantity:
		return e.GoodQuantity
	case FieldBadQuantity:
		return e.BadQuantity
	case FieldSamplesChecked:
		return e.SamplesChecked
	case FieldSamplesOK:
		return e.SamplesOK
	}
	return 0
}

func (e Entry) withDerived() Entry {
	e.SamplesNotOK = e.SamplesChecked - e.SamplesOK
	e.QCPercentage = QCPercentage(e.SamplesOK, e.SamplesChecked)
	return e
}

// QCPercentage returns ok/checked as a percentage rounded to two decimals, or 0 when
// nothing was checked.
func QCPercentage(ok, checked int) float64 {
	if checked <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(ok)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(checked))).
		Round(2).
		InexactFloat64()
}
