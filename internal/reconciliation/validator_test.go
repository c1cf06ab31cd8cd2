package reconciliation

import (
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
)

func openGRNEntry(pending int) Entry {
	entry := newEntry(TrackedItem{Key: NewSKUKey("sku-1", "m"), Code: "TEE-M", Baseline: 100})
	entry.Pending = pending
	return entry
}

func openQCEntry(received int) Entry {
	entry := newEntry(TrackedItem{Key: NewSKUKey("sku-1", "m"), Code: "TEE-M", Baseline: received})
	entry.Pending = received
	return entry
}

func mustValidate(t *testing.T, wf Workflow, entry Entry, update EntryFieldUpdate) Outcome {
	t.Helper()
	outcome, err := ValidateUpdate(wf, entry, update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return outcome
}

func TestGRNBoundIncludesOtherField(t *testing.T) {
	entry := openGRNEntry(20)
	entry.BadQuantity = 5

	rejected := mustValidate(t, GRN{}, entry, GoodQuantity(16))
	if rejected.Accepted() {
		t.Fatal("expected 16 good with 5 bad to be rejected against pending 20")
	}
	if rejected.Rejection.Code != pkgerrors.CodeQuantityLimit {
		t.Fatalf("unexpected code %s", rejected.Rejection.Code)
	}
	if rejected.Rejection.Limit == nil || *rejected.Rejection.Limit != 15 {
		t.Fatalf("expected limit 15 got %v", rejected.Rejection.Limit)
	}
	if rejected.Entry.GoodQuantity != 0 {
		t.Fatal("rejected entry must be unchanged")
	}

	accepted := mustValidate(t, GRN{}, entry, GoodQuantity(15))
	if !accepted.Accepted() || accepted.Entry.GoodQuantity != 15 || accepted.Entry.BadQuantity != 5 {
		t.Fatalf("expected 15 accepted, got %+v", accepted)
	}
}

func TestGRNBadQuantityBound(t *testing.T) {
	entry := openGRNEntry(10)
	entry.GoodQuantity = 7

	if out := mustValidate(t, GRN{}, entry, BadQuantity(4)); out.Accepted() {
		t.Fatal("expected bad 4 to be rejected")
	}
	if out := mustValidate(t, GRN{}, entry, BadQuantity(3)); !out.Accepted() {
		t.Fatalf("expected bad 3 to be accepted: %v", out.Rejection)
	}
}

func TestNegativeQuantitiesRejected(t *testing.T) {
	cases := []struct {
		wf     Workflow
		entry  Entry
		update EntryFieldUpdate
	}{
		{GRN{}, openGRNEntry(10), GoodQuantity(-1)},
		{GRN{}, openGRNEntry(10), BadQuantity(-3)},
		{QC{}, openQCEntry(10), SamplesChecked(-1)},
		{QC{}, openQCEntry(10), SamplesOK(-2)},
	}
	for _, tc := range cases {
		out := mustValidate(t, tc.wf, tc.entry, tc.update)
		if out.Accepted() {
			t.Fatalf("expected %T(%d) to be rejected", tc.update, tc.update.Value())
		}
		if out.Rejection.Code != pkgerrors.CodeInvalidQuantity {
			t.Fatalf("unexpected code %s", out.Rejection.Code)
		}
		if out.Rejection.Field != tc.update.Field() {
			t.Fatalf("unexpected field %s", out.Rejection.Field)
		}
	}
}

func TestQCLoweringCheckedClampsOK(t *testing.T) {
	entry := openQCEntry(20)
	entry.SamplesChecked = 10
	entry.SamplesOK = 8
	entry = entry.withDerived()

	out := mustValidate(t, QC{}, entry, SamplesChecked(5))
	if !out.Accepted() || !out.Clamped {
		t.Fatalf("expected clamped acceptance, got %+v", out)
	}
	if out.Entry.SamplesOK != 5 || out.Entry.SamplesNotOK != 0 || out.Entry.QCPercentage != 100 {
		t.Fatalf("unexpected derived values %+v", out.Entry)
	}
}

func TestQCDerivedFields(t *testing.T) {
	entry := openQCEntry(20)
	entry.SamplesChecked = 3
	entry = entry.withDerived()

	out := mustValidate(t, QC{}, entry, SamplesOK(2))
	if !out.Accepted() {
		t.Fatalf("unexpected rejection %v", out.Rejection)
	}
	if out.Entry.SamplesNotOK != 1 {
		t.Fatalf("expected not ok 1 got %d", out.Entry.SamplesNotOK)
	}
	if out.Entry.QCPercentage != 66.67 {
		t.Fatalf("expected 66.67 got %v", out.Entry.QCPercentage)
	}
}

func TestQCBounds(t *testing.T) {
	entry := openQCEntry(8)
	entry.SamplesChecked = 4
	entry = entry.withDerived()

	over := mustValidate(t, QC{}, entry, SamplesChecked(9))
	if over.Accepted() || *over.Rejection.Limit != 8 {
		t.Fatalf("expected checked bounded by received 8, got %+v", over)
	}
	okOver := mustValidate(t, QC{}, entry, SamplesOK(5))
	if okOver.Accepted() || *okOver.Rejection.Limit != 4 {
		t.Fatalf("expected ok bounded by checked 4, got %+v", okOver)
	}
}

func TestQCCheckedBoundedByWhatIsLeftToInspect(t *testing.T) {
	entry := openQCEntry(10)
	entry.Pending = 4

	over := mustValidate(t, QC{}, entry, SamplesChecked(5))
	if over.Accepted() || *over.Rejection.Limit != 4 {
		t.Fatalf("expected checked bounded by remaining 4, got %+v", over)
	}
	if !strings.Contains(over.Rejection.Message, "received 10") {
		t.Fatalf("expected message to name the received quantity, got %q", over.Rejection.Message)
	}
	if out := mustValidate(t, QC{}, entry, SamplesChecked(4)); !out.Accepted() {
		t.Fatalf("unexpected rejection %v", out.Rejection)
	}
}

func TestQCPercentageZeroWhenNothingChecked(t *testing.T) {
	if got := QCPercentage(0, 0); got != 0 {
		t.Fatalf("expected 0 got %v", got)
	}
	if got := QCPercentage(1, 3); got != 33.33 {
		t.Fatalf("expected 33.33 got %v", got)
	}
}

func TestValidateProgrammerErrors(t *testing.T) {
	if _, err := ValidateUpdate(GRN{}, openGRNEntry(10), SamplesOK(1)); err == nil {
		t.Fatal("expected error for qc field on grn")
	}
	if _, err := ValidateUpdate(QC{}, openQCEntry(10), GoodQuantity(1)); err == nil {
		t.Fatal("expected error for grn field on qc")
	}
	if _, err := ValidateUpdate(GRN{}, openGRNEntry(10), nil); err == nil {
		t.Fatal("expected error for nil update")
	}
	if _, err := ValidateUpdate(nil, openGRNEntry(10), GoodQuantity(1)); err == nil {
		t.Fatal("expected error for nil workflow")
	}
	malformed := openGRNEntry(10)
	malformed.BadQuantity = -1
	_, err := ValidateUpdate(GRN{}, malformed, GoodQuantity(1))
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestParseFieldUpdate(t *testing.T) {
	update, err := ParseFieldUpdate("samples_ok", 3)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := update.(SamplesOK); !ok || update.Value() != 3 {
		t.Fatalf("unexpected update %#v", update)
	}
	if _, err := ParseFieldUpdate("samplesOk", 3); err == nil {
		t.Fatal("expected unknown field error")
	}
}
