package reconciliation

import "testing"

func grnSession(id string, saved bool, entries ...Entry) Session {
	return Session{ID: id, Name: id, IsSaved: saved, Entries: entries}
}

func grnEntry(key ItemKey, good, bad int) Entry {
	entry := newEntry(TrackedItem{Key: key, Code: key.String()})
	entry.GoodQuantity = good
	entry.BadQuantity = bad
	return entry
}

func TestCalculatePendingSumsSavedSessionsOnly(t *testing.T) {
	key := NewSKUKey("sku-1", "m")
	other := NewSKUKey("sku-1", "l")
	sessions := []Session{
		grnSession("s1", true, grnEntry(key, 30, 5), grnEntry(other, 99, 0)),
		grnSession("s2", true, grnEntry(key, 10, 0)),
		grnSession(TodaySessionID, false, grnEntry(key, 40, 0)),
	}

	got := CalculatePending(100, sessions, key, GRN{}.PendingOptions())
	if got != 55 {
		t.Fatalf("expected pending 55 got %d", got)
	}
}

func TestCalculatePendingClampsAtZero(t *testing.T) {
	key := NewMiscKey("tape")
	sessions := []Session{grnSession("s1", true, grnEntry(key, 12, 3))}

	if got := CalculatePending(10, sessions, key, GRN{}.PendingOptions()); got != 0 {
		t.Fatalf("expected 0 got %d", got)
	}
	if got := ConsumedQuantity(sessions, key, GRN{}.PendingOptions()); got != 15 {
		t.Fatalf("expected consumed 15 got %d", got)
	}
}

func TestCalculatePendingIsIdempotent(t *testing.T) {
	key := NewSKUKey("sku-1", "m")
	sessions := []Session{grnSession("s1", true, grnEntry(key, 4, 1))}
	opts := GRN{}.PendingOptions()

	first := CalculatePending(20, sessions, key, opts)
	second := CalculatePending(20, sessions, key, opts)
	if first != second || first != 15 {
		t.Fatalf("expected stable 15, got %d then %d", first, second)
	}
	if sessions[0].Entries[0].GoodQuantity != 4 {
		t.Fatal("calculation must not mutate sessions")
	}
}

func TestCalculatePendingQCCountsSamplesChecked(t *testing.T) {
	key := NewSKUKey("sku-1", "m")
	entry := newEntry(TrackedItem{Key: key})
	entry.SamplesChecked = 6
	entry.SamplesOK = 4
	sessions := []Session{grnSession("s1", true, entry)}

	if got := CalculatePending(10, sessions, key, QC{}.PendingOptions()); got != 4 {
		t.Fatalf("expected 4 got %d", got)
	}
}
