package reconciliation

// PendingOptions selects which entry fields count as consumed quantity.
type PendingOptions struct {
	Fields []Field
}

func (o PendingOptions) consumed(e Entry) int {
	total := 0
	for _, field := range o.Fields {
		total += e.Quantity(field)
	}
	return total
}

// ConsumedQuantity sums the selected fields of every entry matching key across saved
// sessions. Unsaved sessions never count.
func ConsumedQuantity(sessions []Session, key ItemKey, opts PendingOptions) int {
	total := 0
	for _, session := range sessions {
		if !session.IsSaved {
			continue
		}
		for _, entry := range session.Entries {
			if entry.Key == key {
				total += opts.consumed(entry)
			}
		}
	}
	return total
}

// CalculatePending returns max(0, baseline - consumed) for the item identified by key.
// It has no side effects and may be called on every edit.
func CalculatePending(baseline int, sessions []Session, key ItemKey, opts PendingOptions) int {
	pending := baseline - ConsumedQuantity(sessions, key, opts)
	if pending < 0 {
		return 0
	}
	return pending
}
