package reconciliation

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// ItemKey is the structural identity of a tracked item. Rows from different sources
// (baseline items, saved session rows) are matched on this value only, never on
// surrogate row IDs.
type ItemKey struct {
	Type     enums.ItemType `json:"item_type"`
	SKUID    string         `json:"sku_id,omitempty"`
	SizeID   string         `json:"size_id,omitempty"`
	MiscName string         `json:"misc_name,omitempty"`
}

// NewSKUKey builds the identity of a SKU/size combination.
func NewSKUKey(skuID, sizeID string) ItemKey {
	return ItemKey{
		Type:   enums.ItemTypeSKU,
		SKUID:  strings.TrimSpace(skuID),
		SizeID: strings.TrimSpace(sizeID),
	}
}

// NewMiscKey builds the identity of a miscellaneous named item.
func NewMiscKey(name string) ItemKey {
	return ItemKey{
		Type:     enums.ItemTypeMisc,
		MiscName: strings.TrimSpace(name),
	}
}

// Validate reports whether the key carries the components its type requires.
func (k ItemKey) Validate() error {
	switch k.Type {
	case enums.ItemTypeSKU:
		if k.SKUID == "" || k.SizeID == "" {
			return fmt.Errorf("sku item requires sku_id and size_id")
		}
		if k.MiscName != "" {
			return fmt.Errorf("sku item must not carry misc_name")
		}
	case enums.ItemTypeMisc:
		if k.MiscName == "" {
			return fmt.Errorf("misc item requires misc_name")
		}
		if k.SKUID != "" || k.SizeID != "" {
			return fmt.Errorf("misc item must not carry sku_id or size_id")
		}
	default:
		return fmt.Errorf("invalid item type %q", k.Type)
	}
	return nil
}

// String renders the key as the stable entry identifier used by callers.
func (k ItemKey) String() string {
	if k.Type == enums.ItemTypeMisc {
		return fmt.Sprintf("%s:%s", k.Type, k.MiscName)
	}
	return fmt.Sprintf("%s:%s:%s", k.Type, k.SKUID, k.SizeID)
}

// ParseItemKey is the inverse of ItemKey.String.
func ParseItemKey(value string) (ItemKey, error) {
	prefix, rest, ok := strings.Cut(value, ":")
	if !ok {
		return ItemKey{}, fmt.Errorf("invalid entry id %q", value)
	}
	itemType, err := enums.ParseItemType(prefix)
	if err != nil {
		return ItemKey{}, err
	}

	var key ItemKey
	switch itemType {
	case enums.ItemTypeSKU:
		skuID, sizeID, ok := strings.Cut(rest, ":")
		if !ok {
			return ItemKey{}, fmt.Errorf("invalid sku entry id %q", value)
		}
		key = NewSKUKey(skuID, sizeID)
	default:
		key = NewMiscKey(rest)
	}
	if err := key.Validate(); err != nil {
		return ItemKey{}, err
	}
	return key, nil
}

// TrackedItem is an orderable unit with the baseline quantity pending is measured against:
// the ordered quantity for GRN, the received quantity for QC.
type TrackedItem struct {
	Key      ItemKey `json:"key"`
	ItemID   string  `json:"item_id,omitempty"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Baseline int     `json:"baseline"`
}
