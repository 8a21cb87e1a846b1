package service

import (
	"fmt"
	"strings"

	"order/pkg/domain/model"
)

type stockAdjustment struct {
	items   []model.Item
	reduced []string
	removed []string
}

// applyRejection caps every rejected line at the available quantity and drops
// lines with nothing available. Lines not mentioned in the rejection are kept.
func applyRejection(items []model.Item, rejected []model.RejectedItem) stockAdjustment {
	byMenuItem := make(map[int64]model.RejectedItem, len(rejected))
	for _, r := range rejected {
		byMenuItem[r.MenuItemID] = r
	}

	var adjustment stockAdjustment
	for _, item := range items {
		r, ok := byMenuItem[item.MenuItemID]
		if !ok {
			adjustment.items = append(adjustment.items, item)
			continue
		}

		name := r.MenuItemName
		if name == "" {
			name = item.Name
		}
		quantity := item.Quantity
		if r.AvailableQuantity < quantity {
			quantity = r.AvailableQuantity
		}

		switch {
		case quantity <= 0:
			adjustment.removed = append(adjustment.removed, name)
		case quantity < item.Quantity:
			item.Quantity = quantity
			adjustment.items = append(adjustment.items, item)
			adjustment.reduced = append(adjustment.reduced, fmt.Sprintf("%s reduced to %d", name, quantity))
		default:
			adjustment.items = append(adjustment.items, item)
		}
	}
	return adjustment
}

func (a stockAdjustment) describe() string {
	notes := append(append([]string{}, a.reduced...), removedNotes(a.removed)...)
	if len(notes) == 0 {
		return "Stock confirmed for all items"
	}
	return "Stock partially confirmed: " + strings.Join(notes, ", ")
}

func removedNotes(names []string) []string {
	notes := make([]string, 0, len(names))
	for _, name := range names {
		notes = append(notes, name+" removed")
	}
	return notes
}
