// Package slots holds the fixed daily slot catalog and the pure availability resolver.
package slots

import (
	"errors"
	"strings"
)

// Slot is a bookable time label such as "10:00 AM".
type Slot string

// ErrUnknownSlot is returned when a label is not part of the catalog.
var ErrUnknownSlot = errors.New("unknown time slot")

// catalog is identical for every service and every date.
var catalog = [...]Slot{
	"10:00 AM",
	"12:00 PM",
	"02:00 PM",
	"04:00 PM",
	"06:00 PM",
}

// AllSlots returns the daily catalog in display order.
func AllSlots() []Slot {
	out := make([]Slot, len(catalog))
	copy(out, catalog[:])
	return out
}

// ParseSlot resolves a user supplied label to a catalog slot.
func ParseSlot(s string) (Slot, error) {
	s = strings.TrimSpace(s)
	for _, c := range catalog {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrUnknownSlot
}

// Contains reports whether s is in list.
func Contains(list []Slot, s Slot) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Available returns all minus every reserved slot, keeping catalog order.
func Available(all, reserved []Slot) []Slot {
	taken := make(map[Slot]struct{}, len(reserved))
	for _, s := range reserved {
		taken[s] = struct{}{}
	}

	available := make([]Slot, 0, len(all))
	for _, s := range all {
		if _, ok := taken[s]; ok {
			continue
		}
		available = append(available, s)
	}
	return available
}
