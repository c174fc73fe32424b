package slots

import "strings"

// SlotState is a catalog slot with its availability for one date.
type SlotState struct {
	Slot      Slot `json:"slot"`
	Available bool `json:"available"`
}

// Board is the per-slot view rendered to the user.
type Board []SlotState

// BuildBoard marks each slot of all as available unless it is reserved.
func BuildBoard(all, reserved []Slot) Board {
	free := Available(all, reserved)
	board := make(Board, len(all))
	for i, s := range all {
		board[i] = SlotState{Slot: s, Available: Contains(free, s)}
	}
	return board
}

// UnknownBoard disables every slot. Used when availability could not be loaded.
func UnknownBoard(all []Slot) Board {
	board := make(Board, len(all))
	for i, s := range all {
		board[i] = SlotState{Slot: s}
	}
	return board
}

// IsAvailable reports whether s is present and enabled on the board.
func (b Board) IsAvailable(s Slot) bool {
	for _, st := range b {
		if st.Slot == s {
			return st.Available
		}
	}
	return false
}

// AvailableSlots returns the enabled slots in board order.
func (b Board) AvailableSlots() []Slot {
	var out []Slot
	for _, st := range b {
		if st.Available {
			out = append(out, st.Slot)
		}
	}
	return out
}

// String renders the board as one line per slot.
func (b Board) String() string {
	var sb strings.Builder
	for _, st := range b {
		mark := "✅"
		if !st.Available {
			mark = "⛔"
		}
		sb.WriteString(mark)
		sb.WriteString(" ")
		sb.WriteString(string(st.Slot))
		sb.WriteString("\n")
	}
	return sb.String()
}
