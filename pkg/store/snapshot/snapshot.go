package snapshot

import (
	"time"

	"github.com/olimci/bootslot/pkg/slot"
)

// Snapshot holds the last successfully published record of each slot.
type Snapshot struct {
	SlotSuffix string                 `json:"slot_suffix,omitempty"` // active slot when saved
	Slots      map[string]slot.Record `json:"slots"`
	SavedAt    time.Time              `json:"saved_at"`
	Writer     string                 `json:"writer,omitempty"` // bootslot version that saved it
}

func New() Snapshot {
	return Snapshot{Slots: make(map[string]slot.Record)}
}

// Put stores rec under its slot name.
func (s *Snapshot) Put(rec slot.Record) {
	if s.Slots == nil {
		s.Slots = make(map[string]slot.Record)
	}
	rec.Refreshing = false
	s.Slots[rec.Slot] = rec
}
