package device

import "github.com/olimci/bootslot/pkg/slot"

// Action is the next step suggested for a slot.
type Action string

const (
	ActionNone    Action = "none"
	ActionRestore Action = "restore"
	ActionExport  Action = "export"
)

// Advise suggests what to do with the named slot:
//   - the active slot, patched without a valid backup: restore a stock image
//     into the backup
//   - the active slot, when the other slot can't serve as a fallback, and
//     there's no valid export: export it
//   - an inactive stock slot without a valid export: export it
func (d *Device) Advise(name string) Action {
	s, err := d.Slot(name)
	if err != nil {
		return ActionNone
	}
	rec := s.Record()
	if rec.Refreshing || rec.Classification == nil {
		return ActionNone
	}

	if s.Slot() != d.Active() {
		if rec.Classification.Status == slot.Stock && rec.Export != slot.ExportFound {
			return ActionExport
		}
		return ActionNone
	}

	if rec.Classification.Status == slot.Patched && rec.Backup != slot.BackupFound {
		return ActionRestore
	}
	if d.needsFallback(rec) && rec.Export != slot.ExportFound {
		return ActionExport
	}
	return ActionNone
}

// needsFallback reports whether no other slot holds the same stock image.
// A slot that hasn't been classified can't be relied on.
func (d *Device) needsFallback(rec slot.Record) bool {
	for _, other := range d.Slots() {
		if other.Slot() == rec.Slot {
			continue
		}
		o := other.Record()
		if o.Classification == nil {
			continue
		}
		if o.Classification.Status == slot.Stock && o.Classification.Hash == rec.Classification.Hash {
			return false
		}
	}
	return true
}
