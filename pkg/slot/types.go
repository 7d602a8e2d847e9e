package slot

import (
	"time"

	"github.com/olimci/bootslot/pkg/digest"
)

type PatchStatus string

const (
	Stock   PatchStatus = "stock"
	Patched PatchStatus = "patched"
)

type BackupStatus string

const (
	BackupFound   BackupStatus = "found"
	BackupMissing BackupStatus = "missing"
	BackupInvalid BackupStatus = "invalid"
)

type ExportStatus string

const (
	ExportFound   ExportStatus = "found"
	ExportMissing ExportStatus = "missing"
	ExportInvalid ExportStatus = "invalid"
)

// Phase is where a slot record is in its lifecycle.
type Phase string

const (
	PhaseUninitialized  Phase = "uninitialized"
	PhaseClassifying    Phase = "classifying"
	PhaseReady          Phase = "ready"
	PhaseClassifyFailed Phase = "classify_failed"
	PhaseExporting      Phase = "exporting"
	PhaseRestoring      Phase = "restoring"
)

// Classification is the outcome of classifying one boot image. Hash is the
// whole-image SHA-1 for stock images and the ramdisk SHA-1 for patched ones.
type Classification struct {
	Status PatchStatus   `json:"status"`
	Hash   digest.Digest `json:"hash"`
}

// ExportName is the file name an image with this classification is exported
// under.
func (c Classification) ExportName() string {
	return exportPrefix(c) + exportExt
}

// Record is the published state of one slot. Backup and Export are only
// meaningful when Classification is set.
type Record struct {
	Slot           string          `json:"slot"`
	Phase          Phase           `json:"phase"`
	Classification *Classification `json:"classification,omitempty"`
	Backup         BackupStatus    `json:"backup,omitempty"`
	Export         ExportStatus    `json:"export,omitempty"`
	Refreshing     bool            `json:"refreshing"`
	LastError      string          `json:"last_error,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Classified reports whether the record holds a successful classification.
func (r Record) Classified() bool {
	return r.Classification != nil
}

func (r Record) clone() Record {
	if r.Classification != nil {
		c := *r.Classification
		r.Classification = &c
	}
	return r
}
