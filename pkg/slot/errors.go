package slot

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBootImage   = errors.New("invalid boot image")
	ErrRamdiskMissing     = fmt.Errorf("%w: ramdisk missing", ErrInvalidBootImage)
	ErrHashMismatch       = errors.New("boot image hash mismatch")
	ErrAlreadyPatched     = errors.New("boot image already patched")
	ErrBackupCommitFailed = errors.New("backup commit failed")
	ErrExportWriteFailed  = errors.New("export write failed")
	ErrSourceUnavailable  = errors.New("source image unavailable")
	ErrNotClassified      = errors.New("slot not classified")
	ErrUnusable           = errors.New("device state unusable")
)

// Message returns the short message shown to the user for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrHashMismatch):
		return "Invalid boot.img: wrong sha1"
	case errors.Is(err, ErrAlreadyPatched):
		return "Invalid boot.img: already patched"
	case errors.Is(err, ErrRamdiskMissing):
		return "Invalid boot.img: ramdisk missing"
	case errors.Is(err, ErrBackupCommitFailed):
		return "Failed to restore backup"
	case errors.Is(err, ErrExportWriteFailed):
		return "Failed to export image"
	case errors.Is(err, ErrSourceUnavailable):
		return "No boot.img provided"
	case errors.Is(err, ErrInvalidBootImage):
		return "Invalid boot.img"
	case errors.Is(err, ErrNotClassified):
		return "Slot not classified"
	case errors.Is(err, ErrUnusable):
		return "Device state unusable"
	default:
		return err.Error()
	}
}

// Reason returns a stable label for err, used in metrics and history.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(err, ErrAlreadyPatched):
		return "already_patched"
	case errors.Is(err, ErrRamdiskMissing):
		return "ramdisk_missing"
	case errors.Is(err, ErrInvalidBootImage):
		return "invalid_boot_image"
	case errors.Is(err, ErrBackupCommitFailed):
		return "backup_commit_failed"
	case errors.Is(err, ErrExportWriteFailed):
		return "export_write_failed"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrNotClassified):
		return "not_classified"
	case errors.Is(err, ErrUnusable):
		return "unusable"
	default:
		return "error"
	}
}
