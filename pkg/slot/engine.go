package slot

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/exports"
	"github.com/olimci/bootslot/pkg/rootfs"
	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

// Engine holds the stateless slot operations: classification, backup
// verification and creation, export verification and writing.
type Engine struct {
	Classifier *Classifier
	Backups    Backups
	Exports    exports.Store
	// Files reads the live boot partition; in-process when nil.
	Files rootfs.FS
	// WorkDir receives copies of export and restore candidates.
	WorkDir string
	Logger  *zap.Logger
}

func (e *Engine) Classify(ctx context.Context, image string) (Classification, error) {
	return e.Classifier.Classify(ctx, image)
}

func (e *Engine) VerifyBackup(ctx context.Context, hash digest.Digest) (BackupStatus, error) {
	return e.Backups.Verify(ctx, hash)
}

// CreateBackup validates candidate against expected and commits it as the
// backup for expected. Nothing is written unless candidate is a stock image
// hashing to expected.
func (e *Engine) CreateBackup(ctx context.Context, candidate string, expected digest.Digest) error {
	c, err := e.Classify(ctx, candidate)
	if err != nil {
		return err
	}
	if c.Hash != expected {
		return fmt.Errorf("candidate hash %s, want %s: %w", c.Hash, expected, ErrHashMismatch)
	}
	if c.Status != Stock {
		return fmt.Errorf("candidate %s: %w", c.Hash, ErrAlreadyPatched)
	}

	if err := e.Backups.commit(ctx, candidate, expected); err != nil {
		return fmt.Errorf("%w: %w", ErrBackupCommitFailed, err)
	}

	status, err := e.Backups.Verify(ctx, expected)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackupCommitFailed, err)
	}
	if status != BackupFound {
		return fmt.Errorf("backup %s is %s after write: %w", expected, status, ErrBackupCommitFailed)
	}

	e.logger().Info("backup committed", zap.String("hash", expected.String()), zap.String("path", e.Backups.Path(expected)))
	return nil
}

// VerifyExport finds the first export named for c and reclassifies a copy
// of it. Found only if the copy hashes to c.Hash.
func (e *Engine) VerifyExport(ctx context.Context, c Classification) (ExportStatus, error) {
	entries, err := e.Exports.List(ctx, exportPrefix(c))
	if err != nil {
		return "", fmt.Errorf("list exports: %w", err)
	}
	candidates := exportCandidates(entries, c)
	if len(candidates) == 0 {
		return ExportMissing, nil
	}

	first := candidates[0]
	rc, err := e.Exports.Open(ctx, first.ID)
	if err != nil {
		if errors.Is(err, exports.ErrNotFound) {
			return ExportMissing, nil
		}
		return "", err
	}
	tmp, err := fileutils.WriteTemp(e.WorkDir, "export-*.img", rc)
	rc.Close()
	if err != nil {
		return "", fmt.Errorf("copy export %s: %w", first.Name, err)
	}
	defer os.Remove(tmp)

	got, err := e.Classify(ctx, tmp)
	if err != nil {
		if errors.Is(err, ErrInvalidBootImage) {
			e.logger().Warn("export is not a valid boot image", zap.String("export", first.Name), zap.Error(err))
			return ExportInvalid, nil
		}
		return "", err
	}
	if got.Hash != c.Hash {
		return ExportInvalid, nil
	}
	return ExportFound, nil
}

// ExportImage copies source into the export store under c's export name.
func (e *Engine) ExportImage(ctx context.Context, source string, c Classification) (exports.Entry, error) {
	f, err := e.files().Open(ctx, source)
	if err != nil {
		return exports.Entry{}, fmt.Errorf("open %s: %w: %w", source, ErrSourceUnavailable, err)
	}
	defer f.Close()

	entry, err := e.Exports.Put(ctx, c.ExportName(), f)
	if err != nil {
		return exports.Entry{}, fmt.Errorf("%w: %w", ErrExportWriteFailed, err)
	}

	if err := e.Exports.NotifyInserted(ctx, entry); err != nil {
		e.logger().Warn("notify export inserted", zap.String("export", entry.Name), zap.Error(err))
	}
	return entry, nil
}

func (e *Engine) files() rootfs.FS {
	if e.Files == nil {
		return rootfs.Local{}
	}
	return e.Files
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
