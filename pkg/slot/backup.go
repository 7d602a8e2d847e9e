package slot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/rootfs"
)

const (
	DefaultBackupRoot = "/data"

	backupDirPrefix = "magisk_backup_"
	backupFile      = "boot.img.gz"
)

// Backups locates stock image backups, stored gzip-compressed under
// <Root>/magisk_backup_<hash>/boot.img.gz. The path is the only index.
// All access goes through FS, in-process when it is nil.
type Backups struct {
	Root string
	FS   rootfs.FS
}

func (b Backups) fs() rootfs.FS {
	if b.FS == nil {
		return rootfs.Local{}
	}
	return b.FS
}

func (b Backups) root() string {
	if b.Root == "" {
		return DefaultBackupRoot
	}
	return b.Root
}

func (b Backups) Dir(hash digest.Digest) string {
	return filepath.Join(b.root(), backupDirPrefix+hash.String())
}

func (b Backups) Path(hash digest.Digest) string {
	return filepath.Join(b.Dir(hash), backupFile)
}

// Verify reports whether a backup exists for hash and decompresses to
// content with that hash. A backup that is not valid gzip is Invalid; a
// backup that cannot be read is an error.
func (b Backups) Verify(ctx context.Context, hash digest.Digest) (BackupStatus, error) {
	path := b.Path(hash)
	exists, err := b.fs().Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("stat backup %s: %w", path, err)
	}
	if !exists {
		return BackupMissing, nil
	}

	got, err := b.fs().GzipSHA1(ctx, path)
	if err != nil {
		if errors.Is(err, digest.ErrCorrupt) {
			return BackupInvalid, nil
		}
		return "", fmt.Errorf("read backup %s: %w", path, err)
	}
	if got != hash {
		return BackupInvalid, nil
	}
	return BackupFound, nil
}

// commit compresses image into the backup path for hash at gzip level 9.
func (b Backups) commit(ctx context.Context, image string, hash digest.Digest) error {
	if err := b.fs().WriteGzip(ctx, image, b.Path(hash)); err != nil {
		return fmt.Errorf("write backup for %s: %w", hash, err)
	}
	return nil
}

// List returns the hashes of every backup directory under Root, sorted.
// Directories whose suffix is not a digest are skipped.
func (b Backups) List(ctx context.Context) ([]digest.Digest, error) {
	names, err := b.fs().Dirs(ctx, b.root(), backupDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups in %s: %w", b.root(), err)
	}

	var out []digest.Digest
	for _, name := range names {
		suffix := strings.TrimPrefix(name, backupDirPrefix)
		h, err := digest.Parse(suffix)
		if err != nil || h.String() != suffix {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}
