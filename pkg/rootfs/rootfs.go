// Package rootfs does the file work that needs root: reading boot
// partitions, and reading or writing stock backups under /data. Local works
// in-process for a process that already holds root. Shell sends every step
// through a privileged shell.Runner.
package rootfs

import (
	"context"
	"io"

	"github.com/olimci/bootslot/pkg/digest"
)

type FS interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Open returns a reader over the contents of path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// GzipSHA1 hashes the decompressed contents of the gzip file at path.
	// Malformed input yields an error wrapping digest.ErrCorrupt; any other
	// error means the file could not be read.
	GzipSHA1(ctx context.Context, path string) (digest.Digest, error)
	// WriteGzip compresses src into dest at level 9 and replaces dest in one
	// step. If dest's directory had to be created and the write fails, the
	// directory is removed again.
	WriteGzip(ctx context.Context, src, dest string) error
	// Dirs returns the sorted names of the subdirectories of dir starting
	// with prefix. A missing dir has none.
	Dirs(ctx context.Context, dir, prefix string) ([]string, error)
}
