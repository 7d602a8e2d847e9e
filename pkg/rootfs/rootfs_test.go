package rootfs_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/magiskboot/magiskboottest"
	"github.com/olimci/bootslot/pkg/rootfs"
)

var content = bytes.Repeat([]byte("stock boot image "), 128)

type impl struct {
	name string
	fs   rootfs.FS
}

func impls(t *testing.T) []impl {
	t.Helper()
	return []impl{
		{name: "local", fs: rootfs.Local{}},
		{name: "shell", fs: rootfs.Shell{Runner: magiskboottest.New(), TempDir: filepath.Join(t.TempDir(), "work")}},
	}
}

func TestWriteGzipThenHash(t *testing.T) {
	t.Parallel()

	for _, im := range impls(t) {
		ctx := context.Background()
		root := t.TempDir()
		src := filepath.Join(root, "boot.img")
		require.NoError(t, os.WriteFile(src, content, 0o644))
		dest := filepath.Join(root, "data", "magisk_backup_x", "boot.img.gz")

		ok, err := im.fs.Exists(ctx, dest)
		require.NoError(t, err, im.name)
		require.False(t, ok, im.name)

		require.NoError(t, im.fs.WriteGzip(ctx, src, dest), im.name)
		ok, err = im.fs.Exists(ctx, dest)
		require.NoError(t, err, im.name)
		require.True(t, ok, im.name)

		got, err := im.fs.GzipSHA1(ctx, dest)
		require.NoError(t, err, im.name)
		require.Equal(t, magiskboottest.SHA1Hex(content), got.String(), im.name)

		entries, err := os.ReadDir(filepath.Dir(dest))
		require.NoError(t, err, im.name)
		require.Len(t, entries, 1, im.name)
	}
}

func TestGzipSHA1Corrupt(t *testing.T) {
	t.Parallel()

	for _, im := range impls(t) {
		path := filepath.Join(t.TempDir(), "boot.img.gz")
		require.NoError(t, os.WriteFile(path, content, 0o644))

		_, err := im.fs.GzipSHA1(context.Background(), path)
		require.ErrorIs(t, err, digest.ErrCorrupt, im.name)
	}
}

func TestWriteGzipFailureRemovesCreatedDir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	dest := filepath.Join(root, "data", "magisk_backup_x", "boot.img.gz")

	err := rootfs.Local{}.WriteGzip(ctx, filepath.Join(root, "absent.img"), dest)
	require.Error(t, err)
	require.NoDirExists(t, filepath.Dir(dest))

	fake := magiskboottest.New()
	fake.Deny = func(line string) bool { return strings.HasPrefix(line, "gzip -9f") }
	src := filepath.Join(root, "boot.img")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	err = rootfs.Shell{Runner: fake}.WriteGzip(ctx, src, dest)
	require.Error(t, err)
	require.NoDirExists(t, filepath.Dir(dest))
}

func TestOpenReadsAndCleansUp(t *testing.T) {
	t.Parallel()

	for _, im := range impls(t) {
		ctx := context.Background()
		src := filepath.Join(t.TempDir(), "boot_a")
		require.NoError(t, os.WriteFile(src, content, 0o644))

		rc, err := im.fs.Open(ctx, src)
		require.NoError(t, err, im.name)
		data, err := io.ReadAll(rc)
		require.NoError(t, err, im.name)
		require.Equal(t, content, data, im.name)
		require.NoError(t, rc.Close(), im.name)

		if sh, ok := im.fs.(rootfs.Shell); ok {
			entries, err := os.ReadDir(sh.TempDir)
			require.NoError(t, err)
			require.Empty(t, entries, "copy removed on close")
		}

		_, err = im.fs.Open(ctx, filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err, im.name)
	}
}

func TestDirs(t *testing.T) {
	t.Parallel()

	for _, im := range impls(t) {
		ctx := context.Background()
		root := t.TempDir()
		for _, d := range []string{"magisk_backup_b", "magisk_backup_a", "other"} {
			require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
		}
		require.NoError(t, os.WriteFile(filepath.Join(root, "magisk_backup_file"), nil, 0o644))

		got, err := im.fs.Dirs(ctx, root, "magisk_backup_")
		require.NoError(t, err, im.name)
		require.Equal(t, []string{"magisk_backup_a", "magisk_backup_b"}, got, im.name)

		got, err = im.fs.Dirs(ctx, filepath.Join(root, "absent"), "magisk_backup_")
		require.NoError(t, err, im.name)
		require.Empty(t, got, im.name)
	}
}

func TestShellSurfacesRunnerErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("su: not allowed")
	fake := magiskboottest.New()
	fake.RunErr = boom
	fs := rootfs.Shell{Runner: fake, TempDir: t.TempDir()}

	_, err := fs.Exists(context.Background(), "/data/magisk_backup_x")
	require.ErrorIs(t, err, boom)
	_, err = fs.GzipSHA1(context.Background(), "/data/magisk_backup_x/boot.img.gz")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, digest.ErrCorrupt)
}
