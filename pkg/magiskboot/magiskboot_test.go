package magiskboot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olimci/bootslot/pkg/magiskboot"
	"github.com/olimci/bootslot/pkg/magiskboot/magiskboottest"
	"github.com/olimci/bootslot/pkg/shell"
)

func writeImage(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boot.img")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestToolUnpackAndTestStock(t *testing.T) {
	t.Parallel()

	stock := []byte("stock boot image")
	fake := magiskboottest.New()
	fake.Stock(stock)
	tool := magiskboot.New(fake, "")
	image := writeImage(t, stock)
	dir := t.TempDir()

	code, err := tool.Unpack(context.Background(), dir, image)
	require.NoError(t, err)
	require.Zero(t, code)
	require.FileExists(t, filepath.Join(dir, magiskboot.RamdiskFile))

	code, err = tool.TestRamdisk(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, magiskboot.TestStock, code)

	sum, err := tool.SHA1(context.Background(), dir, image)
	require.NoError(t, err)
	require.Equal(t, magiskboottest.SHA1Hex(stock), sum)
}

func TestToolRamdiskSHA1ForPatched(t *testing.T) {
	t.Parallel()

	stockSum := magiskboottest.SHA1Hex([]byte("stock"))
	patched := []byte("patched boot image")
	fake := magiskboottest.New()
	fake.Patched(patched, stockSum)
	tool := magiskboot.New(fake, "/opt/magisk/magiskboot")
	dir := t.TempDir()

	_, err := tool.Unpack(context.Background(), dir, writeImage(t, patched))
	require.NoError(t, err)

	code, err := tool.TestRamdisk(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, magiskboot.TestPatched, code)

	sum, err := tool.RamdiskSHA1(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, stockSum, sum)

	calls := fake.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, dir, calls[1].Dir)
	require.Equal(t, "/opt/magisk/magiskboot cpio ramdisk.cpio test", calls[1].Line)
}

func TestToolUnknownImageHasNoRamdisk(t *testing.T) {
	t.Parallel()

	tool := magiskboot.New(magiskboottest.New(), "")
	dir := t.TempDir()

	_, err := tool.Unpack(context.Background(), dir, writeImage(t, []byte("garbage")))
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(dir, magiskboot.RamdiskFile))

	_, err = tool.RamdiskSHA1(context.Background(), dir)
	require.Error(t, err)
}

func TestToolQuotesPaths(t *testing.T) {
	t.Parallel()

	content := []byte("image with spaces")
	fake := magiskboottest.New()
	fake.Stock(content)
	tool := magiskboot.New(fake, "")

	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "my boot's.img")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	sum, err := tool.SHA1(context.Background(), dir, path)
	require.NoError(t, err)
	require.Equal(t, magiskboottest.SHA1Hex(content), sum)
	require.Equal(t, shell.Join(magiskboot.DefaultPath, "sha1", path), fake.Calls()[0].Line)
}

func TestToolWrapsRunnerErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("su denied")
	fake := magiskboottest.New()
	fake.RunErr = boom

	_, err := magiskboot.New(fake, "").TestRamdisk(context.Background(), t.TempDir())
	require.ErrorIs(t, err, boom)
}
