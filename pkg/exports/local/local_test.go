package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olimci/bootslot/pkg/exports"
	"github.com/olimci/bootslot/pkg/shell"
)

type recordingRunner struct {
	lines []string
	code  int
}

func (r *recordingRunner) Run(_ context.Context, cmd shell.Command) (shell.Result, error) {
	r.lines = append(r.lines, cmd.Line)
	return shell.Result{Code: r.code}, nil
}

func TestDirPutListOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	for _, name := range []string{"boot_0a1b2c3d-patched.img", "boot_0a1b2c3d.img", "boot_ffffffff.img"} {
		_, err := d.Put(ctx, name, strings.NewReader(name))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(d.Root, ".boot_0a1b2c3d.img.123.tmp"), nil, 0o644))

	got, err := d.List(ctx, "boot_0a1b2c3d")
	require.NoError(t, err)
	require.Equal(t, []string{"boot_0a1b2c3d-patched.img", "boot_0a1b2c3d.img"}, names(got))

	rc, err := d.Open(ctx, got[1].ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "boot_0a1b2c3d.img", string(data))
}

func TestDirListMissingRootIsEmpty(t *testing.T) {
	t.Parallel()

	d := &Dir{Root: filepath.Join(t.TempDir(), "absent")}
	got, err := d.List(context.Background(), "boot_")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDirOpenMissing(t *testing.T) {
	t.Parallel()

	d := &Dir{Root: t.TempDir()}
	_, err := d.Open(context.Background(), filepath.Join(d.Root, "boot_00000000.img"))
	require.ErrorIs(t, err, exports.ErrNotFound)
}

func TestDirPutRejectsPathNames(t *testing.T) {
	t.Parallel()

	d := &Dir{Root: t.TempDir()}
	_, err := d.Put(context.Background(), "../boot.img", strings.NewReader("x"))
	require.Error(t, err)
}

func TestDirNotifyInsertedBroadcastsScan(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	d := &Dir{Root: "/sdcard/Download", Runner: runner}
	err := d.NotifyInserted(context.Background(), exports.Entry{ID: "/sdcard/Download/boot_0a1b2c3d.img"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"am broadcast -a " + ScanAction + " -d file:///sdcard/Download/boot_0a1b2c3d.img",
	}, runner.lines)

	runner.code = 1
	require.Error(t, d.NotifyInserted(context.Background(), exports.Entry{ID: "/x"}))
}

func names(entries []exports.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
