package slot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/olimci/bootslot/pkg/shell"
)

func callLines(f *fixture) []string {
	var lines []string
	for _, c := range f.fake.Calls() {
		lines = append(lines, c.Line)
	}
	return lines
}

func TestCreateBackupRunsPrivileged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	candidate := f.write(t, "candidate.img", stockImage)

	require.NoError(t, f.engine.CreateBackup(ctx, candidate, stockHash()))

	dir := f.engine.Backups.Dir(stockHash())
	path := f.engine.Backups.Path(stockHash())
	tmp := filepath.Join(dir, ".boot.img.tmp")
	lines := callLines(f)
	require.Contains(t, lines, shell.Join("mkdir", "-p", dir))
	require.Contains(t, lines, shell.Join("cp", candidate, tmp))
	require.Contains(t, lines, shell.Join("gzip", "-9f", tmp))
	require.Contains(t, lines, shell.Join("mv", "-f", tmp+".gz", path))
	require.Contains(t, lines, shell.Join("gzip", "-dc", path)+" | sha1sum")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only boot.img.gz remains")
}

func TestCreateBackupDeniedLeavesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fake.Deny = func(line string) bool { return strings.HasPrefix(line, "mv ") }

	err := f.engine.CreateBackup(context.Background(), f.write(t, "candidate.img", stockImage), stockHash())
	require.ErrorIs(t, err, ErrBackupCommitFailed)
	require.NoDirExists(t, f.engine.Backups.Dir(stockHash()))

	f.fake.Deny = func(line string) bool { return strings.HasPrefix(line, "mkdir ") }
	err = f.engine.CreateBackup(context.Background(), f.write(t, "candidate.img", stockImage), stockHash())
	require.ErrorIs(t, err, ErrBackupCommitFailed)
	require.Contains(t, err.Error(), "Permission denied")
}

func TestCreateBackupKeepsExistingDirOnFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dir := f.engine.Backups.Dir(stockHash())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	f.fake.Deny = func(line string) bool { return strings.HasPrefix(line, "gzip -9f") }

	err := f.engine.CreateBackup(context.Background(), f.write(t, "candidate.img", stockImage), stockHash())
	require.ErrorIs(t, err, ErrBackupCommitFailed)
	require.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary copies are removed")
}

func TestVerifyBackupUnreadableIsAnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.CreateBackup(ctx, f.write(t, "candidate.img", stockImage), stockHash()))

	f.fake.Deny = func(line string) bool { return strings.HasPrefix(line, "test -r ") }
	status, err := f.engine.VerifyBackup(ctx, stockHash())
	require.Error(t, err)
	require.Empty(t, status)

	// in-process: a read error is not corruption either
	path := f.engine.Backups.Path(stockHash())
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(path, 0o755))
	status, err = Backups{Root: f.engine.Backups.Root}.Verify(ctx, stockHash())
	require.Error(t, err)
	require.Empty(t, status)
}

func TestExportImageReadsSourcePrivileged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	image := f.write(t, "boot_a.img", stockImage)
	c := Classification{Status: Stock, Hash: stockHash()}

	_, err := f.engine.ExportImage(ctx, image, c)
	require.NoError(t, err)

	var copied bool
	for _, line := range callLines(f) {
		if strings.HasPrefix(line, shell.Join("cp", image)+" ") {
			copied = true
		}
	}
	require.True(t, copied, "source is copied out with root")
	f.requireWorkDirEmpty(t)

	f.fake.Deny = func(line string) bool { return strings.HasPrefix(line, "cp ") }
	_, err = f.engine.ExportImage(ctx, image, c)
	require.ErrorIs(t, err, ErrSourceUnavailable)
	f.requireWorkDirEmpty(t)
}
