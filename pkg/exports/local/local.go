// Package local stores exports in a directory on the device, typically the
// shared downloads directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olimci/bootslot/pkg/exports"
	"github.com/olimci/bootslot/pkg/shell"
	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

const DefaultDir = "/sdcard/Download"

// ScanAction is the broadcast that asks the media provider to index a file.
const ScanAction = "android.intent.action.MEDIA_SCANNER_SCAN_FILE"

// Dir implements exports.Store over a directory. When Runner is set,
// NotifyInserted broadcasts a media scan for the new file.
type Dir struct {
	Root   string
	Runner shell.Runner
}

func New(root string, runner shell.Runner) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultDir
	}
	abs, err := fileutils.AbsPath(root)
	if err != nil {
		return nil, err
	}
	return &Dir{Root: abs, Runner: runner}, nil
}

func (d *Dir) Type() string { return exports.BackendLocal }

func (d *Dir) List(_ context.Context, prefix string) ([]exports.Entry, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read export dir %s: %w", d.Root, err)
	}

	out := make([]exports.Entry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, prefix) || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, exports.Entry{ID: filepath.Join(d.Root, name), Name: name})
	}
	exports.SortByName(out)
	return out, nil
}

func (d *Dir) Open(_ context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", id, exports.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	return f, nil
}

func (d *Dir) Put(_ context.Context, name string, r io.Reader) (exports.Entry, error) {
	if name == "" || filepath.Base(name) != name {
		return exports.Entry{}, fmt.Errorf("invalid export name %q", name)
	}
	path := filepath.Join(d.Root, name)
	if err := fileutils.WriteFile(path, r, 0o644); err != nil {
		return exports.Entry{}, err
	}
	return exports.Entry{ID: path, Name: name}, nil
}

func (d *Dir) NotifyInserted(ctx context.Context, e exports.Entry) error {
	if d.Runner == nil {
		return nil
	}
	line := shell.Join("am", "broadcast", "-a", ScanAction, "-d", "file://"+e.ID)
	res, err := d.Runner.Run(ctx, shell.Command{Line: line})
	if err != nil {
		return fmt.Errorf("media scan %s: %w", e.ID, err)
	}
	if res.Code != 0 {
		return fmt.Errorf("media scan %s: exit %d: %s", e.ID, res.Code, res.Stderr)
	}
	return nil
}
