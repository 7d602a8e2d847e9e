package rootfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

// Local implements FS with plain file access.
type Local struct{}

func (Local) Exists(_ context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

func (Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (Local) GzipSHA1(_ context.Context, path string) (digest.Digest, error) {
	return digest.ForGzipFile(path)
}

func (l Local) WriteGzip(ctx context.Context, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	dir := filepath.Dir(dest)
	existed, err := l.Exists(ctx, dir)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		zw, err := gzip.NewWriterLevel(pw, gzip.BestCompression)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(zw, in); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(zw.Close())
	}()

	err = fileutils.WriteFile(dest, pr, 0o644)
	pr.Close()
	if err != nil {
		if !existed {
			_ = os.Remove(dir)
		}
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func (Local) Dirs(_ context.Context, dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
