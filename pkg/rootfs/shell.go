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

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/shell"
)

// Shell implements FS with coreutils run through Runner.
type Shell struct {
	Runner shell.Runner
	// TempDir receives the copies handed out by Open. It must be writable
	// by this process.
	TempDir string
}

func (s Shell) run(ctx context.Context, line string) (shell.Result, error) {
	res, err := s.Runner.Run(ctx, shell.Command{Line: line})
	if err != nil {
		return shell.Result{}, fmt.Errorf("run %q: %w", line, err)
	}
	return res, nil
}

// must runs args and fails on a non-zero exit.
func (s Shell) must(ctx context.Context, args ...string) error {
	line := shell.Join(args...)
	res, err := s.run(ctx, line)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return exitError(line, res)
	}
	return nil
}

// test runs `test <flag> path`: exit 0 is true, 1 is false.
func (s Shell) test(ctx context.Context, flag, path string) (bool, error) {
	line := shell.Join("test", flag, path)
	res, err := s.run(ctx, line)
	if err != nil {
		return false, err
	}
	switch res.Code {
	case 0:
		return true, nil
	case 1:
		return false, nil
	}
	return false, exitError(line, res)
}

func exitError(line string, res shell.Result) error {
	if res.Stderr != "" {
		return fmt.Errorf("%s: exit %d: %s", line, res.Code, res.Stderr)
	}
	return fmt.Errorf("%s: exit %d", line, res.Code)
}

func (s Shell) Exists(ctx context.Context, path string) (bool, error) {
	return s.test(ctx, "-e", path)
}

// Open copies path into TempDir with root privilege and opens the copy.
// The copy is removed on Close.
func (s Shell) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.TempDir, "source-*.img")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	tmp.Close()

	if err := s.must(ctx, "cp", path, name); err != nil {
		os.Remove(name)
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		os.Remove(name)
		return nil, err
	}
	return &tempFile{File: f}, nil
}

type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	return errors.Join(t.File.Close(), os.Remove(t.Name()))
}

func (s Shell) GzipSHA1(ctx context.Context, path string) (digest.Digest, error) {
	readable, err := s.test(ctx, "-r", path)
	if err != nil {
		return "", err
	}
	if !readable {
		return "", fmt.Errorf("%s is not readable", path)
	}

	line := shell.Join("gzip", "-t", path)
	res, err := s.run(ctx, line)
	if err != nil {
		return "", err
	}
	if res.Code != 0 {
		return "", fmt.Errorf("%w: %w", digest.ErrCorrupt, exitError(line, res))
	}

	line = shell.Join("gzip", "-dc", path) + " | sha1sum"
	res, err = s.run(ctx, line)
	if err != nil {
		return "", err
	}
	out, ok := res.First()
	if res.Code != 0 || !ok {
		return "", exitError(line, res)
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", fmt.Errorf("%s: empty output", line)
	}
	return digest.Parse(fields[0])
}

func (s Shell) WriteGzip(ctx context.Context, src, dest string) (err error) {
	dir := filepath.Dir(dest)
	existed, err := s.test(ctx, "-d", dir)
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, "."+strings.TrimSuffix(filepath.Base(dest), ".gz")+".tmp")
	defer func() {
		if err == nil {
			return
		}
		_ = s.must(ctx, "rm", "-f", tmp, tmp+".gz")
		if !existed {
			_ = s.must(ctx, "rmdir", dir)
		}
	}()

	if err := s.must(ctx, "mkdir", "-p", dir); err != nil {
		return err
	}
	if err := s.must(ctx, "cp", src, tmp); err != nil {
		return err
	}
	if err := s.must(ctx, "gzip", "-9f", tmp); err != nil {
		return err
	}
	return s.must(ctx, "mv", "-f", tmp+".gz", dest)
}

func (s Shell) Dirs(ctx context.Context, dir, prefix string) ([]string, error) {
	isDir, err := s.test(ctx, "-d", dir)
	if err != nil || !isDir {
		return nil, err
	}

	line := shell.Join("find", dir, "-mindepth", "1", "-maxdepth", "1", "-type", "d", "-name", prefix+"*")
	res, err := s.run(ctx, line)
	if err != nil {
		return nil, err
	}
	if res.Code != 0 {
		return nil, exitError(line, res)
	}

	out := make([]string, 0, len(res.Out))
	for _, p := range res.Out {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, filepath.Base(p))
		}
	}
	sort.Strings(out)
	return out, nil
}
