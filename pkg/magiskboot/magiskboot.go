// Package magiskboot drives the magiskboot binary through a privileged shell.
//
// magiskboot writes its artifacts (ramdisk.cpio, kernel, ...) into the
// working directory of the call, so every method takes the directory the
// artifacts live in.
package magiskboot

import (
	"context"
	"fmt"

	"github.com/olimci/bootslot/pkg/shell"
)

const (
	DefaultPath = "/data/adb/magisk/magiskboot"

	RamdiskFile = "ramdisk.cpio"
	KernelFile  = "kernel"
)

// Exit codes of `cpio ramdisk.cpio test`.
const (
	TestStock   = 0
	TestPatched = 1
)

// Tool invokes magiskboot subcommands.
type Tool struct {
	Runner shell.Runner
	Path   string
}

func New(runner shell.Runner, path string) Tool {
	if path == "" {
		path = DefaultPath
	}
	return Tool{Runner: runner, Path: path}
}

// Unpack runs `unpack <image>` in dir. The exit code is returned as-is; the
// presence of RamdiskFile in dir is the signal callers rely on.
func (t Tool) Unpack(ctx context.Context, dir, image string) (int, error) {
	res, err := t.run(ctx, dir, "unpack", image)
	if err != nil {
		return 0, err
	}
	return res.Code, nil
}

// TestRamdisk runs `cpio ramdisk.cpio test` in dir and returns its exit code.
func (t Tool) TestRamdisk(ctx context.Context, dir string) (int, error) {
	res, err := t.run(ctx, dir, "cpio", RamdiskFile, "test")
	if err != nil {
		return 0, err
	}
	return res.Code, nil
}

// SHA1 returns the digest magiskboot reports for the whole file at path.
func (t Tool) SHA1(ctx context.Context, dir, path string) (string, error) {
	return t.firstLine(ctx, dir, "sha1", path)
}

// RamdiskSHA1 returns the digest recorded in the ramdisk of the last unpacked
// image in dir.
func (t Tool) RamdiskSHA1(ctx context.Context, dir string) (string, error) {
	return t.firstLine(ctx, dir, "cpio", RamdiskFile, "sha1")
}

func (t Tool) firstLine(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := t.run(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	line, ok := res.First()
	if res.Code != 0 || !ok {
		return "", fmt.Errorf("magiskboot %s: exit %d, no digest output", args[0], res.Code)
	}
	return line, nil
}

func (t Tool) run(ctx context.Context, dir string, args ...string) (shell.Result, error) {
	path := t.Path
	if path == "" {
		path = DefaultPath
	}
	line := shell.Join(append([]string{path}, args...)...)
	res, err := t.Runner.Run(ctx, shell.Command{Dir: dir, Line: line})
	if err != nil {
		return shell.Result{}, fmt.Errorf("magiskboot %s: %w", args[0], err)
	}
	return res, nil
}
