// Package magiskboottest provides an in-process stand-in for the magiskboot
// binary and the few coreutils run next to it, for tests that drive them
// through a shell.Runner.
package magiskboottest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/olimci/bootslot/pkg/magiskboot"
	"github.com/olimci/bootslot/pkg/shell"
)

// Image describes how the fake treats a boot image with given contents.
type Image struct {
	// NoRamdisk makes unpack produce no ramdisk.cpio.
	NoRamdisk bool
	// TestCode is the exit code of `cpio ramdisk.cpio test`.
	TestCode int
	// RamdiskSHA1 is printed by `cpio ramdisk.cpio sha1`.
	RamdiskSHA1 string
}

// Fake implements shell.Runner by emulating magiskboot subcommands against
// real files. Images are recognised by the SHA-1 of their contents; unknown
// images unpack without a ramdisk.
type Fake struct {
	mu     sync.Mutex
	images map[string]Image
	calls  []shell.Command

	// RunErr, when set, is returned for every command.
	RunErr error
	// Deny, when it returns true for a command line, makes that command
	// exit 1 with "Permission denied".
	Deny func(line string) bool
}

func New() *Fake {
	return &Fake{images: make(map[string]Image)}
}

// Stock registers content as an unpatched image.
func (f *Fake) Stock(content []byte) {
	f.Add(content, Image{TestCode: magiskboot.TestStock})
}

// Patched registers content as an image patched from the stock image with
// digest stockSHA1.
func (f *Fake) Patched(content []byte, stockSHA1 string) {
	f.Add(content, Image{TestCode: magiskboot.TestPatched, RamdiskSHA1: stockSHA1})
}

func (f *Fake) Add(content []byte, img Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[SHA1Hex(content)] = img
}

// Calls returns the commands run so far.
func (f *Fake) Calls() []shell.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shell.Command(nil), f.calls...)
}

type ramdisk struct {
	Key string `json:"key"`
}

func (f *Fake) Run(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	if err := ctx.Err(); err != nil {
		return shell.Result{}, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	runErr, deny := f.RunErr, f.Deny
	f.mu.Unlock()
	if runErr != nil {
		return shell.Result{}, runErr
	}
	if deny != nil && deny(cmd.Line) {
		return shell.Result{Code: 1, Stderr: "Permission denied"}, nil
	}

	if left, right, ok := strings.Cut(cmd.Line, " | "); ok {
		return pipeline(cmd.Dir, left, right)
	}

	args, err := Split(cmd.Line)
	if err != nil {
		return shell.Result{}, err
	}
	if _, ok := coreutils[args[0]]; ok {
		return coreutil(cmd.Dir, args)
	}
	if len(args) < 2 {
		return shell.Result{Code: 127}, nil
	}
	args = args[1:]

	switch {
	case args[0] == "unpack" && len(args) == 2:
		return f.unpack(cmd.Dir, args[1])
	case args[0] == "sha1" && len(args) == 2:
		sum, err := fileSHA1(resolve(cmd.Dir, args[1]))
		if err != nil {
			return shell.Result{Code: 1, Stderr: err.Error()}, nil
		}
		return shell.Result{Out: []string{sum}}, nil
	case args[0] == "cpio" && len(args) == 3 && args[2] == "test":
		img, ok := f.ramdiskImage(cmd.Dir, args[1])
		if !ok {
			return shell.Result{Code: 2}, nil
		}
		return shell.Result{Code: img.TestCode}, nil
	case args[0] == "cpio" && len(args) == 3 && args[2] == "sha1":
		img, ok := f.ramdiskImage(cmd.Dir, args[1])
		if !ok || img.RamdiskSHA1 == "" {
			return shell.Result{Code: 1}, nil
		}
		return shell.Result{Out: []string{img.RamdiskSHA1}}, nil
	}

	return shell.Result{Code: 1, Stderr: "unsupported command: " + cmd.Line}, nil
}

func (f *Fake) unpack(dir, image string) (shell.Result, error) {
	key, err := fileSHA1(resolve(dir, image))
	if err != nil {
		return shell.Result{Code: 1, Stderr: err.Error()}, nil
	}

	f.mu.Lock()
	img, known := f.images[key]
	f.mu.Unlock()

	if err := os.WriteFile(filepath.Join(dir, magiskboot.KernelFile), []byte("kernel"), 0o644); err != nil {
		return shell.Result{}, err
	}
	if !known || img.NoRamdisk {
		return shell.Result{}, nil
	}

	data, err := json.Marshal(ramdisk{Key: key})
	if err != nil {
		return shell.Result{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, magiskboot.RamdiskFile), data, 0o644); err != nil {
		return shell.Result{}, err
	}
	return shell.Result{}, nil
}

func (f *Fake) ramdiskImage(dir, name string) (Image, bool) {
	data, err := os.ReadFile(resolve(dir, name))
	if err != nil {
		return Image{}, false
	}
	var rd ramdisk
	if err := json.Unmarshal(data, &rd); err != nil {
		return Image{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[rd.Key]
	return img, ok
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

func fileSHA1(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return SHA1Hex(data), nil
}

// SHA1Hex returns the lowercase hex SHA-1 of b.
func SHA1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Split undoes shell.Join: it splits a command line on spaces, honouring
// single quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '\'':
			inQuote = !inQuote
			started = true
		case r == '\\' && !inQuote:
			// only appears as part of '\'' from shell.Quote
		case r == ' ' && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command line")
	}
	return args, nil
}
