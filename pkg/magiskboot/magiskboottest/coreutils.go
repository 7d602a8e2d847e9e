package magiskboottest

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/olimci/bootslot/pkg/shell"
)

var coreutils = map[string]struct{}{
	"test": {}, "mkdir": {}, "cp": {}, "mv": {}, "rm": {}, "rmdir": {}, "gzip": {}, "find": {},
}

func fail(err error) (shell.Result, error) {
	return shell.Result{Code: 1, Stderr: err.Error()}, nil
}

func usage(args []string) (shell.Result, error) {
	return shell.Result{Code: 2, Stderr: "unsupported: " + strings.Join(args, " ")}, nil
}

// coreutil emulates the subset of coreutils flags the engine uses.
func coreutil(dir string, args []string) (shell.Result, error) {
	switch {
	case args[0] == "test" && len(args) == 3:
		return testPath(resolve(dir, args[2]), args[1])

	case args[0] == "mkdir" && len(args) == 3 && args[1] == "-p":
		if err := os.MkdirAll(resolve(dir, args[2]), 0o755); err != nil {
			return fail(err)
		}
		return shell.Result{}, nil

	case args[0] == "cp" && len(args) == 3:
		data, err := os.ReadFile(resolve(dir, args[1]))
		if err != nil {
			return fail(err)
		}
		if err := os.WriteFile(resolve(dir, args[2]), data, 0o644); err != nil {
			return fail(err)
		}
		return shell.Result{}, nil

	case args[0] == "mv" && len(args) == 4 && args[1] == "-f":
		if err := os.Rename(resolve(dir, args[2]), resolve(dir, args[3])); err != nil {
			return fail(err)
		}
		return shell.Result{}, nil

	case args[0] == "rm" && len(args) >= 2 && args[1] == "-f":
		for _, p := range args[2:] {
			if err := os.Remove(resolve(dir, p)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fail(err)
			}
		}
		return shell.Result{}, nil

	case args[0] == "rmdir" && len(args) == 2:
		if err := os.Remove(resolve(dir, args[1])); err != nil {
			return fail(err)
		}
		return shell.Result{}, nil

	case args[0] == "gzip" && len(args) == 3 && args[1] == "-t":
		if _, err := gunzip(resolve(dir, args[2])); err != nil {
			return fail(err)
		}
		return shell.Result{}, nil

	case args[0] == "gzip" && len(args) == 3 && args[1] == "-9f":
		return compress(resolve(dir, args[2]))

	case args[0] == "find" && len(args) == 10 && args[8] == "-name":
		return find(resolve(dir, args[1]), args[9])
	}
	return usage(args)
}

func testPath(path, flag string) (shell.Result, error) {
	info, err := os.Stat(path)
	ok := err == nil
	switch flag {
	case "-e":
	case "-d":
		ok = ok && info.IsDir()
	case "-f":
		ok = ok && info.Mode().IsRegular()
	case "-r":
		if ok {
			f, err := os.Open(path)
			ok = err == nil
			if ok {
				f.Close()
			}
		}
	default:
		return usage([]string{"test", flag, path})
	}
	if !ok {
		return shell.Result{Code: 1}, nil
	}
	return shell.Result{}, nil
}

func gunzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func compress(path string) (shell.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return shell.Result{}, err
	}
	if _, err := zw.Write(data); err != nil {
		return shell.Result{}, err
	}
	if err := zw.Close(); err != nil {
		return shell.Result{}, err
	}
	if err := os.WriteFile(path+".gz", buf.Bytes(), 0o644); err != nil {
		return fail(err)
	}
	if err := os.Remove(path); err != nil {
		return fail(err)
	}
	return shell.Result{}, nil
}

func find(root, pattern string) (shell.Result, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fail(err)
	}
	var out []string
	for _, e := range entries {
		if ok, _ := filepath.Match(pattern, e.Name()); ok && e.IsDir() {
			out = append(out, filepath.Join(root, e.Name()))
		}
	}
	return shell.Result{Out: out}, nil
}

// pipeline handles `gzip -dc <path> | sha1sum`.
func pipeline(dir, left, right string) (shell.Result, error) {
	args, err := Split(left)
	if err != nil {
		return shell.Result{}, err
	}
	if strings.TrimSpace(right) != "sha1sum" || len(args) != 3 || args[0] != "gzip" || args[1] != "-dc" {
		return usage([]string{left, "|", right})
	}
	data, err := gunzip(resolve(dir, args[2]))
	if err != nil {
		// sha1sum still hashes whatever gzip wrote before failing
		data = nil
	}
	sum := sha1.Sum(data)
	return shell.Result{Out: []string{hex.EncodeToString(sum[:]) + "  -"}}, nil
}
