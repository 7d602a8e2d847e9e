package digest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

const bootSum = "f0a4c8e4a3ab1fb7d3f7f4d0a15e2a5d6e2d65a3"

func TestParseNormalizes(t *testing.T) {
	t.Parallel()

	v, err := Parse("  " + strings.ToUpper(bootSum) + "\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := v.String(); got != bootSum {
		t.Fatalf("String() = %q, want %q", got, bootSum)
	}
	if got := v.Short(); got != bootSum[:8] {
		t.Fatalf("Short() = %q, want %q", got, bootSum[:8])
	}
}

func TestParseRejectsInvalidFormat(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "abcd", strings.Repeat("z", Size), bootSum + "00"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected parse error for %q", raw)
		}
	}
}

func TestForFileMatchesForReader(t *testing.T) {
	t.Parallel()

	content := []byte("boot image bytes")
	path := filepath.Join(t.TempDir(), "boot.img")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	fromFile, err := ForFile(path)
	if err != nil {
		t.Fatalf("ForFile returned error: %v", err)
	}
	fromReader, err := ForReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ForReader returned error: %v", err)
	}
	if fromFile != fromReader {
		t.Fatalf("ForFile = %q, ForReader = %q", fromFile, fromReader)
	}
	if len(fromFile) != Size {
		t.Fatalf("digest length = %d, want %d", len(fromFile), Size)
	}
}

func TestForGzipFileHashesPlaintext(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("ramdisk"), 1024)
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		t.Fatalf("new gzip writer: %v", err)
	}
	if _, err := zw.Write(content); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}

	path := filepath.Join(t.TempDir(), "boot.img.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write backup: %v", err)
	}

	got, err := ForGzipFile(path)
	if err != nil {
		t.Fatalf("ForGzipFile returned error: %v", err)
	}
	want, _ := ForReader(bytes.NewReader(content))
	if got != want {
		t.Fatalf("ForGzipFile = %q, want %q", got, want)
	}
}

func TestForGzipFileRejectsPlainFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "boot.img.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, err := ForGzipFile(path)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("ForGzipFile error = %v, want ErrCorrupt", err)
	}
}

func TestForGzipFileCorruptStreams(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(bytes.Repeat([]byte("boot image "), 512)); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	valid := buf.Bytes()

	badChecksum := append([]byte(nil), valid...)
	badChecksum[len(badChecksum)-5] ^= 0xff

	cases := map[string][]byte{
		"truncated":    valid[:len(valid)/2],
		"bad checksum": badChecksum,
		"empty":        nil,
	}
	for name, data := range cases {
		path := filepath.Join(t.TempDir(), "boot.img.gz")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		if _, err := ForGzipFile(path); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: ForGzipFile error = %v, want ErrCorrupt", name, err)
		}
	}
}

func TestForGzipFileReadErrorsAreNotCorruption(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := ForGzipFile(filepath.Join(dir, "absent.gz"))
	if err == nil || errors.Is(err, ErrCorrupt) {
		t.Fatalf("missing file error = %v, want a non-corruption error", err)
	}

	_, err = ForGzipFile(dir)
	if err == nil || errors.Is(err, ErrCorrupt) {
		t.Fatalf("unreadable file error = %v, want a non-corruption error", err)
	}
}
