package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// ErrCorrupt marks input that is not a well-formed gzip stream. Errors
// opening or reading the file are returned without it.
var ErrCorrupt = errors.New("corrupt gzip stream")

// ForReader hashes everything read from r.
func ForReader(r io.Reader) (Digest, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// ForFile computes the digest of the file at path.
func ForFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", path, err)
	}
	defer f.Close()

	d, err := ForReader(f)
	if err != nil {
		return "", fmt.Errorf("hash file %s: %w", path, err)
	}
	return d, nil
}

// ForGzipFile computes the digest of the decompressed contents of the gzip
// file at path. The plaintext is streamed, never held in memory.
func ForGzipFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", path, err)
	}
	defer f.Close()

	return ForGzipReader(f)
}

// ForGzipReader hashes the decompressed stream read from r.
func ForGzipReader(r io.Reader) (Digest, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("read gzip header: %w", gzipError(err))
	}
	defer zr.Close()

	d, err := ForReader(zr)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", gzipError(err))
	}
	return d, nil
}

func gzipError(err error) error {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, gzip.ErrHeader),
		errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.As(err, &corrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
