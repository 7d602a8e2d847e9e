package digest

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the length of a hex-encoded SHA-1 digest.
const Size = 40

// ShortSize is the length of the prefix used in export file names.
const ShortSize = 8

// Digest is a lowercase hex SHA-1, the key backups and exports are stored under.
type Digest string

func (d Digest) IsZero() bool {
	return d == ""
}

func (d Digest) String() string {
	return string(d)
}

// Short returns the first ShortSize characters of the digest.
func (d Digest) Short() string {
	if len(d) < ShortSize {
		return string(d)
	}
	return string(d[:ShortSize])
}

// Parse accepts a 40 character hex digest in any case, with surrounding
// whitespace, and normalizes it to lowercase.
func Parse(raw string) (Digest, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if len(raw) != Size {
		return "", fmt.Errorf("invalid digest %q (expected %d hex characters)", raw, Size)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid digest %q: %w", raw, err)
	}
	return Digest(raw), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Digest {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}
