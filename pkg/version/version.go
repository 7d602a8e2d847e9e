package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is overridden at link time with -ldflags "-X .../pkg/version.Version=...".
var Version = "0.1.0"

// Release is a MAJOR.MINOR.PATCH triple.
type Release struct {
	Major int
	Minor int
	Patch int
}

func (r Release) String() string {
	return fmt.Sprintf("%d.%d.%d", r.Major, r.Minor, r.Patch)
}

// Parse accepts "MAJOR.MINOR.PATCH" with an optional "v" prefix.
func Parse(raw string) (Release, error) {
	value := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if value == "" {
		return Release{}, fmt.Errorf("version is empty")
	}

	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return Release{}, fmt.Errorf("invalid version %q (expected MAJOR.MINOR.PATCH)", raw)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Release{}, fmt.Errorf("invalid version component %q in %q", p, raw)
		}
		nums[i] = n
	}
	return Release{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare returns -1, 0 or 1.
func Compare(a, b Release) int {
	switch {
	case a.Major != b.Major:
		return sign(a.Major - b.Major)
	case a.Minor != b.Minor:
		return sign(a.Minor - b.Minor)
	default:
		return sign(a.Patch - b.Patch)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// EnsureReadable reports whether state written by writer can be read by
// this build. An empty writer predates version stamping and is accepted.
// State from another major release, or from a newer release, is refused.
func EnsureReadable(writer string) error {
	if strings.TrimSpace(writer) == "" {
		return nil
	}

	current, err := Parse(Version)
	if err != nil {
		return fmt.Errorf("parse current version %q: %w", Version, err)
	}
	w, err := Parse(writer)
	if err != nil {
		return err
	}

	if w.Major != current.Major {
		return fmt.Errorf("state written by bootslot %s, incompatible with %s", w, current)
	}
	if Compare(current, w) < 0 {
		return fmt.Errorf("state written by newer bootslot %s (current %s)", w, current)
	}
	return nil
}
