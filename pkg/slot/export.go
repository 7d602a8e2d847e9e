package slot

import (
	"strings"

	"github.com/olimci/bootslot/pkg/exports"
)

const (
	exportBase    = "boot_"
	exportPatched = "-patched"
	exportExt     = ".img"
)

// exportPrefix is boot_<hash8>, plus -patched for patched images.
func exportPrefix(c Classification) string {
	prefix := exportBase + c.Hash.Short()
	if c.Status == Patched {
		prefix += exportPatched
	}
	return prefix
}

// matchExport reports whether name is an export of an image with
// classification c. Names may carry a suffix between the prefix and the
// extension, as download managers add " (1)" to duplicates. A stock lookup
// never matches a patched export of the same hash.
func matchExport(name string, c Classification) bool {
	prefix := exportPrefix(c)
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, exportExt) {
		return false
	}
	if len(name) < len(prefix)+len(exportExt) {
		return false
	}
	rest := name[len(prefix):]
	if c.Status == Stock && strings.HasPrefix(rest, exportPatched) {
		return false
	}
	return true
}

// exportCandidates filters entries to those matching c, keeping name order.
// The first candidate is the one verified.
func exportCandidates(entries []exports.Entry, c Classification) []exports.Entry {
	out := make([]exports.Entry, 0, len(entries))
	for _, e := range entries {
		if matchExport(e.Name, c) {
			out = append(out, e)
		}
	}
	return out
}
