package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olimci/bootslot/pkg/utils/fileutils"
)

// Tidy removes work entries older than minAge. Classification dirs and
// candidate copies are normally removed by the operation that created them;
// anything left over is from an interrupted process.
func (s Store) Tidy(minAge time.Duration) (TidyResult, error) {
	if !s.IsInstalled() {
		return TidyResult{}, ErrNotInstalled
	}

	entries, err := os.ReadDir(s.WorkPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TidyResult{}, nil
		}
		return TidyResult{}, fmt.Errorf("read %s: %w", s.WorkPath(), err)
	}

	cutoff := time.Now().Add(-minAge)
	var res TidyResult
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.WorkPath(), e.Name())
		if err := fileutils.RemovePath(path); err != nil {
			return res, fmt.Errorf("remove %s: %w", path, err)
		}
		res.RemovedCount++
		res.ChangedPaths = append(res.ChangedPaths, path)
	}

	return res, nil
}
