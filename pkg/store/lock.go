package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

var flockFn = unix.Flock
var lockSleep = time.Sleep

var (
	lockWaitTimeout = 30 * time.Second
	lockPollEvery   = 100 * time.Millisecond
)

// Lock takes an exclusive advisory lock on <root>/locks/<slot>.lock,
// waiting up to lockWaitTimeout. The returned func releases it.
func (s Store) Lock(slot string) (func() error, error) {
	if slot == "" || filepath.Base(slot) != slot {
		return nil, fmt.Errorf("invalid slot name %q", slot)
	}
	if err := os.MkdirAll(s.LocksPath(), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(s.LocksPath(), slot+".lock")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}
	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	return func() error {
		if err := flockFn(int(file.Fd()), unix.LOCK_UN); err != nil {
			_ = file.Close()
			return err
		}
		return file.Close()
	}, nil
}

func lockFile(file *os.File) error {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		err := flockFn(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s", lockWaitTimeout)
		}
		lockSleep(lockPollEvery)
	}
}
