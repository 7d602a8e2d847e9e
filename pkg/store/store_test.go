package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/olimci/bootslot/pkg/digest"
	"github.com/olimci/bootslot/pkg/slot"
	"github.com/olimci/bootslot/pkg/store/config"
)

func testInstalledStore(t *testing.T) Store {
	t.Helper()

	s := Store{Root: filepath.Join(t.TempDir(), "bootslot")}
	if err := s.Install(); err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	return s
}

func TestInstallWritesDefaultConfig(t *testing.T) {
	t.Parallel()

	s := testInstalledStore(t)

	if err := s.Install(); !errors.Is(err, ErrAlreadyInstalled) {
		t.Fatalf("second Install error = %v, want ErrAlreadyInstalled", err)
	}
	if err := s.EnsureInstalled(); err != nil {
		t.Fatalf("EnsureInstalled returned error: %v", err)
	}

	for _, dir := range []string{s.WorkPath(), s.LocksPath()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, stat err = %v", dir, err)
		}
	}

	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Version != config.Version {
		t.Fatalf("config version = %d, want %d", cfg.Version, config.Version)
	}
	if len(cfg.Device.Slots) != 2 || cfg.Device.Slots[0] != "boot_a" {
		t.Fatalf("default slots = %v", cfg.Device.Slots)
	}
	if cfg.Log.Tag != slot.DefaultTag {
		t.Fatalf("log tag = %q, want %q", cfg.Log.Tag, slot.DefaultTag)
	}
}

func TestLoadConfigMissingReturnsDefaults(t *testing.T) {
	t.Parallel()

	s := Store{Root: t.TempDir()}
	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Backup.Root != slot.DefaultBackupRoot {
		t.Fatalf("backup root = %q, want %q", cfg.Backup.Root, slot.DefaultBackupRoot)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	s := testInstalledStore(t)
	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	cfg.Export.Backend = "s3"
	cfg.Export.S3.Bucket = "boot-exports"
	cfg.Exec.Su = ""
	if err := s.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig returned error: %v", err)
	}

	got, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.Export.Backend != "s3" || got.Export.S3.Bucket != "boot-exports" {
		t.Fatalf("export config not saved: %#v", got.Export)
	}
	if got.Exec.Su != "" {
		t.Fatalf("exec.su = %q, want empty", got.Exec.Su)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	t.Parallel()

	s := Store{Root: t.TempDir()}
	yamlCfg := strings.Join([]string{
		"version: 1",
		"device:",
		"  slot_suffix: _b",
		"export:",
		"  dir: /sdcard/Boot",
		"log:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(filepath.Join(s.Root, "config.yaml"), []byte(yamlCfg), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	if got := filepath.Base(s.ConfigPath()); got != "config.yaml" {
		t.Fatalf("ConfigPath = %q, want config.yaml", got)
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Device.SlotSuffix != "_b" || cfg.Export.Dir != "/sdcard/Boot" || cfg.Log.Level != "debug" {
		t.Fatalf("yaml config not applied: %#v", cfg)
	}
	if cfg.Magiskboot.Path == "" {
		t.Fatal("expected defaults to survive partial yaml")
	}
}

func TestLoadConfigRejectsUnknownVersion(t *testing.T) {
	t.Parallel()

	s := Store{Root: t.TempDir()}
	if err := os.WriteFile(filepath.Join(s.Root, "config.toml"), []byte("version = 7\n"), 0o644); err != nil {
		t.Fatalf("write config.toml: %v", err)
	}
	if _, err := s.LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported config version")
	}
}

func TestSnapshotMerge(t *testing.T) {
	t.Parallel()

	s := testInstalledStore(t)
	if _, err := s.LoadSnapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("LoadSnapshot error = %v, want ErrNoSnapshot", err)
	}

	h := digest.MustParse("0a1b2c3d4e5f60718293a4b5c6d7e8f901234567")
	recA := slot.Record{
		Slot:           "boot_a",
		Phase:          slot.PhaseReady,
		Classification: &slot.Classification{Status: slot.Patched, Hash: h},
		Backup:         slot.BackupFound,
		Export:         slot.ExportMissing,
		Refreshing:     true,
	}
	recB := slot.Record{Slot: "boot_b", Phase: slot.PhaseClassifyFailed}

	if err := s.UpdateSnapshot(recA, "_a"); err != nil {
		t.Fatalf("UpdateSnapshot returned error: %v", err)
	}
	if err := s.UpdateSnapshot(recB, ""); err != nil {
		t.Fatalf("UpdateSnapshot returned error: %v", err)
	}

	snap, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot returned error: %v", err)
	}
	if snap.SlotSuffix != "_a" {
		t.Fatalf("slot suffix = %q, want _a", snap.SlotSuffix)
	}
	got := snap.Slots["boot_a"]
	if got.Classification == nil || got.Classification.Hash != h || got.Backup != slot.BackupFound {
		t.Fatalf("boot_a record = %#v", got)
	}
	if got.Refreshing {
		t.Fatal("saved record must not be refreshing")
	}
	if _, ok := snap.Slots["boot_b"]; !ok {
		t.Fatal("boot_b record missing")
	}
}

func TestSnapshotFromNewerWriterIsRefused(t *testing.T) {
	t.Parallel()

	s := testInstalledStore(t)
	data := []byte(`{"slots":{},"writer":"99.0.0"}`)
	if err := os.WriteFile(s.StatePath(), data, 0o600); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if _, err := s.LoadSnapshot(); err == nil {
		t.Fatal("expected error for state written by a newer major release")
	}
}

func TestUninstall(t *testing.T) {
	t.Parallel()

	s := testInstalledStore(t)
	if err := s.Uninstall(); err != nil {
		t.Fatalf("Uninstall returned error: %v", err)
	}
	if _, err := os.Stat(s.Root); !os.IsNotExist(err) {
		t.Fatalf("store root still present: %v", err)
	}
	if err := s.Uninstall(); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("second Uninstall error = %v, want ErrNotInstalled", err)
	}
}

func TestTidyRemovesOnlyStaleWorkEntries(t *testing.T) {
	t.Parallel()

	s := testInstalledStore(t)
	stale := filepath.Join(s.WorkPath(), "classify-123")
	fresh := filepath.Join(s.WorkPath(), "classify-456")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	res, err := s.Tidy(time.Hour)
	if err != nil {
		t.Fatalf("Tidy returned error: %v", err)
	}
	if res.RemovedCount != 1 {
		t.Fatalf("Tidy removed %d entries, want 1", res.RemovedCount)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale entry should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh entry should remain: %v", err)
	}
}

func TestTidyRequiresInstall(t *testing.T) {
	t.Parallel()

	s := Store{Root: filepath.Join(t.TempDir(), "missing")}
	if _, err := s.Tidy(0); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("Tidy error = %v, want ErrNotInstalled", err)
	}
}

func TestLockIsExclusive(t *testing.T) {
	s := testInstalledStore(t)

	prevTimeout, prevSleep := lockWaitTimeout, lockSleep
	lockWaitTimeout = 0
	lockSleep = func(time.Duration) {}
	t.Cleanup(func() {
		lockWaitTimeout, lockSleep = prevTimeout, prevSleep
	})

	unlock, err := s.Lock("boot_a")
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}
	if _, err := s.Lock("boot_a"); err == nil {
		t.Fatal("expected second lock on boot_a to fail")
	}

	unlockB, err := s.Lock("boot_b")
	if err != nil {
		t.Fatalf("Lock(boot_b) returned error: %v", err)
	}
	if err := unlockB(); err != nil {
		t.Fatalf("unlock boot_b: %v", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock returned error: %v", err)
	}
	again, err := s.Lock("boot_a")
	if err != nil {
		t.Fatalf("Lock after unlock returned error: %v", err)
	}
	_ = again()

	if _, err := s.Lock("../boot_a"); err == nil {
		t.Fatal("expected error for path-like slot name")
	}
}
