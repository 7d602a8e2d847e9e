package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/olimci/bootslot/pkg/exports"
	"github.com/olimci/bootslot/pkg/exports/local"
	"github.com/olimci/bootslot/pkg/magiskboot"
	"github.com/olimci/bootslot/pkg/slot"
	"github.com/olimci/bootslot/pkg/store/config"
	"github.com/olimci/bootslot/pkg/store/snapshot"
	"github.com/olimci/bootslot/pkg/version"
)

const (
	DefaultRoot = "/data/adb/bootslot"

	configFile   = "config.toml"
	configYAML   = "config.yaml"
	stateFile    = "state.json"
	historyFile  = "history.db"
	workDir      = "work"
	locksDir     = "locks"
	envStoreDir  = "BOOTSLOT_STORE_DIR"
	defaultLevel = "info"
)

var (
	ErrAlreadyInstalled = errors.New("bootslot is already installed")
	ErrNotInstalled     = errors.New("bootslot is not installed")
	ErrNoSnapshot       = errors.New("no saved slot state")
)

// Store points to the on-device state directory.
type Store struct {
	Root string
}

func DefaultStore() (Store, error) {
	if customRoot := strings.TrimSpace(os.Getenv(envStoreDir)); customRoot != "" {
		absRoot, err := filepath.Abs(customRoot)
		if err != nil {
			return Store{}, fmt.Errorf("resolve %s: %w", envStoreDir, err)
		}
		return Store{Root: absRoot}, nil
	}
	return Store{Root: DefaultRoot}, nil
}

// ConfigPath returns config.yaml if it exists, config.toml otherwise.
func (s Store) ConfigPath() string {
	yamlPath := filepath.Join(s.Root, configYAML)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return filepath.Join(s.Root, configFile)
}

func (s Store) StatePath() string {
	return filepath.Join(s.Root, stateFile)
}

func (s Store) HistoryPath() string {
	return filepath.Join(s.Root, historyFile)
}

func (s Store) WorkPath() string {
	return filepath.Join(s.Root, workDir)
}

func (s Store) LocksPath() string {
	return filepath.Join(s.Root, locksDir)
}

func (s Store) IsInstalled() bool {
	_, err := os.Stat(s.ConfigPath())
	return err == nil
}

func DefaultConfig() config.Config {
	return config.Config{
		Version: config.Version,
		Magiskboot: config.Magiskboot{
			Path: magiskboot.DefaultPath,
		},
		Exec: config.Exec{
			Su: "su",
		},
		Device: config.Device{
			ByNameDirs: []string{"/dev/block/by-name", "/dev/block/bootdevice/by-name"},
			Slots:      []string{"boot_a", "boot_b"},
		},
		Backup: config.Backup{
			Root: slot.DefaultBackupRoot,
		},
		Export: config.Export{
			Backend: exports.BackendLocal,
			Dir:     local.DefaultDir,
		},
		Log: config.Log{
			Level:  defaultLevel,
			Format: "console",
			Output: "stderr",
			Tag:    slot.DefaultTag,
		},
	}
}

// Install initializes the store and fails if it already exists.
func (s Store) Install() error {
	if s.IsInstalled() {
		return ErrAlreadyInstalled
	}

	_, err := s.installMissing()
	return err
}

// Uninstall removes the store directory. Backups and exports live
// elsewhere and are left alone.
func (s Store) Uninstall() error {
	if !s.IsInstalled() {
		return ErrNotInstalled
	}
	if err := os.RemoveAll(s.Root); err != nil {
		return fmt.Errorf("remove %s: %w", s.Root, err)
	}
	return nil
}

// EnsureInstalled initializes the store if missing.
func (s Store) EnsureInstalled() error {
	_, err := s.installMissing()
	return err
}

// installMissing creates store directories and a default config if absent.
func (s Store) installMissing() (bool, error) {
	for _, dir := range []string{s.WorkPath(), s.LocksPath()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return false, fmt.Errorf("create store directories: %w", err)
		}
	}

	return ensureDefaultConfig(s.ConfigPath())
}

func (s Store) LoadConfig() (config.Config, error) {
	cfg := DefaultConfig()
	path := s.ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return config.Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config.Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return config.Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if cfg.Version == 0 {
		cfg.Version = config.Version
	}
	if cfg.Version != config.Version {
		return config.Config{}, fmt.Errorf("unsupported config version %d (want %d)", cfg.Version, config.Version)
	}

	return cfg, nil
}

func (s Store) SaveConfig(cfg config.Config) error {
	if cfg.Version == 0 {
		cfg.Version = config.Version
	}
	path := s.ConfigPath()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return writeYAML(path, cfg)
	default:
		return writeTOML(path, cfg)
	}
}

// LoadSnapshot returns the last saved slot records.
func (s Store) LoadSnapshot() (snapshot.Snapshot, error) {
	snap := snapshot.New()
	if err := decodeJSONFile(s.StatePath(), &snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snapshot.Snapshot{}, ErrNoSnapshot
		}
		return snapshot.Snapshot{}, fmt.Errorf("decode %s: %w", s.StatePath(), err)
	}
	if err := version.EnsureReadable(snap.Writer); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%s: %w", s.StatePath(), err)
	}
	if snap.Slots == nil {
		snap.Slots = make(map[string]slot.Record)
	}
	return snap, nil
}

func (s Store) SaveSnapshot(snap snapshot.Snapshot) error {
	snap.Writer = version.Version
	return writeJSON(s.StatePath(), snap)
}

// UpdateSnapshot merges rec into the saved snapshot.
func (s Store) UpdateSnapshot(rec slot.Record, slotSuffix string) error {
	snap, err := s.LoadSnapshot()
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			return err
		}
		snap = snapshot.New()
	}
	snap.Put(rec)
	if slotSuffix != "" {
		snap.SlotSuffix = slotSuffix
	}
	snap.SavedAt = time.Now().UTC()
	return s.SaveSnapshot(snap)
}
