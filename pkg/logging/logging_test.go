package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if got := ParseLevel("debug"); got != zapcore.DebugLevel {
		t.Fatalf("ParseLevel(debug) = %v", got)
	}
	if got := ParseLevel("nonsense"); got != zapcore.InfoLevel {
		t.Fatalf("ParseLevel(nonsense) = %v, want info", got)
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bootslot.log")
	logger, level, err := New(Config{Level: "warn", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("refresh failed", zap.String("slot", "boot_a"))
	level.SetLevel(zapcore.DebugLevel)
	logger.Debug("now visible")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"slot":"boot_a"`) || !strings.Contains(out, "now visible") {
		t.Fatalf("unexpected log output: %s", out)
	}
}
