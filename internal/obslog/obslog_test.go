package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitFromEnvWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "bot.log")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_FILE", logPath)

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	L().Info("hello")
	_ = L().Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("log entry missing: %q", data)
	}
}

func TestInitFromEnvFileSinkOff(t *testing.T) {
	t.Setenv("LOG_FILE", "off")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	if L() == nil {
		t.Fatalf("logger not set")
	}
}

func TestInitFromEnvRejectsBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_FILE", "off")

	if err := InitFromEnv(); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
