package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// writeConfig writes a config with MQTT, the API and InfluxDB disabled so
// run can start against the simulated board only.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	dbPath := filepath.Join(tmpDir, "iobridge.db")

	content := `
bridge:
  id: test-bridge

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

api:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
` + extra
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(envConfigPath, "")
		if got := resolveConfigPath(""); got != defaultConfigPath {
			t.Errorf("resolveConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})
	t.Run("env", func(t *testing.T) {
		t.Setenv(envConfigPath, "/etc/iobridge/config.yaml")
		if got := resolveConfigPath(""); got != "/etc/iobridge/config.yaml" {
			t.Errorf("resolveConfigPath() = %q", got)
		}
	})
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(envConfigPath, "/etc/iobridge/config.yaml")
		if got := resolveConfigPath("./local.yaml"); got != "./local.yaml" {
			t.Errorf("resolveConfigPath() = %q", got)
		}
	})
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--bogus"}); err == nil {
		t.Fatal("run() should reject unknown flags")
	}
}

func TestRun_Help(t *testing.T) {
	err := run(context.Background(), []string{"--help"})
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("run(--help) = %v, want pflag.ErrHelp", err)
	}
}

func TestRun_Version(t *testing.T) {
	if err := run(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("run(--version) = %v", err)
	}
}

func TestRun_NoHardware(t *testing.T) {
	configPath := writeConfig(t, `
hardware:
  simulated:
    enabled: false
`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"-c", configPath}); err == nil {
		t.Fatal("run() should fail when no hardware backend is enabled")
	}
}

func TestRun_SimulatedStartupAndShutdown(t *testing.T) {
	configPath := writeConfig(t, `
hardware:
  attach_timeout: 2
  simulated:
    enabled: true
    device_id: sim-test
    inputs: 2
    outputs: 2
`)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx, []string{"--config", configPath}); err != nil {
		t.Fatalf("run() = %v, want clean shutdown", err)
	}

	// The policy database survives the run.
	dbPath := filepath.Join(filepath.Dir(configPath), "iobridge.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestWebhookRoutes(t *testing.T) {
	routes := webhookRoutes(nil)
	if len(routes) != 0 {
		t.Errorf("webhookRoutes(nil) = %v, want empty", routes)
	}
}
