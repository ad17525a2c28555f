package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default configuration should validate: %v", err)
	}
	if cfg.Decode.Cooldown != 2*time.Second {
		t.Errorf("Expected 2s cooldown, got %v", cfg.Decode.Cooldown)
	}
	if !cfg.Decode.Software.TryHarderEnabled() {
		t.Error("try_harder should default to enabled")
	}
	if cfg.Camera.Facing != "environment" {
		t.Errorf("Expected environment facing, got %s", cfg.Camera.Facing)
	}
	if cfg.Telemetry.Enabled || cfg.Telemetry.Interval != time.Minute {
		t.Errorf("Expected telemetry disabled with a 1m interval, got %+v", cfg.Telemetry)
	}
	if len(cfg.Decode.Formats) != len(DefaultFormats) {
		t.Errorf("Expected default formats, got %v", cfg.Decode.Formats)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
camera:
  backend: ffmpeg
  input: /dev/video2
  acquire_timeout: 3s
decode:
  accelerated: "off"
  cooldown: 1500ms
  software:
    try_harder: false
    scan_interval: 50ms
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Camera.Backend != "ffmpeg" || cfg.Camera.Input != "/dev/video2" {
		t.Errorf("Unexpected camera config: %+v", cfg.Camera)
	}
	if cfg.Camera.AcquireTimeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", cfg.Camera.AcquireTimeout)
	}
	if cfg.Decode.Accelerated != "off" {
		t.Errorf("Expected accelerated off, got %s", cfg.Decode.Accelerated)
	}
	if cfg.Decode.Software.TryHarderEnabled() {
		t.Error("Expected try_harder disabled")
	}
	if cfg.Camera.IdealWidth != 1280 {
		t.Errorf("Defaults should still apply, got ideal width %d", cfg.Camera.IdealWidth)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("camera: [")); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/scanner.yaml"); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Camera.Backend = "ffmpeg"
	cfg.Camera.Facing = "sideways"
	cfg.Decode.Formats = []string{"qr_code"}
	cfg.Decode.Accelerated = "maybe"
	cfg.Camera.IdealWidth = 320
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Interval = time.Millisecond

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	for _, want := range []string{"camera.input", "camera.facing", "qr_code", "decode.accelerated", "ideal resolution", "telemetry.interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validation error should mention %q: %v", want, err)
		}
	}
}

func TestValidate_MQTT(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default MQTT settings should validate: %v", err)
	}

	cfg.MQTT.QoS = 3
	cfg.MQTT.Broker = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"mqtt.qos", "mqtt.broker"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %v", want, err)
		}
	}
}

func TestValidate_PreviewQuality(t *testing.T) {
	cfg := Default()
	cfg.Web.PreviewQuality = 101
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "web.preview_quality") {
		t.Fatalf("Expected preview quality error, got %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "SCANNER_TEST_DOTENV_FACING=user\nSCANNER_TEST_DOTENV_KEEP=file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCANNER_TEST_DOTENV_KEEP", "process")
	t.Cleanup(func() { os.Unsetenv("SCANNER_TEST_DOTENV_FACING") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("SCANNER_TEST_DOTENV_FACING"); got != "user" {
		t.Errorf("Expected value from file, got %q", got)
	}
	if got := os.Getenv("SCANNER_TEST_DOTENV_KEEP"); got != "process" {
		t.Errorf("Process environment must win, got %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("Missing file should be ignored: %v", err)
	}
}
