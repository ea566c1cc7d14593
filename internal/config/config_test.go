package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("built-in defaults do not validate: %v", err)
	}
	if cfg.OSC.SendPort != 11000 || cfg.OSC.ReceivePort != 11001 {
		t.Errorf("default ports = %d/%d, want 11000/11001", cfg.OSC.SendPort, cfg.OSC.ReceivePort)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"send port zero", func(c *Config) { c.OSC.SendPort = 0 }, "osc.send_port"},
		{"receive port too high", func(c *Config) { c.OSC.ReceivePort = 70000 }, "osc.receive_port"},
		{"same ports", func(c *Config) { c.OSC.ReceivePort = c.OSC.SendPort }, "must differ"},
		{"zero query timeout", func(c *Config) { c.OSC.QueryTimeout = 0 }, "query_timeout"},
		{"negative poll interval", func(c *Config) { c.Automation.PollInterval = -time.Second }, "poll_interval"},
		{"zero retries", func(c *Config) { c.Automation.ActivationRetries = 0 }, "activation_retries"},
		{"bogus format", func(c *Config) { c.Output.Format = "ogg" }, "export format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with no file: %v", err)
	}
	if cfg.OSC.Host != "127.0.0.1" {
		t.Errorf("host = %q, want default", cfg.OSC.Host)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected an error for an explicitly named missing file")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveexport.yaml")
	content := `
osc:
  host: 192.168.1.20
automation:
  completion_timeout: 5m
output:
  format: flac
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OSC.Host != "192.168.1.20" {
		t.Errorf("host = %q", cfg.OSC.Host)
	}
	if cfg.Automation.CompletionTimeout != 5*time.Minute {
		t.Errorf("completion_timeout = %s, want 5m", cfg.Automation.CompletionTimeout)
	}
	if cfg.Output.Format != "flac" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
	// Untouched keys keep their defaults.
	if cfg.OSC.SendPort != 11000 {
		t.Errorf("send_port = %d, want default 11000", cfg.OSC.SendPort)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveexport.yaml")
	if err := os.WriteFile(path, []byte("osc:\n  send_port: 11001\n  receive_port: 11001\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation failure for colliding ports")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LIVEEXPORT_OSC_HOST", "10.0.0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OSC.Host != "10.0.0.5" {
		t.Errorf("host = %q, want env override", cfg.OSC.Host)
	}
}

func TestExpandPath(t *testing.T) {
	home := os.Getenv("HOME")
	if got := expandPath("~/exports"); got != filepath.Join(home, "exports") {
		t.Errorf("expandPath(~/exports) = %q", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("expandPath(/abs/path) = %q", got)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "liveexport.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Fatal("WriteDefault overwrote an existing file")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of written default: %v", err)
	}
	if cfg.Automation.AppName != defaultConfig.Automation.AppName {
		t.Errorf("app_name = %q after round trip", cfg.Automation.AppName)
	}
	if cfg.Automation.ExportDelay != defaultConfig.Automation.ExportDelay {
		t.Errorf("export_delay = %s after round trip", cfg.Automation.ExportDelay)
	}
}
