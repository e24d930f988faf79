package lsp

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Reconnect.Enabled || cfg.Reconnect.MaxAttempts != 5 || cfg.ReconnectDelay() != 3*time.Second {
		t.Errorf("defaults = %+v", cfg.Reconnect)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Errorf("request timeout = %v, want 10s", cfg.RequestTimeout())
	}
}

func TestLoadConfig_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsp.toml")
	content := `
endpoint = "https://ls.example.com"
root_uri = "file:///workspace"
request_timeout_ms = 5000

[languages]
go = "go"
python = "py"

[reconnect]
max_attempts = 2
delay_ms = 100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Endpoint != "https://ls.example.com" || cfg.RootURI != "file:///workspace" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Languages) != 2 || cfg.Languages["python"] != "py" {
		t.Errorf("languages = %v", cfg.Languages)
	}
	if cfg.Reconnect.MaxAttempts != 2 || cfg.ReconnectDelay() != 100*time.Millisecond {
		t.Errorf("reconnect = %+v", cfg.Reconnect)
	}
	if !cfg.Reconnect.Enabled {
		t.Error("reconnect enabled default lost when section present")
	}
	if cfg.RequestTimeout() != 5*time.Second {
		t.Errorf("request timeout = %v", cfg.RequestTimeout())
	}
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsp.toml")
	if err := os.WriteFile(path, []byte("endpoint = \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("empty endpoint accepted, want error")
	}

	if err := os.WriteFile(path, []byte("endpoint = 12 =\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed TOML accepted, want error")
	}
}
