package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "secret: s3cret\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":4242" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("dataDir = %q", cfg.DataDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("logLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
dataDir: /var/lib/janus
secret: s3cret
chunkMode: buzhash
pricePerKiB: 5
tokens:
  tok-abc: alice
roles:
  alice:
    - editor
    - viewer
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":9000" || cfg.DataDir != "/var/lib/janus" {
		t.Errorf("listen/dataDir = %q %q", cfg.Listen, cfg.DataDir)
	}
	if cfg.Tokens["tok-abc"] != "alice" {
		t.Errorf("tokens = %v", cfg.Tokens)
	}
	if len(cfg.Roles["alice"]) != 2 {
		t.Errorf("roles = %v", cfg.Roles)
	}
	if cfg.PricePerKiB != 5 {
		t.Errorf("pricePerKiB = %d", cfg.PricePerKiB)
	}
}

func TestLoad_Rejections(t *testing.T) {
	if _, err := Load(writeConfig(t, "listen: ':9000'\n")); err == nil {
		t.Error("accepted config without secret")
	}
	if _, err := Load(writeConfig(t, "secret: s\nchunkMode: rolling\n")); err == nil {
		t.Error("accepted unknown chunk mode")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("accepted missing file")
	}
}
