package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8080/api" {
		t.Fatalf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout())
	}
}

func TestLoadOptionalReadsFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("api:\n  base_url: https://campus.example.edu/api\n  timeout_seconds: 30\n")
	if err := os.WriteFile(filepath.Join(dir, "campusline.yml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://campus.example.edu/api" {
		t.Fatalf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout())
	}
	// omitted sections keep their defaults
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("server addr = %q", cfg.Server.Addr)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := FromYAML([]byte("api:\n  base_url: \"\"\n")); err == nil {
		t.Fatal("empty base_url accepted")
	}
	if _, err := FromYAML([]byte("api: [not a map]")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
	if _, err := FromYAML([]byte("api:\n  timeout_seconds: -1\n")); err == nil {
		t.Fatal("negative timeout accepted")
	}
}
