package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServerURL != "http://localhost:8847" {
		t.Errorf("Expected default server URL to be 'http://localhost:8847', got '%s'", config.ServerURL)
	}

	if config.Format != "table" {
		t.Errorf("Expected default format to be 'table', got '%s'", config.Format)
	}

	if config.Quiet != false {
		t.Errorf("Expected default quiet to be false, got %v", config.Quiet)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AUTOMAIL_SERVER", "http://test.example.com:9090")
	t.Setenv("AUTOMAIL_FORMAT", "json")
	t.Setenv("AUTOMAIL_QUIET", "true")

	config, err := LoadConfig("", "", false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ServerURL != "http://test.example.com:9090" {
		t.Errorf("Expected server URL from env, got '%s'", config.ServerURL)
	}
	if config.Format != "json" {
		t.Errorf("Expected format 'json', got '%s'", config.Format)
	}
	if !config.Quiet {
		t.Error("Expected quiet to be true")
	}
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AUTOMAIL_SERVER", "http://env.example.com")
	t.Setenv("AUTOMAIL_FORMAT", "json")

	config, err := LoadConfig("http://flag.example.com", "table", false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ServerURL != "http://flag.example.com" {
		t.Errorf("Expected flag to override env, got '%s'", config.ServerURL)
	}
	if config.Format != "table" {
		t.Errorf("Expected flag format 'table', got '%s'", config.Format)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	fileConfig := Config{ServerURL: "http://file.example.com", Format: "json"}
	data, _ := json.Marshal(fileConfig)
	if err := os.WriteFile(filepath.Join(home, ".automail.json"), data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadConfig("", "", false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ServerURL != "http://file.example.com" {
		t.Errorf("Expected server URL from file, got '%s'", config.ServerURL)
	}
}

func TestLoadConfigInvalidFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadConfig("", "xml", false)
	if err == nil {
		t.Fatal("Expected error for invalid format")
	}
}
