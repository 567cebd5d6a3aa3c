package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	content := `
# Credentials for local runs
AUTOMAIL_TEST_PLAIN=plain-value
AUTOMAIL_TEST_QUOTED="quoted value"
AUTOMAIL_TEST_SINGLE='single value'

not a valid line
AUTOMAIL_TEST_EXISTING=from-file
`

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	keys := []string{
		"AUTOMAIL_TEST_PLAIN",
		"AUTOMAIL_TEST_QUOTED",
		"AUTOMAIL_TEST_SINGLE",
		"AUTOMAIL_TEST_EXISTING",
	}
	for _, key := range keys {
		os.Unsetenv(key)
	}
	defer func() {
		for _, key := range keys {
			os.Unsetenv(key)
		}
	}()

	os.Setenv("AUTOMAIL_TEST_EXISTING", "from-env")

	LoadEnvFile(envFile)

	if got := os.Getenv("AUTOMAIL_TEST_PLAIN"); got != "plain-value" {
		t.Errorf("Expected 'plain-value', got '%s'", got)
	}
	if got := os.Getenv("AUTOMAIL_TEST_QUOTED"); got != "quoted value" {
		t.Errorf("Expected 'quoted value', got '%s'", got)
	}
	if got := os.Getenv("AUTOMAIL_TEST_SINGLE"); got != "single value" {
		t.Errorf("Expected 'single value', got '%s'", got)
	}
	if got := os.Getenv("AUTOMAIL_TEST_EXISTING"); got != "from-env" {
		t.Errorf("Environment should win over file, got '%s'", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	// Must be a no-op, not a panic
	LoadEnvFile(filepath.Join(t.TempDir(), "does-not-exist.env"))
}
