// Copyright 2025 Automail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestAutomailCLI(t *testing.T) {
	t.Run("Help flag works", func(t *testing.T) {
		cmd := &cobra.Command{
			Use:   "automail",
			Short: "Email classification and labeling service",
			Long:  "Test help command",
		}
		cmd.SetArgs([]string{"--help"})

		var buf bytes.Buffer
		cmd.SetOut(&buf)

		if err := cmd.Execute(); err != nil {
			t.Fatalf("Help command failed: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Test help command") {
			t.Errorf("Help output missing expected content, got: %s", output)
		}
	})

	t.Run("Subcommands registered", func(t *testing.T) {
		expected := []string{"status", "health", "start", "stop", "messages", "classify"}
		for _, name := range expected {
			found := false
			for _, sub := range rootCmd.Commands() {
				if sub.Name() == name {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Expected subcommand '%s' to be registered", name)
			}
		}
	})

	t.Run("Configuration loading with config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "automail.yaml")

		yamlContent := `
processing:
  check_interval: 45s
`
		if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
			t.Fatal(err)
		}

		configFile = configPath
		defer func() { configFile = "" }()

		cfg, err := loadConfiguration()
		if err != nil {
			t.Fatalf("Failed to load configuration: %v", err)
		}

		if cfg.Processing.CheckInterval != 45*time.Second {
			t.Errorf("Expected check interval 45s, got %v", cfg.Processing.CheckInterval)
		}
	})

	t.Run("Configuration loading with missing file", func(t *testing.T) {
		configFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
		defer func() { configFile = "" }()

		if _, err := loadConfiguration(); err == nil {
			t.Error("Expected error for missing config file")
		}
	})
}
