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
	"github.com/spf13/cobra"
)

var forceStart bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start processing on a running instance",
	Long:  `Ask a running automail instance to begin processing the inbox. Repeated starts within a minute are rate limited unless --force is given.`,
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&forceStart, "force", false, "bypass the start rate limit")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient()
	if err != nil {
		return err
	}

	if err := client.StartProcessing(forceStart); err != nil {
		formatter.PrintError(err)
		return err
	}

	formatter.PrintSuccess("Processing started")
	return nil
}
