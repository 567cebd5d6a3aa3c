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

var messagesLimit int

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"ls"},
	Short:   "List recently processed messages",
	RunE:    runMessages,
}

func init() {
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 50, "maximum messages to list")
	rootCmd.AddCommand(messagesCmd)
}

func runMessages(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient()
	if err != nil {
		return err
	}

	response, err := client.GetMessages(messagesLimit)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintMessages(response.Messages)
}
