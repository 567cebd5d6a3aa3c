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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var classifySubject string

var classifyCmd = &cobra.Command{
	Use:   "classify [content...]",
	Short: "Classify ad-hoc content through a running instance",
	Long: `Classify arbitrary text through the running service's classifier.
Useful for testing classification behavior:

    automail classify --subject "Invoice attached" "please find your receipt"`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifySubject, "subject", "", "subject line to classify")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")
	if classifySubject == "" && content == "" {
		return fmt.Errorf("provide a subject, content, or both")
	}

	_, formatter, client, err := initializeClient()
	if err != nil {
		return err
	}

	result, err := client.Classify(classifySubject, content)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintClassification(result)
}
