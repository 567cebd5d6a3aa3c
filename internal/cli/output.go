package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"automail/internal/classify"
	"automail/internal/email"
	"automail/internal/server"
	"automail/internal/workers"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // Red
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // Blue
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // Gray

	stateStyles = map[string]lipgloss.Style{
		"active":     lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		"monitoring": lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		"idle":       lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

// OutputFormatter handles different output formats
type OutputFormatter struct {
	format  string
	quiet   bool
	noColor bool
}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter(format string, quiet bool) *OutputFormatter {
	return NewOutputFormatterWithColor(format, quiet, false)
}

// NewOutputFormatterWithColor creates a formatter with explicit color control
func NewOutputFormatterWithColor(format string, quiet, noColor bool) *OutputFormatter {
	return &OutputFormatter{
		format:  format,
		quiet:   quiet,
		noColor: noColor,
	}
}

// colorEnabled reports whether styled output should be used
func (f *OutputFormatter) colorEnabled() bool {
	if f.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func (f *OutputFormatter) render(style lipgloss.Style, text string) string {
	if !f.colorEnabled() {
		return text
	}
	return style.Render(text)
}

// PrintStatus prints the scheduler status
func (f *OutputFormatter) PrintStatus(status *workers.Status) error {
	if f.quiet {
		fmt.Println(status.State)
		return nil
	}

	switch f.format {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(status)
	case "table":
		return f.printStatusTable(status)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

func (f *OutputFormatter) printStatusTable(status *workers.Status) error {
	stateText := status.State
	if style, ok := stateStyles[status.State]; ok {
		stateText = f.render(style, status.State)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "State:\t%s\n", stateText)
	fmt.Fprintf(w, "Running:\t%t\n", status.Running)
	fmt.Fprintf(w, "Backlog remaining:\t%t\n", status.HasMore)
	fmt.Fprintf(w, "Stored messages:\t%d\n", status.StoredCount)
	if status.LastFetch != "" {
		fmt.Fprintf(w, "Last fetch:\t%s\n", status.LastFetch)
	}
	if status.LastError != "" {
		fmt.Fprintf(w, "Last error:\t%s\n", f.render(errorStyle, status.LastError))
	}

	return nil
}

// PrintHealth prints the service health response
func (f *OutputFormatter) PrintHealth(health *server.HealthResponse) error {
	if f.quiet {
		fmt.Println(health.Status)
		return nil
	}

	switch f.format {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(health)
	case "table":
		statusText := health.Status
		if health.Status == "healthy" {
			statusText = f.render(successStyle, health.Status)
		} else {
			statusText = f.render(errorStyle, health.Status)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "Service:\t%s\n", statusText)
		fmt.Fprintf(w, "Classifier:\t%s\n", health.Classifier.Status)
		fmt.Fprintf(w, "Model loaded:\t%t\n", health.Classifier.ModelLoaded)
		if health.Classifier.Message != "" {
			fmt.Fprintf(w, "Detail:\t%s\n", f.render(dimStyle, health.Classifier.Message))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintMessages prints a list of processed messages
func (f *OutputFormatter) PrintMessages(messages []*email.Message) error {
	if f.quiet {
		for _, msg := range messages {
			fmt.Println(msg.ID)
		}
		return nil
	}

	switch f.format {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(messages)
	case "table":
		return f.printMessagesTable(messages)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

func (f *OutputFormatter) printMessagesTable(messages []*email.Message) error {
	if len(messages) == 0 {
		fmt.Println("No messages found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSUBJECT\tFROM\tLABEL\tCONF\tDATE")

	for _, msg := range messages {
		label := msg.AILabel
		if label == "" {
			label = "-"
		}

		conf := "-"
		if msg.AIConfidence > 0 {
			conf = fmt.Sprintf("%.2f", msg.AIConfidence)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(msg.ID, 12),
			truncate(msg.Subject, 35),
			truncate(msg.SenderEmail, 25),
			label,
			conf,
			msg.Date.Format("2006-01-02"))
	}

	return nil
}

// PrintClassification prints an ad-hoc classification result
func (f *OutputFormatter) PrintClassification(result *classify.Result) error {
	if f.quiet {
		fmt.Println(result.Label)
		return nil
	}

	switch f.format {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(result)
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "Label:\t%s\n", result.Label)
		fmt.Fprintf(w, "Confidence:\t%.2f\n", result.Confidence)
		if result.Reasoning != "" {
			fmt.Fprintf(w, "Reasoning:\t%s\n", result.Reasoning)
		}
		if result.Fallback {
			fmt.Fprintf(w, "Source:\t%s\n", f.render(dimStyle, "rule-based fallback"))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintSuccess prints a success message
func (f *OutputFormatter) PrintSuccess(message string) {
	if !f.quiet {
		fmt.Printf("%s %s\n", f.render(successStyle, "✓"), message)
	}
}

// PrintError prints an error message
func (f *OutputFormatter) PrintError(err error) {
	if !f.quiet {
		fmt.Fprintf(os.Stderr, "%s Error: %v\n", f.render(errorStyle, "✗"), err)
	}
}

// PrintInfo prints an informational message
func (f *OutputFormatter) PrintInfo(message string) {
	if !f.quiet {
		fmt.Printf("%s %s\n", f.render(infoStyle, "ℹ"), message)
	}
}

// truncate shortens a string to maxLen with an ellipsis
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return strings.TrimSpace(s[:maxLen-3]) + "..."
}
