package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/xsslab/xsslab/pkg/models"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func severityText(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(strings.ToUpper(string(s)))
	case models.SeverityHigh:
		return color.New(color.FgRed).Sprint(strings.ToUpper(string(s)))
	case models.SeverityMedium:
		return color.New(color.FgYellow).Sprint(strings.ToUpper(string(s)))
	case models.SeverityLow:
		return color.New(color.FgBlue).Sprint(strings.ToUpper(string(s)))
	default:
		return strings.ToUpper(string(s))
	}
}

func ratingText(rating, col string) string {
	switch col {
	case "green":
		return green(rating)
	case "blue":
		return color.New(color.FgBlue).Sprint(rating)
	case "yellow", "orange":
		return yellow(rating)
	default:
		return red(rating)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// writeStructured prints v as JSON or YAML. It reports false for any
// other format so the caller can fall back to its human readable view.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// startSpinner shows progress on stderr when it is a terminal.
func startSpinner(w io.Writer, suffix string) func() {
	f, ok := w.(*os.File)
	if !ok || f != os.Stderr {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
