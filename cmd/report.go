package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xsslab/xsslab/internal/domscan"
	"github.com/xsslab/xsslab/internal/report"
	"github.com/xsslab/xsslab/pkg/models"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [file...|-]",
		Short: "Scan code and write report files",
		Long: `Scan each input for DOM XSS sinks and sources and write one report per
input and format into the output directory:
- JSON for integration with other tools
- YAML for humans who prefer it over JSON
- SARIF 2.1.0 for code scanning dashboards
- Markdown for documentation and pull requests

Examples:
  xsslab report app.js
  xsslab report app.js vendor.js --format json,sarif,markdown
  xsslab report --url https://example.com --follow-external --output /tmp/reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReport(cmd, args)
		},
	}

	cmd.Flags().StringSlice("format", []string{"json"}, "report formats ("+strings.Join(report.Formats, ",")+")")
	cmd.Flags().String("framework", "", "framework rules to apply: auto, vanilla, react, vue, angular, jquery (default from config, auto)")
	cmd.Flags().String("min-severity", "", "leave out findings below this severity")
	cmd.Flags().String("url", "", "fetch a live page and report on its scripts")
	cmd.Flags().Bool("follow-external", false, "with --url, also download external scripts")
	return cmd
}

func (a *app) runReport(cmd *cobra.Command, args []string) error {
	inputs, err := a.collectInputs(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}

	framework, err := a.framework()
	if err != nil {
		return err
	}

	gen, err := report.NewGenerator(a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize report generator: %w", err)
	}

	opts := report.Options{
		Formats:   a.v.GetStringSlice("format"),
		OutputDir: a.cfg.OutputDir,
	}
	if s := a.v.GetString("min-severity"); s != "" {
		opts.MinSeverity = models.ParseSeverity(s)
	}

	out := cmd.OutOrStdout()
	var failed []string
	for _, in := range inputs {
		fw := framework
		if fw == "auto" {
			fw = domscan.DetectFramework(in.code)
		}
		opts.Target = in.target
		r := gen.Build(domscan.Scan(in.code, fw), opts)

		files, err := gen.Generate(r, opts)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", in.target, err))
		}

		formats := make([]string, 0, len(files))
		for f := range files {
			formats = append(formats, f)
		}
		sort.Strings(formats)

		printf(out, "%s %s %s\n", heading("Report:"), in.target,
			faint(fmt.Sprintf("(%d findings, risk %s)", len(r.Findings), r.Risk.Level)))
		for _, f := range formats {
			printf(out, "  %-8s %s\n", f, files[f])
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("report generation failed for %s", strings.Join(failed, "; "))
	}
	return nil
}
