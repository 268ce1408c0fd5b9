package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xsslab/xsslab/internal/csp"
	"github.com/xsslab/xsslab/internal/domscan"
	"github.com/xsslab/xsslab/internal/recon"
	"github.com/xsslab/xsslab/internal/report"
	"github.com/xsslab/xsslab/pkg/models"
)

// scanInput is one piece of code to scan and where it came from.
type scanInput struct {
	target string
	code   string
	policy string
}

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [file...|-]",
		Short: "Find dangerous DOM sinks and untrusted sources in JavaScript",
		Long: `Scan JavaScript or template code for DOM XSS sinks (innerHTML, eval,
document.write, framework escape hatches...) and attacker-controlled
sources (location, document.referrer, postMessage data...). Sources and
sinks that appear close together are reported as likely data flows.

Examples:
  xsslab scan app.js
  xsslab scan src/*.js --min-severity high
  cat component.jsx | xsslab scan - --framework react
  xsslab scan --url https://example.com --follow-external
  xsslab scan app.js --format sarif > results.sarif
  xsslab scan --list --framework react`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args)
		},
	}

	cmd.Flags().String("url", "", "fetch a live page and scan its scripts")
	cmd.Flags().Bool("follow-external", false, "with --url, also download external scripts")
	cmd.Flags().String("framework", "", "framework rules to apply: auto, vanilla, react, vue, angular, jquery (default from config, auto)")
	cmd.Flags().String("min-severity", "", "hide findings below this severity")
	cmd.Flags().String("format", "table", "output format (table, json, yaml, sarif, markdown)")
	cmd.Flags().Bool("list", false, "list the sink and source catalog and exit")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, args []string) error {
	if a.v.GetBool("list") {
		framework, err := a.framework()
		if err != nil {
			return err
		}
		return listCatalog(cmd.OutOrStdout(), framework, a.v.GetString("format"))
	}

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

	opts := report.Options{}
	if s := a.v.GetString("min-severity"); s != "" {
		opts.MinSeverity = models.ParseSeverity(s)
	}

	reports := make([]*report.Report, 0, len(inputs))
	for _, in := range inputs {
		fw := framework
		if fw == "auto" {
			fw = domscan.DetectFramework(in.code)
		}
		result := domscan.Scan(in.code, fw)
		opts.Target = in.target
		reports = append(reports, gen.Build(result, opts))

		a.log.Info("Scanned code",
			"target", in.target,
			"framework", result.Framework,
			"findings", result.Summary.TotalFindings,
			"flows", result.Summary.DataFlowCount)
	}

	out := cmd.OutOrStdout()
	format := strings.ToLower(a.v.GetString("format"))
	switch format {
	case "table":
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(out)
			}
			printScanReport(out, r)
			if inputs[i].policy != "" {
				printPolicySummary(out, inputs[i].policy)
			}
		}
		return nil
	case "json", "yaml", "yml":
		var v interface{} = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		_, err := writeStructured(out, format, v)
		return err
	case "sarif", "markdown", "md":
		if format == "sarif" && len(reports) > 1 {
			return fmt.Errorf("sarif output takes a single input; use 'xsslab report' for several files")
		}
		for _, r := range reports {
			if err := gen.Render(out, r, format); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func (a *app) collectInputs(ctx context.Context, cmd *cobra.Command, args []string) ([]scanInput, error) {
	if target := a.v.GetString("url"); target != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--url cannot be combined with file arguments")
		}
		if a.v.GetBool("follow-external") {
			a.cfg.Fetch.FollowExternal = true
		}

		stop := startSpinner(cmd.ErrOrStderr(), "Fetching "+target)
		page, err := recon.NewFetcher(a.cfg, a.log).Fetch(ctx, target)
		stop()
		if err != nil {
			return nil, err
		}
		code := page.Code()
		if err := a.checkSize(target, code); err != nil {
			return nil, err
		}
		return []scanInput{{target: page.URL, code: code, policy: page.Policy()}}, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("nothing to scan: pass files, - for stdin, or --url")
	}

	inputs := make([]scanInput, 0, len(args))
	for _, arg := range args {
		var (
			data []byte
			err  error
		)
		target := arg
		if arg == "-" {
			target = "stdin"
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(arg)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", target, err)
		}
		if err := a.checkSize(target, string(data)); err != nil {
			return nil, err
		}
		inputs = append(inputs, scanInput{target: target, code: string(data)})
	}
	return inputs, nil
}

func (a *app) checkSize(target, code string) error {
	if len(code) > a.cfg.Scan.MaxCodeSize {
		return fmt.Errorf("%s is %d bytes, above the %d byte scan limit", target, len(code), a.cfg.Scan.MaxCodeSize)
	}
	return nil
}

// framework resolves --framework, falling back to scan.default_framework.
func (a *app) framework() (string, error) {
	framework := strings.ToLower(strings.TrimSpace(a.v.GetString("framework")))
	if framework == "" {
		framework = a.cfg.Scan.DefaultFramework
	}
	if framework != "auto" && !knownFramework(framework) {
		return "", fmt.Errorf("unknown framework %q (choose from auto, %s)", framework, strings.Join(domscan.Frameworks(), ", "))
	}
	return framework, nil
}

func knownFramework(name string) bool {
	for _, f := range domscan.Frameworks() {
		if f == name {
			return true
		}
	}
	return false
}

func printScanReport(out io.Writer, r *report.Report) {
	printf(out, "%s %s %s\n\n", heading("Scan:"), r.Target, faint("(framework: "+r.Framework+")"))

	if len(r.Findings) == 0 {
		printf(out, "%s\n", green("No sinks or sources found"))
	} else {
		table := newTable(out, "Severity", "Type", "Name", "Line", "Snippet")
		for _, f := range r.Findings {
			table.Append([]string{
				severityText(f.Severity),
				f.Kind,
				f.Name,
				fmt.Sprintf("%d:%d", f.Line, f.Column),
				truncate(f.Snippet, 60),
			})
		}
		table.Render()
	}

	if len(r.DataFlows) > 0 {
		printf(out, "\n%s\n", bold("Data flows"))
		for _, flow := range r.DataFlows {
			printf(out, "  %s %s (line %d) -> %s (line %d), %s confidence\n",
				severityText(flow.Severity), flow.Source, flow.SourceLine, flow.Sink, flow.SinkLine, flow.Confidence)
		}
	}

	if len(r.Patterns) > 0 {
		printf(out, "\n%s\n", bold("Known patterns"))
		for _, p := range r.Patterns {
			printf(out, "  %s: %s\n", p.Name, p.Description)
		}
	}

	if len(r.Remediations) > 0 {
		printf(out, "\n%s\n", bold("Remediation"))
		for _, rem := range r.Remediations {
			line := "  " + rem.Finding
			if rem.SafeAlternative != "" {
				line += ": use " + rem.SafeAlternative
			}
			printf(out, "%s\n", line)
		}
	}

	printf(out, "\n%s %s (%d/100) %s\n", bold("Risk:"), severityText(r.Risk.Level), r.Risk.Score, r.Risk.Description)
}

func printPolicySummary(out io.Writer, header string) {
	score := csp.CalculateSecurityScore(csp.Parse(header))
	printf(out, "%s %s (%d/100) %s\n", bold("CSP:"), ratingText(score.Rating, score.Color), score.Score, faint(truncate(header, 80)))
}

// listCatalog prints the sinks and sources the scanner knows. A framework
// other than auto narrows the sinks to vanilla plus that framework.
func listCatalog(out io.Writer, framework, format string) error {
	var sinks []domscan.SinkDefinition
	for _, s := range domscan.SinkCatalog() {
		if framework == "auto" || framework == "" || s.Framework == domscan.FrameworkVanilla || s.Framework == framework {
			sinks = append(sinks, s)
		}
	}
	sources := domscan.SourceCatalog()

	catalog := struct {
		Sinks   []domscan.SinkDefinition   `json:"sinks" yaml:"sinks"`
		Sources []domscan.SourceDefinition `json:"sources" yaml:"sources"`
	}{sinks, sources}
	if ok, err := writeStructured(out, format, catalog); ok {
		return err
	}

	table := newTable(out, "Kind", "Name", "Framework", "Severity", "Safe alternative")
	for _, s := range sinks {
		table.Append([]string{"sink", s.Name, s.Framework, severityText(s.Severity), s.SafeAlternative})
	}
	for _, s := range sources {
		table.Append([]string{"source", s.Name, s.Framework, severityText(s.Severity), s.SafeAlternative})
	}
	table.Render()
	return nil
}
