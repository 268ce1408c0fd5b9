package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xsslab/xsslab/internal/csp"
)

func newCSPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csp",
		Short: "Analyze, test and build Content-Security-Policy headers",
	}
	cmd.AddCommand(
		newCSPAnalyzeCmd(a),
		newCSPTestCmd(a),
		newCSPBuildCmd(a),
		newCSPExplainCmd(a),
	)
	return cmd
}

type cspAnalysis struct {
	Parsed *csp.ParsedCSP    `json:"parsed" yaml:"parsed"`
	Score  csp.SecurityScore `json:"score" yaml:"score"`
}

func newCSPAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [policy|-]",
		Short: "Parse a policy, list its problems and score it",
		Example: `  xsslab csp analyze "default-src 'self'; script-src 'self' 'unsafe-inline'"
  curl -sI https://example.com | sed -n 's/^content-security-policy: //Ip' | xsslab csp analyze -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := readArg(cmd, args[0])
			if err != nil {
				return err
			}
			parsed := csp.Parse(header)
			analysis := cspAnalysis{Parsed: parsed, Score: csp.CalculateSecurityScore(parsed)}
			a.log.Debug("Analyzed policy", "directives", len(parsed.Order), "score", analysis.Score.Score)

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, a.v.GetString("format"), analysis); ok {
				return err
			}
			printAnalysis(out, analysis)
			return nil
		},
	}
	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
	return cmd
}

func printAnalysis(out io.Writer, an cspAnalysis) {
	if len(an.Parsed.Order) > 0 {
		table := newTable(out, "Directive", "Values")
		for _, d := range an.Parsed.Ordered() {
			table.Append([]string{d.Name, strings.Join(d.Values, " ")})
		}
		table.Render()
	}

	for _, e := range an.Parsed.Errors {
		printf(out, "%s %s\n", red("error:"), e)
	}
	for _, w := range an.Parsed.Warnings {
		printf(out, "%s %s\n", yellow("warning:"), w)
	}

	printf(out, "\n%s %s (%d/100)\n", bold("Score:"), ratingText(an.Score.Rating, an.Score.Color), an.Score.Score)
	for _, issue := range an.Score.Issues {
		printf(out, "  - %s\n", issue)
	}
}

func newCSPTestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test payload...",
		Short: "Check whether payloads would run under a policy",
		Example: `  xsslab csp test '<script>alert(1)</script>' --policy "script-src 'self'"
  xsslab csp test '<img src=x onerror=alert(1)>' '<script src=https://evil.example/x.js></script>' --policy "script-src 'self' https://cdn.example"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := a.v.GetString("policy")
			if strings.TrimSpace(policy) == "" {
				return fmt.Errorf("--policy is required")
			}
			parsed := csp.Parse(policy)

			type verdict struct {
				Payload        string `json:"payload" yaml:"payload"`
				csp.TestResult `yaml:",inline"`
			}
			verdicts := make([]verdict, 0, len(args))
			for _, p := range args {
				verdicts = append(verdicts, verdict{Payload: p, TestResult: csp.TestPayload(p, parsed)})
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, a.v.GetString("format"), verdicts); ok {
				return err
			}

			table := newTable(out, "Payload", "Result", "Severity", "Reason")
			for _, v := range verdicts {
				result := red("runs")
				if v.Blocked {
					result = green("blocked")
				}
				table.Append([]string{truncate(v.Payload, 50), result, severityText(v.Severity), v.Reason})
			}
			table.Render()

			for _, v := range verdicts {
				if v.Recommendation != "" {
					printf(out, "%s %s\n", bold("Fix:"), v.Recommendation)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("policy", "", "policy to test against")
	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
	return cmd
}

type builtPolicy struct {
	Header     string                `json:"header" yaml:"header"`
	Nonce      string                `json:"nonce,omitempty" yaml:"nonce,omitempty"`
	Directives []csp.DirectiveOption `json:"directives" yaml:"directives"`
	Score      csp.SecurityScore     `json:"score" yaml:"score"`
}

func newCSPBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate a policy from a preset and directive overrides",
		Long: `Build a Content-Security-Policy header. Start from a preset, then
override whole directives with --directive, add a fresh nonce to
script-src with --nonce, or allow specific inline scripts with --hash.

Presets: ` + strings.Join(csp.PresetNames(), ", "),
		Example: `  xsslab csp build --preset strict
  xsslab csp build --preset moderate --directive "img-src 'self' https://images.example"
  xsslab csp build --directive "default-src 'self'" --nonce
  xsslab csp build --preset strict --hash 'console.log("hi")' --hash-alg sha384`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := csp.NewBuilder()
			if name := a.v.GetString("preset"); name != "" {
				opts, ok := csp.Preset(name)
				if !ok {
					return fmt.Errorf("unknown preset %q (choose from %s)", name, strings.Join(csp.PresetNames(), ", "))
				}
				for _, o := range opts {
					b.Set(o.Name, o.Values...)
				}
			}

			directives, err := cmd.Flags().GetStringArray("directive")
			if err != nil {
				return err
			}
			for _, d := range directives {
				fields := strings.Fields(d)
				if len(fields) < 2 {
					return fmt.Errorf("directive %q needs a name and at least one value", d)
				}
				b.Set(fields[0], fields[1:]...)
			}

			built := builtPolicy{}
			if a.v.GetBool("nonce") {
				nonce, source, err := csp.GenerateNonce()
				if err != nil {
					return err
				}
				built.Nonce = nonce
				b.Add("script-src", source)
			}

			scripts, err := cmd.Flags().GetStringArray("hash")
			if err != nil {
				return err
			}
			for _, script := range scripts {
				source, err := csp.HashSource(script, a.v.GetString("hash-alg"))
				if err != nil {
					return err
				}
				b.Add("script-src", source)
			}

			built.Header = b.String()
			if built.Header == "" {
				return fmt.Errorf("empty policy: pass --preset or --directive")
			}
			built.Directives = b.Options()
			built.Score = csp.CalculateSecurityScore(csp.Parse(built.Header))

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, a.v.GetString("format"), built); ok {
				return err
			}
			fmt.Fprintln(out, built.Header)
			if built.Nonce != "" {
				printf(out, "%s %s\n", bold("Nonce:"), built.Nonce)
			}
			printf(out, "%s %s (%d/100)\n", bold("Score:"), ratingText(built.Score.Rating, built.Score.Color), built.Score.Score)
			return nil
		},
	}
	cmd.Flags().String("preset", "", "start from a preset ("+strings.Join(csp.PresetNames(), ", ")+")")
	cmd.Flags().StringArray("directive", nil, `set a directive, e.g. "script-src 'self' https://cdn.example" (repeatable)`)
	cmd.Flags().Bool("nonce", false, "add a freshly generated nonce to script-src")
	cmd.Flags().StringArray("hash", nil, "inline script body to allow by hash (repeatable)")
	cmd.Flags().String("hash-alg", "sha256", "hash algorithm (sha256, sha384, sha512)")
	cmd.Flags().String("format", "text", "output format (text, json, yaml)")
	return cmd
}

func newCSPExplainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [directive]",
		Short: "Describe CSP directives",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			format := a.v.GetString("format")

			if len(args) == 0 {
				catalog := csp.Catalog()
				if ok, err := writeStructured(out, format, catalog); ok {
					return err
				}
				table := newTable(out, "Directive", "Category", "Description")
				for _, d := range catalog {
					name := d.Name
					if d.Deprecated {
						name += " " + faint("(deprecated)")
					}
					table.Append([]string{name, string(d.Category), d.Description})
				}
				table.Render()
				return nil
			}

			d, ok := csp.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown directive %q", args[0])
			}
			if ok, err := writeStructured(out, format, d); ok {
				return err
			}

			printf(out, "%s %s\n", heading(d.Name), faint("("+string(d.Category)+")"))
			if d.Deprecated {
				printf(out, "%s\n", yellow("Deprecated"))
			}
			printf(out, "\n%s\n", d.Description)
			if d.XSSImpact != "" {
				printf(out, "\n%s %s\n", bold("XSS impact:"), d.XSSImpact)
			}
			if len(d.Examples) > 0 {
				printf(out, "\n%s\n", bold("Examples"))
				for _, e := range d.Examples {
					printf(out, "  %s\n", e)
				}
			}
			if len(d.CommonMistakes) > 0 {
				printf(out, "\n%s\n", bold("Common mistakes"))
				for _, m := range d.CommonMistakes {
					printf(out, "  - %s\n", m)
				}
			}
			printf(out, "\n%s %s\n", bold("Recommendation:"), d.Recommendation)
			printf(out, "%s %s\n", bold("Browser support:"), d.BrowserSupport)
			return nil
		},
	}
	cmd.Flags().String("format", "text", "output format (text, json, yaml)")
	return cmd
}
