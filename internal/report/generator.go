package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/domscan"
	"github.com/xsslab/xsslab/internal/logger"
	"github.com/xsslab/xsslab/pkg/models"
)

const (
	generatorName    = "xsslab"
	generatorVersion = "1.0.0"
	informationURI   = "https://owasp.org/www-community/attacks/DOM_Based_XSS"
)

// Formats lists the supported output formats.
var Formats = []string{"json", "yaml", "sarif", "markdown"}

// Generator renders DOM scan reports
type Generator struct {
	config    *config.Config
	log       logger.Logger
	templates *TemplateManager
	now       func() time.Time
}

// Options controls a single report run
type Options struct {
	Target      string
	Formats     []string
	MinSeverity models.Severity
	OutputDir   string
}

// Report is the data every format is rendered from
type Report struct {
	ID           string                 `json:"id" yaml:"id"`
	Target       string                 `json:"target" yaml:"target"`
	GeneratedAt  time.Time              `json:"generatedAt" yaml:"generated_at"`
	Generator    string                 `json:"generator" yaml:"generator"`
	Version      string                 `json:"version" yaml:"version"`
	Framework    string                 `json:"framework" yaml:"framework"`
	Risk         domscan.RiskScore      `json:"risk" yaml:"risk"`
	Summary      domscan.Summary        `json:"summary" yaml:"summary"`
	Findings     []domscan.Finding      `json:"findings" yaml:"findings"`
	DataFlows    []domscan.DataFlow     `json:"dataFlows" yaml:"data_flows"`
	Patterns     []domscan.KnownPattern `json:"knownPatterns" yaml:"known_patterns"`
	Remediations []domscan.Remediation  `json:"remediations" yaml:"remediations"`
}

// NewGenerator creates a new report generator
func NewGenerator(cfg *config.Config, log logger.Logger) (*Generator, error) {
	tm := NewTemplateManager()
	if err := tm.LoadTemplate("markdown", MarkdownTemplate); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return &Generator{
		config:    cfg,
		log:       log,
		templates: tm,
		now:       time.Now,
	}, nil
}

// Build assembles a report from a scan result. Findings below
// opts.MinSeverity are left out; the risk score is always computed over
// the whole scan.
func (g *Generator) Build(result *domscan.ScanResult, opts Options) *Report {
	if result == nil {
		result = domscan.Scan("", "")
	}

	r := &Report{
		ID:          uuid.NewString(),
		Target:      opts.Target,
		GeneratedAt: g.now().UTC(),
		Generator:   generatorName,
		Version:     generatorVersion,
		Framework:   result.Framework,
		Risk:        domscan.CalculateRiskScore(result),
		Summary:     result.Summary,
		Findings:    filterFindings(result.Findings, opts.MinSeverity),
		DataFlows:   result.DataFlows,
		Patterns:    result.KnownPatterns,
	}
	if r.Target == "" {
		r.Target = "stdin"
	}

	seen := map[string]bool{}
	r.Remediations = []domscan.Remediation{}
	for _, f := range r.Findings {
		if f.Kind != domscan.KindSink || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		r.Remediations = append(r.Remediations, domscan.GetRemediationAdvice(f))
	}
	sort.SliceStable(r.Remediations, func(i, j int) bool {
		return models.Severity(r.Remediations[i].Severity).Rank() > models.Severity(r.Remediations[j].Severity).Rank()
	})
	return r
}

func filterFindings(findings []domscan.Finding, min models.Severity) []domscan.Finding {
	out := make([]domscan.Finding, 0, len(findings))
	for _, f := range findings {
		if min == "" || f.Severity.AtLeast(min) {
			out = append(out, f)
		}
	}
	return out
}

// Render writes r to w in the given format.
func (g *Generator) Render(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("YAML marshaling failed: %w", err)
		}
		return enc.Close()
	case "sarif":
		return writeSARIF(w, r)
	case "markdown", "md":
		out, err := g.templates.RenderTemplate("markdown", r)
		if err != nil {
			return fmt.Errorf("template execution failed: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Generate writes r in every requested format to the output directory and
// returns the written paths keyed by format.
func (g *Generator) Generate(r *Report, opts Options) (map[string]string, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"json"}
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = g.config.OutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	g.log.Info("Generating XSS reports",
		"report_id", r.ID,
		"formats", strings.Join(formats, ","),
		"findings", len(r.Findings))

	outputFiles := make(map[string]string)
	var failed []string
	for _, format := range formats {
		path, err := g.writeReport(r, format, dir)
		if err != nil {
			g.log.Error("Failed to generate report", "format", format, "error", err)
			failed = append(failed, format)
			continue
		}
		outputFiles[format] = path
	}

	g.log.Info("Report generation completed",
		"report_id", r.ID,
		"formats_generated", len(outputFiles))

	if len(failed) > 0 {
		return outputFiles, fmt.Errorf("failed to generate formats: %s", strings.Join(failed, ", "))
	}
	return outputFiles, nil
}

func (g *Generator) writeReport(r *Report, format, dir string) (string, error) {
	var buf bytes.Buffer
	if err := g.Render(&buf, r, format); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("xss_report_%s_%s.%s",
		shortID(r.ID),
		r.GeneratedAt.Format("20060102_150405"),
		extension(format))

	outputPath := filepath.Join(dir, filename)
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return outputPath, nil
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case "markdown", "md":
		return "md"
	case "yml":
		return "yaml"
	default:
		return strings.ToLower(format)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
