package report

import (
	"bytes"
	"errors"
	"strings"
	"text/template"
	"time"

	"github.com/xsslab/xsslab/pkg/models"
)

// ErrTemplateNotFound is returned when rendering an unknown template.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateManager handles report template operations
type TemplateManager struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// NewTemplateManager creates a new template manager
func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{
		templates: make(map[string]*template.Template),
	}

	tm.funcMap = template.FuncMap{
		"lower":        strings.ToLower,
		"upper":        strings.ToUpper,
		"join":         strings.Join,
		"formatTime":   formatTime,
		"severityIcon": severityIcon,
		"truncate":     truncate,
		"code":         inlineCode,
		"isHighRisk":   isHighRisk,
	}

	return tm
}

// LoadTemplate loads a template with custom functions
func (tm *TemplateManager) LoadTemplate(name, content string) error {
	tmpl, err := template.New(name).Funcs(tm.funcMap).Parse(content)
	if err != nil {
		return err
	}

	tm.templates[name] = tmpl
	return nil
}

// RenderTemplate renders a template with data
func (tm *TemplateManager) RenderTemplate(name string, data interface{}) (string, error) {
	tmpl, exists := tm.templates[name]
	if !exists {
		return "", ErrTemplateNotFound
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}

func severityIcon(severity models.Severity) string {
	icons := map[models.Severity]string{
		models.SeverityCritical: "🔴",
		models.SeverityHigh:     "🟠",
		models.SeverityMedium:   "🟡",
		models.SeverityLow:      "🔵",
		models.SeverityInfo:     "⚪",
	}

	if icon, exists := icons[severity]; exists {
		return icon
	}
	return "⚫"
}

func truncate(length int, s string) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length]) + "..."
}

// inlineCode wraps s in backticks, widening the fence when s contains one.
func inlineCode(s string) string {
	fence := "`"
	for strings.Contains(s, fence) {
		fence += "`"
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return fence + s + fence
}

func isHighRisk(severity models.Severity) bool {
	return severity.AtLeast(models.SeverityHigh)
}

// MarkdownTemplate is the built-in markdown report layout.
const MarkdownTemplate = `# DOM XSS Report

**Target:** {{.Target}}
**Generated:** {{formatTime .GeneratedAt}}
**Report ID:** {{.ID}}
**Framework:** {{.Framework}}

## Risk

{{severityIcon .Risk.Level}} **{{upper (print .Risk.Level)}}** ({{.Risk.Score}}/100): {{.Risk.Description}}

| Findings | Sinks | Sources | Data flows | Critical | High | Medium |
|---|---|---|---|---|---|---|
| {{.Summary.TotalFindings}} | {{.Summary.SinkCount}} | {{.Summary.SourceCount}} | {{.Summary.DataFlowCount}} | {{.Summary.CriticalCount}} | {{.Summary.HighCount}} | {{.Summary.MediumCount}} |
{{if .Findings}}
## Findings

| Severity | Type | Name | Line | Snippet |
|---|---|---|---|---|
{{- range .Findings}}
| {{severityIcon .Severity}} {{.Severity}} | {{.Kind}} | {{code .Name}} | {{.Line}}:{{.Column}} | {{code (truncate 80 .Snippet)}} |
{{- end}}
{{end}}
{{- if .DataFlows}}
## Data flows
{{range .DataFlows}}
- {{code .Source}} (line {{.SourceLine}}) to {{code .Sink}} (line {{.SinkLine}}), {{.Confidence}} confidence
{{- end}}
{{end}}
{{- if .Patterns}}
## Known patterns
{{range .Patterns}}
- **{{.Name}}** ({{.Severity}}): {{.Description}}
{{- end}}
{{end}}
{{- if .Remediations}}
## Remediation
{{range .Remediations}}
### {{.Finding}}{{if .CWE}} ({{.CWE}}){{end}}
{{if .SafeAlternative}}
Use {{code .SafeAlternative}} instead.
{{end}}
**{{.Advice.Title}}**
{{range .Advice.Alternatives}}
- {{.}}
{{- end}}
{{if .Reference}}
Reference: {{.Reference}}
{{end}}
{{- end}}
{{- end}}
`
