// Package domscan finds dangerous DOM sinks and untrusted sources in
// JavaScript and template code with line-oriented regular expressions.
// It is a teaching aid, not a parser: data flows are guessed from line
// proximity and shared identifiers.
package domscan

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xsslab/xsslab/pkg/models"
)

const maxFlowDistance = 5

// Finding is one regex hit for a sink or source.
type Finding struct {
	Kind            string          `json:"type" yaml:"type"`
	Name            string          `json:"name" yaml:"name"`
	EntryType       EntryType       `json:"entryType" yaml:"entry_type"`
	Severity        models.Severity `json:"severity" yaml:"severity"`
	Line            int             `json:"line" yaml:"line"`
	Column          int             `json:"column" yaml:"column"`
	Snippet         string          `json:"snippet" yaml:"snippet"`
	Description     string          `json:"description" yaml:"description"`
	SafeAlternative string          `json:"safeAlternative" yaml:"safe_alternative"`
	Framework       string          `json:"framework" yaml:"framework"`
	CWE             string          `json:"cwe,omitempty" yaml:"cwe,omitempty"`
}

const (
	KindSink   = "sink"
	KindSource = "source"
)

// DataFlow is a guessed source to sink connection.
type DataFlow struct {
	Source      string          `json:"source" yaml:"source"`
	Sink        string          `json:"sink" yaml:"sink"`
	SourceLine  int             `json:"sourceLine" yaml:"source_line"`
	SinkLine    int             `json:"sinkLine" yaml:"sink_line"`
	Distance    int             `json:"distance" yaml:"distance"`
	Confidence  string          `json:"confidence" yaml:"confidence"`
	Description string          `json:"description" yaml:"description"`
	Severity    models.Severity `json:"severity" yaml:"severity"`
}

// Summary aggregates counts over a scan.
type Summary struct {
	TotalFindings int `json:"totalFindings" yaml:"total_findings"`
	CriticalCount int `json:"criticalCount" yaml:"critical_count"`
	HighCount     int `json:"highCount" yaml:"high_count"`
	MediumCount   int `json:"mediumCount" yaml:"medium_count"`
	SinkCount     int `json:"sinkCount" yaml:"sink_count"`
	SourceCount   int `json:"sourceCount" yaml:"source_count"`
	DataFlowCount int `json:"dataFlowCount" yaml:"data_flow_count"`
}

// ScanResult is the output of Scan.
type ScanResult struct {
	Framework       string         `json:"framework" yaml:"framework"`
	Findings        []Finding      `json:"findings" yaml:"findings"`
	DetectedSinks   []Finding      `json:"detectedSinks" yaml:"detected_sinks"`
	DetectedSources []Finding      `json:"detectedSources" yaml:"detected_sources"`
	DataFlows       []DataFlow     `json:"dataFlows" yaml:"data_flows"`
	KnownPatterns   []KnownPattern `json:"knownPatterns" yaml:"known_patterns"`
	Summary         Summary        `json:"summary" yaml:"summary"`
}

type sinkMatcher struct {
	def SinkDefinition
	re  *regexp.Regexp
}

type sourceMatcher struct {
	def SourceDefinition
	re  *regexp.Regexp
}

var (
	sinkMatchers   = compileSinks(sinks)
	sourceMatchers = compileSources(sources)
)

func sinkPattern(def SinkDefinition) string {
	name := regexp.QuoteMeta(def.Name)
	switch def.Type {
	case TypeProperty:
		// assignment, not comparison
		return `\.` + name + `\s*=(?:[^=]|$)`
	case TypeMethod:
		return name + `\s*\(`
	case TypeFunction:
		return `\b` + name + `\s*\(`
	case TypeConstructor:
		return `new\s+` + name + `\s*\(`
	case TypeProp, TypeDirective, TypeBinding:
		return name + `\s*=`
	default:
		return name
	}
}

func compileSinks(defs []SinkDefinition) []sinkMatcher {
	out := make([]sinkMatcher, 0, len(defs))
	for _, def := range defs {
		out = append(out, sinkMatcher{def: def, re: regexp.MustCompile(sinkPattern(def))})
	}
	return out
}

func sourcePattern(def SourceDefinition) string {
	switch def.Type {
	case TypeEvent:
		return `\b(?:e|event)\.data\b`
	case TypeAPI:
		return `\b` + regexp.QuoteMeta(def.Name)
	default:
		return `\b` + regexp.QuoteMeta(def.Name) + `\b`
	}
}

func compileSources(defs []SourceDefinition) []sourceMatcher {
	out := make([]sourceMatcher, 0, len(defs))
	for _, def := range defs {
		out = append(out, sourceMatcher{def: def, re: regexp.MustCompile(sourcePattern(def))})
	}
	return out
}

func splitLines(code string) []string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func column(line string, byteOffset int) int {
	return utf8.RuneCountInString(line[:byteOffset]) + 1
}

// Scan matches the sink catalog for framework (plus vanilla sinks) and
// the source catalog against code, then derives data flows and known patterns.
func Scan(code, framework string) *ScanResult {
	framework = strings.ToLower(strings.TrimSpace(framework))
	if framework == "" {
		framework = FrameworkVanilla
	}

	result := &ScanResult{
		Framework:       framework,
		Findings:        []Finding{},
		DetectedSinks:   []Finding{},
		DetectedSources: []Finding{},
		DataFlows:       []DataFlow{},
		KnownPatterns:   []KnownPattern{},
	}

	lines := splitLines(code)

	for _, m := range sinkMatchers {
		if m.def.Framework != FrameworkVanilla && m.def.Framework != framework {
			continue
		}
		for i, line := range lines {
			for _, loc := range m.re.FindAllStringIndex(line, -1) {
				result.DetectedSinks = append(result.DetectedSinks, Finding{
					Kind:            KindSink,
					Name:            m.def.Name,
					EntryType:       m.def.Type,
					Severity:        m.def.Severity,
					Line:            i + 1,
					Column:          column(line, loc[0]),
					Snippet:         strings.TrimSpace(line),
					Description:     m.def.Description,
					SafeAlternative: m.def.SafeAlternative,
					Framework:       m.def.Framework,
					CWE:             m.def.CWE,
				})
			}
		}
	}

	for _, m := range sourceMatchers {
		for i, line := range lines {
			for _, loc := range m.re.FindAllStringIndex(line, -1) {
				result.DetectedSources = append(result.DetectedSources, Finding{
					Kind:            KindSource,
					Name:            m.def.Name,
					EntryType:       m.def.Type,
					Severity:        m.def.Severity,
					Line:            i + 1,
					Column:          column(line, loc[0]),
					Snippet:         strings.TrimSpace(line),
					Description:     m.def.Description,
					SafeAlternative: m.def.SafeAlternative,
					Framework:       m.def.Framework,
					CWE:             m.def.CWE,
				})
			}
		}
	}

	result.Findings = append(result.Findings, result.DetectedSinks...)
	result.Findings = append(result.Findings, result.DetectedSources...)
	result.DataFlows = inferFlows(result.DetectedSources, result.DetectedSinks, lines)

	for _, kp := range knownPatterns {
		if strings.Contains(code, kp.Source) && strings.Contains(code, kp.Sink) {
			result.KnownPatterns = append(result.KnownPatterns, kp)
		}
	}

	result.Summary = summarize(result)
	return result
}

var identifier = regexp.MustCompile(`[a-zA-Z_$][a-zA-Z0-9_$]*`)

var keywords = map[string]struct{}{
	"const": {}, "let": {}, "var": {}, "function": {}, "if": {}, "else": {},
	"for": {}, "while": {}, "return": {}, "new": {}, "this": {}, "true": {},
	"false": {}, "null": {}, "undefined": {},
}

func identifiers(line string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range identifier.FindAllString(line, -1) {
		if _, kw := keywords[w]; kw {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func sharesIdentifier(a, b string) bool {
	ids := identifiers(a)
	for w := range identifiers(b) {
		if _, ok := ids[w]; ok {
			return true
		}
	}
	return false
}

func inferFlows(srcs, snks []Finding, lines []string) []DataFlow {
	flows := []DataFlow{}
	for _, src := range srcs {
		for _, snk := range snks {
			distance := src.Line - snk.Line
			if distance < 0 {
				distance = -distance
			}
			if distance > maxFlowDistance {
				continue
			}
			if distance != 0 && !sharesIdentifier(lines[src.Line-1], lines[snk.Line-1]) {
				continue
			}

			confidence := "low"
			switch {
			case distance == 0:
				confidence = "high"
			case distance <= 2:
				confidence = "medium"
			}

			flows = append(flows, DataFlow{
				Source:      src.Name,
				Sink:        snk.Name,
				SourceLine:  src.Line,
				SinkLine:    snk.Line,
				Distance:    distance,
				Confidence:  confidence,
				Description: fmt.Sprintf("Data from %s (line %d) may reach %s (line %d)", src.Name, src.Line, snk.Name, snk.Line),
				Severity:    models.SeverityCritical,
			})
		}
	}
	return flows
}

func summarize(r *ScanResult) Summary {
	s := Summary{
		TotalFindings: len(r.Findings),
		SinkCount:     len(r.DetectedSinks),
		SourceCount:   len(r.DetectedSources),
		DataFlowCount: len(r.DataFlows),
	}
	for _, f := range r.Findings {
		switch f.Severity {
		case models.SeverityCritical:
			s.CriticalCount++
		case models.SeverityHigh:
			s.HighCount++
		case models.SeverityMedium:
			s.MediumCount++
		}
	}
	return s
}
