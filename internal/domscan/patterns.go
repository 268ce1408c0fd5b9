package domscan

import (
	"regexp"

	"github.com/xsslab/xsslab/pkg/models"
)

// KnownPattern is a named source/sink combination seen in real DOM XSS bugs.
// It matches when the code contains both literal substrings anywhere.
type KnownPattern struct {
	Name        string          `json:"name" yaml:"name"`
	Source      string          `json:"source" yaml:"source"`
	Sink        string          `json:"sink" yaml:"sink"`
	Severity    models.Severity `json:"severity" yaml:"severity"`
	Description string          `json:"description" yaml:"description"`
}

var knownPatterns = []KnownPattern{
	{"URL Fragment XSS", "location.hash", "innerHTML", models.SeverityCritical,
		"The URL fragment is written into the page as HTML"},
	{"Query String XSS", "location.search", "innerHTML", models.SeverityCritical,
		"Query parameters are written into the page as HTML"},
	{"Referrer Injection", "document.referrer", "document.write", models.SeverityHigh,
		"The referring URL is written into the document"},
	{"Hash Eval", "location.hash", "eval(", models.SeverityCritical,
		"The URL fragment is evaluated as script"},
	{"Window Name XSS", "window.name", "innerHTML", models.SeverityHigh,
		"window.name, settable by any opener, is rendered as HTML"},
	{"Open Redirect", "location.search", "location.href", models.SeverityMedium,
		"A query parameter decides where the page navigates"},
	{"Stored DOM XSS", "localStorage.getItem", "innerHTML", models.SeverityHigh,
		"A stored value is rendered as HTML"},
	{"jQuery Selector XSS", "location.hash", "$(", models.SeverityHigh,
		"The fragment reaches the jQuery selector, which parses HTML"},
	{"postMessage XSS", "event.data", "innerHTML", models.SeverityCritical,
		"Cross-window messages are rendered as HTML"},
	{"Cookie Injection", "document.cookie", "document.write", models.SeverityMedium,
		"Cookie values are written into the document"},
}

// KnownPatterns returns a copy of the known pattern list.
func KnownPatterns() []KnownPattern {
	out := make([]KnownPattern, len(knownPatterns))
	copy(out, knownPatterns)
	return out
}

type frameworkIndicator struct {
	framework string
	patterns  []*regexp.Regexp
}

// checked in order; the first framework with any hit wins
var frameworkIndicators = []frameworkIndicator{
	{FrameworkReact, []*regexp.Regexp{
		regexp.MustCompile(`import\s+React\b`),
		regexp.MustCompile(`from\s+['"]react(?:-dom)?['"]`),
		regexp.MustCompile(`React\.createElement`),
		regexp.MustCompile(`dangerouslySetInnerHTML`),
		regexp.MustCompile(`\buse(?:State|Effect)\s*\(`),
	}},
	{FrameworkVue, []*regexp.Regexp{
		regexp.MustCompile(`new\s+Vue\s*\(`),
		regexp.MustCompile(`from\s+['"]vue['"]`),
		regexp.MustCompile(`\bv-(?:html|bind|if|for|model|text)\b`),
		regexp.MustCompile(`\bcreateApp\s*\(`),
	}},
	{FrameworkAngular, []*regexp.Regexp{
		regexp.MustCompile(`@angular/`),
		regexp.MustCompile(`@Component\s*\(`),
		regexp.MustCompile(`\[innerHTML\]`),
		regexp.MustCompile(`\bng-(?:app|bind-html|model|controller)\b`),
		regexp.MustCompile(`\bDomSanitizer\b`),
	}},
	{FrameworkJQuery, []*regexp.Regexp{
		regexp.MustCompile(`\bjQuery\s*\(`),
		regexp.MustCompile(`\$\(\s*['"\w]`),
		regexp.MustCompile(`\$\.(?:ajax|get|post|globalEval|parseHTML)\b`),
	}},
}

// DetectFramework guesses which framework code was written for.
func DetectFramework(code string) string {
	for _, fi := range frameworkIndicators {
		for _, re := range fi.patterns {
			if re.MatchString(code) {
				return fi.framework
			}
		}
	}
	return FrameworkVanilla
}
