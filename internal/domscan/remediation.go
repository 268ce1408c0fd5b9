package domscan

import (
	"fmt"
	"strings"
	"unicode"
)

// Alternatives lists safer replacements for a sink.
type Alternatives struct {
	Title        string   `json:"title" yaml:"title"`
	Alternatives []string `json:"alternatives" yaml:"alternatives"`
	Example      string   `json:"example,omitempty" yaml:"example,omitempty"`
}

// Remediation is the advice attached to one finding.
type Remediation struct {
	Finding         string       `json:"finding" yaml:"finding"`
	Severity        string       `json:"severity" yaml:"severity"`
	SafeAlternative string       `json:"safeAlternative,omitempty" yaml:"safe_alternative,omitempty"`
	CWE             string       `json:"cwe,omitempty" yaml:"cwe,omitempty"`
	Reference       string       `json:"reference,omitempty" yaml:"reference,omitempty"`
	Advice          Alternatives `json:"advice" yaml:"advice"`
}

var generalAlternatives = Alternatives{
	Title: "General Recommendations",
	Alternatives: []string{
		"Treat all user-controlled data as untrusted and validate it against an allowlist",
		"Prefer APIs that handle data as text, such as textContent and setAttribute",
		"Sanitize unavoidable HTML with a vetted library such as DOMPurify",
	},
}

// keyed by normalizeSink
var safeAlternatives = map[string]Alternatives{
	"innerhtml": {
		Title:        "Safe alternatives to innerHTML",
		Alternatives: []string{"Use textContent for plain text", "Build nodes with createElement", "Sanitize with DOMPurify.sanitize() when HTML is required"},
		Example:      "el.textContent = userInput;",
	},
	"outerhtml": {
		Title:        "Safe alternatives to outerHTML",
		Alternatives: []string{"Use replaceWith() with nodes built from createElement", "Set textContent on a new element"},
		Example:      "el.replaceWith(Object.assign(document.createElement('span'), {textContent: input}));",
	},
	"documentwrite": {
		Title:        "Safe alternatives to document.write",
		Alternatives: []string{"Append nodes with appendChild", "Set textContent on an existing element"},
		Example:      "document.body.appendChild(document.createTextNode(input));",
	},
	"documentwriteln": {
		Title:        "Safe alternatives to document.writeln",
		Alternatives: []string{"Append nodes with appendChild", "Set textContent on an existing element"},
	},
	"insertadjacenthtml": {
		Title:        "Safe alternatives to insertAdjacentHTML",
		Alternatives: []string{"Use insertAdjacentText", "Use insertAdjacentElement with a built node"},
		Example:      "el.insertAdjacentText('beforeend', input);",
	},
	"eval": {
		Title:        "Safe alternatives to eval",
		Alternatives: []string{"Use JSON.parse for data", "Dispatch through a map of allowed functions", "Remove dynamic code entirely"},
		Example:      "const data = JSON.parse(input);",
	},
	"settimeout": {
		Title:        "Safe use of setTimeout",
		Alternatives: []string{"Pass a function, never a string"},
		Example:      "setTimeout(() => update(), 100);",
	},
	"setinterval": {
		Title:        "Safe use of setInterval",
		Alternatives: []string{"Pass a function, never a string"},
		Example:      "setInterval(() => poll(), 1000);",
	},
	"function": {
		Title:        "Safe alternatives to new Function",
		Alternatives: []string{"Define functions statically", "Pass data as arguments instead of generating code"},
	},
	"location": {
		Title:        "Safe navigation",
		Alternatives: []string{"Validate the target with new URL() and check protocol and host", "Navigate only to relative paths from an allowlist"},
		Example:      "const u = new URL(next, location.origin); if (u.origin === location.origin) location.assign(u);",
	},
	"href": {
		Title:        "Safe link targets",
		Alternatives: []string{"Allow only http: and https: schemes", "Encode values with encodeURIComponent when building URLs"},
	},
	"dangerouslysetinnerhtml": {
		Title:        "Safe alternatives to dangerouslySetInnerHTML",
		Alternatives: []string{"Render text as JSX children", "Sanitize with DOMPurify before passing __html"},
		Example:      "<div>{comment}</div>",
	},
	"vhtml": {
		Title:        "Safe alternatives to v-html",
		Alternatives: []string{"Use {{ }} interpolation", "Use v-text", "Sanitize before binding when HTML is required"},
		Example:      `<div v-text="comment"></div>`,
	},
	"bypasssecuritytrusthtml": {
		Title:        "Avoid bypassing Angular sanitization",
		Alternatives: []string{"Let DomSanitizer sanitize the value", "Trust only compile-time constant HTML"},
	},
	"html": {
		Title:        "Safe alternatives to jQuery .html()",
		Alternatives: []string{"Use .text()", "Build elements with $('<tag>').text(value)"},
		Example:      "$('#out').text(userInput);",
	},
	"append": {
		Title:        "Safe use of jQuery .append()",
		Alternatives: []string{"Append elements, not strings", "Set content with .text()"},
		Example:      "$('#list').append($('<li>').text(name));",
	},
}

func normalizeSink(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GetSafeAlternatives looks up replacement advice for a sink name,
// falling back to general recommendations.
func GetSafeAlternatives(sinkName string) Alternatives {
	key := normalizeSink(sinkName)
	if alt, ok := safeAlternatives[key]; ok {
		return alt
	}
	return generalAlternatives
}

// GetRemediationAdvice combines catalog advice with the finding's own data.
func GetRemediationAdvice(f Finding) Remediation {
	r := Remediation{
		Finding:         f.Name,
		Severity:        string(f.Severity),
		SafeAlternative: f.SafeAlternative,
		CWE:             f.CWE,
		Advice:          GetSafeAlternatives(f.Name),
	}
	if id := strings.TrimPrefix(f.CWE, "CWE-"); id != f.CWE && id != "" {
		r.Reference = fmt.Sprintf("https://cwe.mitre.org/data/definitions/%s.html", id)
	}
	return r
}
