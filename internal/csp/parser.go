// Package csp parses, evaluates and builds Content-Security-Policy headers.
package csp

import (
	"fmt"
	"strings"
)

const invalidHeader = "Invalid CSP header"

// ParsedDirective is one semicolon-delimited segment of a policy.
type ParsedDirective struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
	Raw    string   `json:"raw" yaml:"raw"`
	Index  int      `json:"index" yaml:"index"`
}

// ParsedCSP is a parsed policy. Errors and Warnings stay nil when empty.
type ParsedCSP struct {
	Directives map[string]*ParsedDirective `json:"directives" yaml:"directives"`
	Order      []string                    `json:"order" yaml:"order"`
	Raw        string                      `json:"raw" yaml:"raw"`
	Errors     []string                    `json:"errors" yaml:"errors"`
	Warnings   []string                    `json:"warnings" yaml:"warnings"`
}

// Has reports whether the policy sets directive name.
func (p *ParsedCSP) Has(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Directives[name]
	return ok
}

// Get returns the directive or nil.
func (p *ParsedCSP) Get(name string) *ParsedDirective {
	if p == nil {
		return nil
	}
	return p.Directives[name]
}

// Valid reports whether parsing produced no errors.
func (p *ParsedCSP) Valid() bool {
	return p != nil && len(p.Errors) == 0
}

// Ordered returns directives in the order they appear in the header.
func (p *ParsedCSP) Ordered() []*ParsedDirective {
	if p == nil {
		return nil
	}
	out := make([]*ParsedDirective, 0, len(p.Order))
	for _, name := range p.Order {
		out = append(out, p.Directives[name])
	}
	return out
}

func hasValue(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// Parse splits header into directives and collects warnings about
// unknown, deprecated and risky configuration.
func Parse(header string) *ParsedCSP {
	if strings.TrimSpace(header) == "" {
		return &ParsedCSP{
			Directives: map[string]*ParsedDirective{},
			Raw:        "",
			Errors:     []string{invalidHeader},
		}
	}

	p := &ParsedCSP{
		Directives: map[string]*ParsedDirective{},
		Raw:        header,
	}

	for i, segment := range strings.Split(header, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		fields := strings.Fields(segment)
		name := strings.ToLower(fields[0])

		if _, dup := p.Directives[name]; dup {
			p.Warnings = append(p.Warnings, fmt.Sprintf("Duplicate directive %s: browsers use the first occurrence, this parser keeps the last", name))
		} else {
			p.Order = append(p.Order, name)
		}
		p.Directives[name] = &ParsedDirective{
			Name:   name,
			Values: append([]string{}, fields[1:]...),
			Raw:    segment,
			Index:  i,
		}

		def, known := Lookup(name)
		if !known {
			p.Warnings = append(p.Warnings, fmt.Sprintf("Unknown directive: %s", name))
			continue
		}
		if def.Deprecated {
			p.Warnings = append(p.Warnings, fmt.Sprintf("Deprecated directive: %s. %s", name, def.Recommendation))
		}
		if def.Category == CategoryFetch {
			p.Warnings = append(p.Warnings, riskyValues(name, fields[1:])...)
		}
	}

	p.Warnings = append(p.Warnings, globalChecks(p)...)
	return p
}

func riskyValues(name string, values []string) []string {
	var warnings []string
	for _, v := range values {
		switch strings.ToLower(v) {
		case "'unsafe-inline'":
			if name == "script-src" || name == "style-src" {
				warnings = append(warnings, fmt.Sprintf("%s contains 'unsafe-inline', which allows inline code and defeats most XSS protection", name))
			}
		case "'unsafe-eval'":
			if name == "script-src" {
				warnings = append(warnings, fmt.Sprintf("%s contains 'unsafe-eval', which allows eval() and new Function()", name))
			}
		case "*":
			warnings = append(warnings, fmt.Sprintf("%s uses the wildcard *, allowing any origin", name))
		case "http:":
			warnings = append(warnings, fmt.Sprintf("%s allows http:, loading resources over insecure connections from any host", name))
		}
	}
	return warnings
}

func globalChecks(p *ParsedCSP) []string {
	var warnings []string

	if !p.Has("base-uri") {
		warnings = append(warnings, "Missing base-uri: an injected <base> tag can redirect relative script URLs")
	}
	if !p.Has("object-src") {
		warnings = append(warnings, "Missing object-src: plugins fall back to default-src; set object-src 'none'")
	}
	if sb := p.Get("sandbox"); sb != nil && hasValue(sb.Values, "allow-scripts") && hasValue(sb.Values, "allow-same-origin") {
		warnings = append(warnings, "sandbox combines allow-scripts and allow-same-origin, letting framed content remove its own sandbox")
	}
	if ds := p.Get("default-src"); ds != nil {
		for _, v := range []string{"*", "https:", "http:"} {
			if hasValue(ds.Values, v) {
				warnings = append(warnings, fmt.Sprintf("default-src %s is too permissive", v))
				break
			}
		}
	} else {
		warnings = append(warnings, "No default-src: resource types without their own directive are unrestricted")
	}
	return warnings
}
