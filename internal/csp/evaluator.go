package csp

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/xsslab/xsslab/pkg/models"
)

// TestResult is the verdict for one payload against one policy.
type TestResult struct {
	Blocked        bool            `json:"blocked" yaml:"blocked"`
	Reason         string          `json:"reason" yaml:"reason"`
	Severity       models.Severity `json:"severity" yaml:"severity"`
	Directive      string          `json:"directive,omitempty" yaml:"directive,omitempty"`
	Recommendation string          `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
}

type payloadType string

const (
	typeScript payloadType = "script"
	typeStyle  payloadType = "style"
	typeImg    payloadType = "img"
	typeFrame  payloadType = "frame"
	typeObject payloadType = "object"
	typeMedia  payloadType = "media"
	typeBase   payloadType = "base"
	typeForm   payloadType = "form"
)

var classifiers = []struct {
	kind    payloadType
	markers []string
}{
	{typeScript, []string{"<script", "javascript:", "eval(", "onerror=", "onload=", "onclick="}},
	{typeStyle, []string{"<style", "stylesheet", "style="}},
	{typeImg, []string{"<img", "<svg", "<image"}},
	{typeFrame, []string{"<iframe", "<frame"}},
	{typeObject, []string{"<object", "<embed", "<applet"}},
	{typeMedia, []string{"<video", "<audio", "<source", "<track"}},
	{typeBase, []string{"<base"}},
	{typeForm, []string{"<form", "formaction="}},
}

var governing = map[payloadType]string{
	typeScript: "script-src",
	typeStyle:  "style-src",
	typeImg:    "img-src",
	typeFrame:  "frame-src",
	typeObject: "object-src",
	typeMedia:  "media-src",
	typeBase:   "base-uri",
	typeForm:   "form-action",
}

func classify(payload string) payloadType {
	lower := strings.ToLower(payload)
	for _, c := range classifiers {
		for _, m := range c.markers {
			if strings.Contains(lower, m) {
				return c.kind
			}
		}
	}
	return typeScript
}

var (
	nonceAttr = regexp.MustCompile(`(?i)nonce\s*=\s*["']?([^"'\s>]+)`)
	urlAttr   = regexp.MustCompile(`(?i)(?:src|href)\s*=\s*["']?([^"'\s>]+)`)
)

// TestPayload predicts whether policy would stop payload.
func TestPayload(payload string, policy *ParsedCSP) TestResult {
	kind := classify(payload)
	name := governing[kind]

	directive := policy.Get(name)
	if directive == nil {
		directive = policy.Get("default-src")
	}
	if directive == nil {
		return TestResult{
			Blocked:        false,
			Reason:         fmt.Sprintf("No %s or default-src directive applies, so %s content is unrestricted", name, kind),
			Severity:       models.SeverityHigh,
			Recommendation: fmt.Sprintf("Add a %s directive, or a restrictive default-src", name),
		}
	}

	values := directive.Values
	lower := strings.ToLower(payload)

	if hasValue(values, "'none'") {
		return TestResult{
			Blocked:   true,
			Reason:    fmt.Sprintf("%s 'none' blocks all %s content", directive.Name, kind),
			Severity:  models.SeverityLow,
			Directive: directive.Name,
		}
	}

	if kind == typeScript || kind == typeStyle {
		inline := !strings.Contains(lower, "src=") && !strings.Contains(lower, "href=")
		if inline {
			unsafeInline := hasValue(values, "'unsafe-inline'")
			nonceOK := nonceMatches(payload, values)
			hashOK := hasHashSource(values)
			switch {
			case !unsafeInline && !nonceOK && !hashOK:
				return TestResult{
					Blocked:   true,
					Reason:    fmt.Sprintf("Inline %s is blocked: %s has no 'unsafe-inline', matching nonce or hash", kind, directive.Name),
					Severity:  models.SeverityLow,
					Directive: directive.Name,
				}
			case unsafeInline:
				return TestResult{
					Blocked:        false,
					Reason:         fmt.Sprintf("Inline %s runs because %s allows 'unsafe-inline'", kind, directive.Name),
					Severity:       models.SeverityHigh,
					Directive:      directive.Name,
					Recommendation: "Remove 'unsafe-inline' and use nonces or hashes",
				}
			}
		}
	}

	if kind == typeScript && (strings.Contains(payload, "eval(") || strings.Contains(payload, "Function(")) {
		if !hasValue(values, "'unsafe-eval'") {
			return TestResult{
				Blocked:   true,
				Reason:    fmt.Sprintf("Dynamic code evaluation is blocked: %s has no 'unsafe-eval'", directive.Name),
				Severity:  models.SeverityLow,
				Directive: directive.Name,
			}
		}
		return TestResult{
			Blocked:        false,
			Reason:         fmt.Sprintf("eval() is allowed because %s contains 'unsafe-eval'", directive.Name),
			Severity:       models.SeverityHigh,
			Directive:      directive.Name,
			Recommendation: "Remove 'unsafe-eval' and refactor code that builds scripts from strings",
		}
	}

	if m := urlAttr.FindStringSubmatch(payload); m != nil {
		target := m[1]
		if !sourceAllowed(target, values) {
			return TestResult{
				Blocked:   true,
				Reason:    fmt.Sprintf("%s is not in the %s allowlist", target, directive.Name),
				Severity:  models.SeverityLow,
				Directive: directive.Name,
			}
		}
		return TestResult{
			Blocked:        false,
			Reason:         fmt.Sprintf("%s is allowed by %s", target, directive.Name),
			Severity:       models.SeverityMedium,
			Directive:      directive.Name,
			Recommendation: "Make sure every allowed origin is trusted and hosts no user content or JSONP",
		}
	}

	return TestResult{
		Blocked:        false,
		Reason:         fmt.Sprintf("%s does not clearly block this payload", directive.Name),
		Severity:       models.SeverityMedium,
		Directive:      directive.Name,
		Recommendation: "Review the policy; prefer 'none', nonces or hashes over broad allowlists",
	}
}

func nonceMatches(payload string, values []string) bool {
	m := nonceAttr.FindStringSubmatch(payload)
	if m == nil {
		return false
	}
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), "'nonce-") && strings.Contains(v, m[1]) {
			return true
		}
	}
	return false
}

// hasHashSource only checks that some hash source exists; it does not
// compare it with the payload's digest.
func hasHashSource(values []string) bool {
	for _, v := range values {
		lv := strings.ToLower(v)
		if strings.HasPrefix(lv, "'sha256-") || strings.HasPrefix(lv, "'sha384-") || strings.HasPrefix(lv, "'sha512-") {
			return true
		}
	}
	return false
}

var schemeSources = []string{"https:", "http:", "data:", "blob:"}

func sourceAllowed(target string, values []string) bool {
	lt := strings.ToLower(target)
	for _, v := range values {
		lv := strings.ToLower(v)
		switch {
		case lv == "*":
			return true
		case lv == "'self'":
			if isRelative(lt) {
				return true
			}
		case strings.HasPrefix(lv, "'"):
			// other keywords never match a URL
		case contains(schemeSources, lv):
			if strings.HasPrefix(lt, lv) {
				return true
			}
		default:
			if hostMatches(lt, lv) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isRelative(target string) bool {
	if strings.HasPrefix(target, "//") {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == ""
}

func normalizeHost(host string) string {
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return strings.ToLower(host)
}

// hostMatches compares the target URL's host with a host-source value
// such as example.com, https://cdn.example.com/js or *.example.com.
func hostMatches(target, source string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}

	srcScheme := ""
	if i := strings.Index(source, "://"); i >= 0 {
		srcScheme = source[:i]
		source = source[i+3:]
	}
	if i := strings.IndexByte(source, '/'); i >= 0 {
		source = source[:i]
	}
	if i := strings.LastIndexByte(source, ':'); i >= 0 {
		source = source[:i]
	}
	if srcScheme != "" && u.Scheme != "" && u.Scheme != srcScheme {
		return false
	}

	host := normalizeHost(u.Hostname())
	if strings.HasPrefix(source, "*.") {
		suffix := normalizeHost(source[2:])
		return strings.HasSuffix(host, "."+suffix)
	}
	return host == normalizeHost(source)
}
