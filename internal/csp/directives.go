package csp

import "strings"

// Category groups directives the way browsers apply them.
type Category string

const (
	CategoryFetch      Category = "fetch"
	CategoryDocument   Category = "document"
	CategoryNavigation Category = "navigation"
	CategoryReporting  Category = "reporting"
	CategoryOther      Category = "other"
)

// Directive is a catalog entry describing one CSP directive.
type Directive struct {
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description" yaml:"description"`
	Category       Category `json:"category" yaml:"category"`
	Examples       []string `json:"examples" yaml:"examples"`
	CommonMistakes []string `json:"commonMistakes" yaml:"common_mistakes"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
	BrowserSupport string   `json:"browserSupport" yaml:"browser_support"`
	XSSImpact      string   `json:"xssImpact,omitempty" yaml:"xss_impact,omitempty"`
	Deprecated     bool     `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

var directives = []Directive{
	{
		Name:           "default-src",
		Description:    "Fallback for every fetch directive that is not set explicitly",
		Category:       CategoryFetch,
		Examples:       []string{"default-src 'self'", "default-src 'none'"},
		CommonMistakes: []string{"Using * or https: which allows any host", "Assuming it covers base-uri and form-action"},
		Recommendation: "Start from default-src 'none' or 'self' and open up per resource type",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Governs scripts whenever script-src is absent",
	},
	{
		Name:           "script-src",
		Description:    "Valid sources for JavaScript, including inline scripts and event handlers",
		Category:       CategoryFetch,
		Examples:       []string{"script-src 'self'", "script-src 'nonce-r4nd0m' 'strict-dynamic'"},
		CommonMistakes: []string{"Adding 'unsafe-inline'", "Adding 'unsafe-eval'", "Allowlisting CDNs that host JSONP endpoints"},
		Recommendation: "Use nonces or hashes with 'strict-dynamic' instead of host allowlists",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Primary defence against script injection",
	},
	{
		Name:           "script-src-elem",
		Description:    "Valid sources for <script> elements",
		Category:       CategoryFetch,
		Examples:       []string{"script-src-elem 'self'"},
		CommonMistakes: []string{"Forgetting that script-src-attr still governs event handlers"},
		Recommendation: "Only set when script elements need a different policy than script-src",
		BrowserSupport: "Chromium, Firefox 108+, Safari 15.4+",
		XSSImpact:      "Controls injected <script> tags",
	},
	{
		Name:           "script-src-attr",
		Description:    "Valid sources for inline event handler attributes",
		Category:       CategoryFetch,
		Examples:       []string{"script-src-attr 'none'"},
		CommonMistakes: []string{"Setting 'unsafe-inline' to keep legacy onclick handlers working"},
		Recommendation: "Set to 'none' and move handlers to addEventListener",
		BrowserSupport: "Chromium, Firefox 108+, Safari 15.4+",
		XSSImpact:      "Controls onerror/onload style payloads",
	},
	{
		Name:           "style-src",
		Description:    "Valid sources for stylesheets and inline styles",
		Category:       CategoryFetch,
		Examples:       []string{"style-src 'self'"},
		CommonMistakes: []string{"Adding 'unsafe-inline' for convenience"},
		Recommendation: "Use nonces or hashes for inline styles",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Blocks CSS injection and data exfiltration through selectors",
	},
	{
		Name:           "style-src-elem",
		Description:    "Valid sources for <style> and <link rel=stylesheet> elements",
		Category:       CategoryFetch,
		Examples:       []string{"style-src-elem 'self'"},
		Recommendation: "Only needed for split style policies",
		BrowserSupport: "Chromium, Firefox 108+, Safari 15.4+",
	},
	{
		Name:           "style-src-attr",
		Description:    "Valid sources for inline style attributes",
		Category:       CategoryFetch,
		Examples:       []string{"style-src-attr 'none'"},
		Recommendation: "Set to 'none' where possible",
		BrowserSupport: "Chromium, Firefox 108+, Safari 15.4+",
	},
	{
		Name:           "img-src",
		Description:    "Valid sources for images and favicons",
		Category:       CategoryFetch,
		Examples:       []string{"img-src 'self' data:"},
		CommonMistakes: []string{"Using * which enables image-based exfiltration"},
		Recommendation: "List the image hosts you actually use",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "font-src",
		Description:    "Valid sources for fonts loaded with @font-face",
		Category:       CategoryFetch,
		Examples:       []string{"font-src 'self' https://fonts.gstatic.com"},
		Recommendation: "List font CDNs explicitly",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "connect-src",
		Description:    "Valid targets for fetch, XHR, WebSocket and EventSource",
		Category:       CategoryFetch,
		Examples:       []string{"connect-src 'self' https://api.example.com"},
		CommonMistakes: []string{"Using * which lets injected code exfiltrate data anywhere"},
		Recommendation: "Restrict to your own APIs",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Limits where stolen data can be sent",
	},
	{
		Name:           "media-src",
		Description:    "Valid sources for <audio>, <video> and <track>",
		Category:       CategoryFetch,
		Examples:       []string{"media-src 'self'"},
		Recommendation: "List media hosts explicitly",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "object-src",
		Description:    "Valid sources for <object>, <embed> and <applet>",
		Category:       CategoryFetch,
		Examples:       []string{"object-src 'none'"},
		CommonMistakes: []string{"Leaving it unset so plugins inherit a permissive default-src"},
		Recommendation: "Always set object-src 'none'",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Plugin content can execute script outside script-src",
	},
	{
		Name:           "frame-src",
		Description:    "Valid sources for nested browsing contexts such as <iframe>",
		Category:       CategoryFetch,
		Examples:       []string{"frame-src https://www.youtube.com"},
		Recommendation: "List embedded origins explicitly",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "child-src",
		Description:    "Valid sources for frames and workers when frame-src or worker-src are absent",
		Category:       CategoryFetch,
		Examples:       []string{"child-src 'self'"},
		Recommendation: "Prefer frame-src and worker-src",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "worker-src",
		Description:    "Valid sources for Worker, SharedWorker and ServiceWorker scripts",
		Category:       CategoryFetch,
		Examples:       []string{"worker-src 'self'"},
		Recommendation: "Restrict to 'self'",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "A malicious service worker persists across page loads",
	},
	{
		Name:           "manifest-src",
		Description:    "Valid sources for web app manifests",
		Category:       CategoryFetch,
		Examples:       []string{"manifest-src 'self'"},
		Recommendation: "Restrict to 'self'",
		BrowserSupport: "Chromium, Firefox",
	},
	{
		Name:           "prefetch-src",
		Description:    "Valid sources for prefetched or prerendered resources",
		Category:       CategoryFetch,
		Examples:       []string{"prefetch-src 'self'"},
		Recommendation: "Remove; browsers no longer support it",
		BrowserSupport: "Removed from browsers",
		Deprecated:     true,
	},
	{
		Name:           "base-uri",
		Description:    "Restricts URLs usable in the document's <base> element",
		Category:       CategoryDocument,
		Examples:       []string{"base-uri 'none'", "base-uri 'self'"},
		CommonMistakes: []string{"Omitting it, which allows <base> injection to redirect relative script URLs"},
		Recommendation: "Set base-uri 'none' or 'self'",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Injected <base> tags hijack relative script loads",
	},
	{
		Name:           "sandbox",
		Description:    "Applies iframe-style sandbox restrictions to the page",
		Category:       CategoryDocument,
		Examples:       []string{"sandbox allow-forms allow-scripts"},
		CommonMistakes: []string{"Combining allow-scripts with allow-same-origin, which lets content remove the sandbox"},
		Recommendation: "Grant the fewest allow-* tokens possible",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "plugin-types",
		Description:    "Restricted plugin MIME types",
		Category:       CategoryDocument,
		Examples:       []string{"plugin-types application/pdf"},
		Recommendation: "Remove; use object-src 'none'",
		BrowserSupport: "Removed from browsers",
		Deprecated:     true,
	},
	{
		Name:           "form-action",
		Description:    "Restricts URLs that forms may submit to",
		Category:       CategoryNavigation,
		Examples:       []string{"form-action 'self'"},
		CommonMistakes: []string{"Assuming default-src covers it"},
		Recommendation: "Set form-action 'self'",
		BrowserSupport: "All modern browsers",
		XSSImpact:      "Stops injected forms from posting credentials elsewhere",
	},
	{
		Name:           "frame-ancestors",
		Description:    "Restricts which origins may embed this page",
		Category:       CategoryNavigation,
		Examples:       []string{"frame-ancestors 'none'"},
		CommonMistakes: []string{"Setting it in a <meta> tag, where it is ignored"},
		Recommendation: "Set frame-ancestors 'none' or 'self' to prevent clickjacking",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "navigate-to",
		Description:    "Restricts navigation targets",
		Category:       CategoryNavigation,
		Examples:       []string{"navigate-to 'self'"},
		Recommendation: "Remove; never shipped in browsers",
		BrowserSupport: "Not supported",
		Deprecated:     true,
	},
	{
		Name:           "report-uri",
		Description:    "URL that receives violation reports",
		Category:       CategoryReporting,
		Examples:       []string{"report-uri /csp-report"},
		Recommendation: "Keep alongside report-to for older browsers",
		BrowserSupport: "All modern browsers",
		Deprecated:     true,
	},
	{
		Name:           "report-to",
		Description:    "Reporting API group that receives violation reports",
		Category:       CategoryReporting,
		Examples:       []string{"report-to csp-endpoint"},
		Recommendation: "Define the group in a Reporting-Endpoints header",
		BrowserSupport: "Chromium",
	},
	{
		Name:           "upgrade-insecure-requests",
		Description:    "Rewrites http: subresource URLs to https:",
		Category:       CategoryOther,
		Examples:       []string{"upgrade-insecure-requests"},
		Recommendation: "Enable on HTTPS sites with legacy content",
		BrowserSupport: "All modern browsers",
	},
	{
		Name:           "block-all-mixed-content",
		Description:    "Blocks http: subresources on https: pages",
		Category:       CategoryOther,
		Examples:       []string{"block-all-mixed-content"},
		Recommendation: "Remove; use upgrade-insecure-requests",
		BrowserSupport: "Obsolete",
		Deprecated:     true,
	},
	{
		Name:           "require-trusted-types-for",
		Description:    "Requires Trusted Types for DOM XSS sinks",
		Category:       CategoryOther,
		Examples:       []string{"require-trusted-types-for 'script'"},
		Recommendation: "Enable to lock down innerHTML and friends",
		BrowserSupport: "Chromium",
		XSSImpact:      "Forces sink assignments through reviewed policies",
	},
	{
		Name:           "trusted-types",
		Description:    "Allowlist of Trusted Types policy names",
		Category:       CategoryOther,
		Examples:       []string{"trusted-types default dompurify"},
		Recommendation: "Keep the list short",
		BrowserSupport: "Chromium",
	},
	{
		Name:           "require-sri-for",
		Description:    "Required Subresource Integrity for scripts or styles",
		Category:       CategoryOther,
		Examples:       []string{"require-sri-for script"},
		Recommendation: "Remove; add integrity attributes instead",
		BrowserSupport: "Not supported",
		Deprecated:     true,
	},
}

var directiveIndex = func() map[string]int {
	m := make(map[string]int, len(directives))
	for i, d := range directives {
		m[d.Name] = i
	}
	return m
}()

// Lookup returns the catalog entry for name.
func Lookup(name string) (Directive, bool) {
	i, ok := directiveIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Directive{}, false
	}
	return directives[i], true
}

// Catalog returns a copy of every known directive.
func Catalog() []Directive {
	out := make([]Directive, len(directives))
	copy(out, directives)
	return out
}
