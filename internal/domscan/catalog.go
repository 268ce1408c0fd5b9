package domscan

import "github.com/xsslab/xsslab/pkg/models"

// EntryType tells the scanner how to build a detection pattern for a catalog entry.
type EntryType string

const (
	TypeProperty    EntryType = "property"
	TypeMethod      EntryType = "method"
	TypeFunction    EntryType = "function"
	TypeConstructor EntryType = "constructor"
	TypeProp        EntryType = "prop"
	TypeDirective   EntryType = "directive"
	TypeBinding     EntryType = "binding"
	TypeAPI         EntryType = "api"
	TypeEvent       EntryType = "event"
)

const (
	FrameworkVanilla = "vanilla"
	FrameworkReact   = "react"
	FrameworkVue     = "vue"
	FrameworkAngular = "angular"
	FrameworkJQuery  = "jquery"
)

// SinkDefinition describes an API that renders or executes its input.
type SinkDefinition struct {
	Name            string          `json:"name" yaml:"name"`
	Type            EntryType       `json:"type" yaml:"type"`
	Severity        models.Severity `json:"severity" yaml:"severity"`
	Description     string          `json:"description" yaml:"description"`
	Example         string          `json:"example" yaml:"example"`
	SafeAlternative string          `json:"safeAlternative" yaml:"safe_alternative"`
	Framework       string          `json:"framework" yaml:"framework"`
	CWE             string          `json:"cwe,omitempty" yaml:"cwe,omitempty"`
}

// SourceDefinition describes an origin of attacker-controllable data.
type SourceDefinition struct {
	Name            string          `json:"name" yaml:"name"`
	Type            EntryType       `json:"type" yaml:"type"`
	Severity        models.Severity `json:"severity" yaml:"severity"`
	Description     string          `json:"description" yaml:"description"`
	Example         string          `json:"example" yaml:"example"`
	SafeAlternative string          `json:"safeAlternative" yaml:"safe_alternative"`
	Framework       string          `json:"framework" yaml:"framework"`
	CWE             string          `json:"cwe,omitempty" yaml:"cwe,omitempty"`
}

var sinks = []SinkDefinition{
	// vanilla DOM
	{
		Name:            "innerHTML",
		Type:            TypeProperty,
		Severity:        models.SeverityCritical,
		Description:     "Parses the assigned string as HTML, so injected markup and event handlers run",
		Example:         "el.innerHTML = userInput;",
		SafeAlternative: "el.textContent = userInput;",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "outerHTML",
		Type:            TypeProperty,
		Severity:        models.SeverityCritical,
		Description:     "Replaces the element with parsed HTML from the assigned string",
		Example:         "el.outerHTML = userInput;",
		SafeAlternative: "Build nodes with document.createElement and set textContent",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "document.write",
		Type:            TypeMethod,
		Severity:        models.SeverityCritical,
		Description:     "Writes raw HTML into the document stream",
		Example:         "document.write(location.hash);",
		SafeAlternative: "Append DOM nodes created with createElement and textContent",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "document.writeln",
		Type:            TypeMethod,
		Severity:        models.SeverityCritical,
		Description:     "Writes raw HTML plus a newline into the document stream",
		Example:         "document.writeln(data);",
		SafeAlternative: "Append DOM nodes created with createElement and textContent",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "insertAdjacentHTML",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Parses a string as HTML and inserts it relative to the element",
		Example:         "el.insertAdjacentHTML('beforeend', userInput);",
		SafeAlternative: "el.insertAdjacentText('beforeend', userInput);",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "createContextualFragment",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Builds a DocumentFragment from an HTML string, scripts included",
		Example:         "range.createContextualFragment(userInput);",
		SafeAlternative: "Sanitize with DOMPurify before building fragments",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "eval",
		Type:            TypeFunction,
		Severity:        models.SeverityCritical,
		Description:     "Executes a string as JavaScript",
		Example:         "eval(location.hash.slice(1));",
		SafeAlternative: "JSON.parse for data, or a lookup table of allowed actions",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-95",
	},
	{
		Name:            "setTimeout",
		Type:            TypeFunction,
		Severity:        models.SeverityHigh,
		Description:     "Evaluates its first argument as code when given a string",
		Example:         "setTimeout(userInput, 100);",
		SafeAlternative: "Pass a function reference: setTimeout(() => run(), 100);",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-95",
	},
	{
		Name:            "setInterval",
		Type:            TypeFunction,
		Severity:        models.SeverityHigh,
		Description:     "Evaluates its first argument as code when given a string",
		Example:         "setInterval(userInput, 1000);",
		SafeAlternative: "Pass a function reference instead of a string",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-95",
	},
	{
		Name:            "execScript",
		Type:            TypeFunction,
		Severity:        models.SeverityHigh,
		Description:     "Legacy Internet Explorer API that executes a string as script",
		Example:         "execScript(userInput);",
		SafeAlternative: "Remove the call; there is no safe string-execution API",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-95",
	},
	{
		Name:            "Function",
		Type:            TypeConstructor,
		Severity:        models.SeverityCritical,
		Description:     "Compiles a string into a new function body",
		Example:         "new Function(userInput)();",
		SafeAlternative: "Define the function statically and pass data as arguments",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-95",
	},
	{
		Name:            "location",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Navigates to the assigned URL; javascript: URLs execute",
		Example:         "window.location = params.get('next');",
		SafeAlternative: "Validate the URL scheme and host against an allowlist before navigating",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-601",
	},
	{
		Name:            "href",
		Type:            TypeProperty,
		Severity:        models.SeverityMedium,
		Description:     "Sets a navigation target that may carry a javascript: URL",
		Example:         "link.href = userInput;",
		SafeAlternative: "Parse with new URL() and allow only http: and https:",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},
	{
		Name:            "src",
		Type:            TypeProperty,
		Severity:        models.SeverityMedium,
		Description:     "Loads a resource from an attacker-influenced URL",
		Example:         "script.src = userInput;",
		SafeAlternative: "Allowlist resource origins and restrict them with CSP",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-829",
	},
	{
		Name:            "srcdoc",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Renders the assigned HTML inside an iframe",
		Example:         "frame.srcdoc = userInput;",
		SafeAlternative: "Use a sandboxed iframe and sanitize the HTML",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-79",
	},

	// react
	{
		Name:            "dangerouslySetInnerHTML",
		Type:            TypeProp,
		Severity:        models.SeverityCritical,
		Description:     "Bypasses React escaping and sets raw HTML",
		Example:         "<div dangerouslySetInnerHTML={{__html: input}} />",
		SafeAlternative: "Render text as JSX children, or sanitize with DOMPurify first",
		Framework:       FrameworkReact,
		CWE:             "CWE-79",
	},

	// vue
	{
		Name:            "v-html",
		Type:            TypeDirective,
		Severity:        models.SeverityCritical,
		Description:     "Renders the bound value as raw HTML",
		Example:         `<div v-html="comment"></div>`,
		SafeAlternative: "Use text interpolation {{ comment }} or v-text",
		Framework:       FrameworkVue,
		CWE:             "CWE-79",
	},
	{
		Name:            "v-bind:innerHTML",
		Type:            TypeDirective,
		Severity:        models.SeverityCritical,
		Description:     "Binds raw HTML to the element's innerHTML",
		Example:         `<div v-bind:innerHTML="comment"></div>`,
		SafeAlternative: "Use v-text or text interpolation",
		Framework:       FrameworkVue,
		CWE:             "CWE-79",
	},

	// angular
	{
		Name:            "[innerHTML]",
		Type:            TypeBinding,
		Severity:        models.SeverityHigh,
		Description:     "Binds HTML into the element; Angular sanitizes unless trust was bypassed",
		Example:         `<div [innerHTML]="comment"></div>`,
		SafeAlternative: "Bind text with {{ comment }} and keep the built-in sanitizer in place",
		Framework:       FrameworkAngular,
		CWE:             "CWE-79",
	},
	{
		Name:            "bypassSecurityTrustHtml",
		Type:            TypeMethod,
		Severity:        models.SeverityCritical,
		Description:     "Marks a value as trusted HTML and disables sanitization",
		Example:         "this.sanitizer.bypassSecurityTrustHtml(input)",
		SafeAlternative: "Let Angular sanitize values; never bypass for user data",
		Framework:       FrameworkAngular,
		CWE:             "CWE-79",
	},
	{
		Name:            "bypassSecurityTrustScript",
		Type:            TypeMethod,
		Severity:        models.SeverityCritical,
		Description:     "Marks a value as trusted script",
		Example:         "this.sanitizer.bypassSecurityTrustScript(input)",
		SafeAlternative: "Do not execute user-provided script",
		Framework:       FrameworkAngular,
		CWE:             "CWE-95",
	},
	{
		Name:            "bypassSecurityTrustUrl",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Marks a URL as trusted, allowing javascript: URLs",
		Example:         "this.sanitizer.bypassSecurityTrustUrl(input)",
		SafeAlternative: "Validate the URL scheme instead of bypassing the sanitizer",
		Framework:       FrameworkAngular,
		CWE:             "CWE-79",
	},
	{
		Name:            "bypassSecurityTrustResourceUrl",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Marks a resource URL as trusted for iframes and scripts",
		Example:         "this.sanitizer.bypassSecurityTrustResourceUrl(input)",
		SafeAlternative: "Allowlist resource origins before trusting them",
		Framework:       FrameworkAngular,
		CWE:             "CWE-829",
	},
	{
		Name:            "ng-bind-html",
		Type:            TypeDirective,
		Severity:        models.SeverityHigh,
		Description:     "AngularJS directive that renders HTML",
		Example:         `<div ng-bind-html="comment"></div>`,
		SafeAlternative: "Use ng-bind, and $sanitize where HTML is required",
		Framework:       FrameworkAngular,
		CWE:             "CWE-79",
	},

	// jquery
	{
		Name:            ".html",
		Type:            TypeMethod,
		Severity:        models.SeverityCritical,
		Description:     "Sets element HTML from a string",
		Example:         "$('#out').html(userInput);",
		SafeAlternative: "$('#out').text(userInput);",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-79",
	},
	{
		Name:            ".append",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Parses string arguments as HTML before appending",
		Example:         "$('#list').append('<li>' + name + '</li>');",
		SafeAlternative: "Create elements with $('<li>').text(name) and append them",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-79",
	},
	{
		Name:            ".prepend",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Parses string arguments as HTML before prepending",
		Example:         "$('#list').prepend(userInput);",
		SafeAlternative: "Create elements and set their text with .text()",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-79",
	},
	{
		Name:            ".after",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Inserts parsed HTML after the element",
		Example:         "$('#x').after(userInput);",
		SafeAlternative: "Insert elements built with .text()",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-79",
	},
	{
		Name:            ".before",
		Type:            TypeMethod,
		Severity:        models.SeverityHigh,
		Description:     "Inserts parsed HTML before the element",
		Example:         "$('#x').before(userInput);",
		SafeAlternative: "Insert elements built with .text()",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-79",
	},
	{
		Name:            "$.globalEval",
		Type:            TypeMethod,
		Severity:        models.SeverityCritical,
		Description:     "Executes a string as global script",
		Example:         "$.globalEval(code);",
		SafeAlternative: "Remove dynamic evaluation entirely",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-95",
	},
	{
		Name:            "$.parseHTML",
		Type:            TypeMethod,
		Severity:        models.SeverityMedium,
		Description:     "Parses HTML; keepScripts=true also keeps script elements",
		Example:         "$.parseHTML(userInput, document, true);",
		SafeAlternative: "Sanitize input and leave keepScripts false",
		Framework:       FrameworkJQuery,
		CWE:             "CWE-79",
	},
}

var sources = []SourceDefinition{
	{
		Name:            "location.hash",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "URL fragment, fully controlled by whoever crafts the link and never sent to the server",
		Example:         "const tab = location.hash.slice(1);",
		SafeAlternative: "Match the fragment against a fixed set of expected values",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "location.search",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Query string of the current URL",
		Example:         "const q = location.search;",
		SafeAlternative: "Read single parameters with URLSearchParams and validate them",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "location.href",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Full URL of the current page including attacker-controlled parts",
		Example:         "const url = location.href;",
		SafeAlternative: "Parse with new URL() and use only validated components",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "location.pathname",
		Type:            TypeProperty,
		Severity:        models.SeverityMedium,
		Description:     "Path of the current URL",
		Example:         "const page = location.pathname;",
		SafeAlternative: "Route on known path segments only",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "document.URL",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Full document URL",
		Example:         "const u = document.URL;",
		SafeAlternative: "Parse with new URL() and validate",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "document.documentURI",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Alias of document.URL",
		Example:         "const u = document.documentURI;",
		SafeAlternative: "Parse with new URL() and validate",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "document.referrer",
		Type:            TypeProperty,
		Severity:        models.SeverityMedium,
		Description:     "URL of the linking page, chosen by the attacker",
		Example:         "log(document.referrer);",
		SafeAlternative: "Treat as untrusted text and never render it as HTML",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "document.cookie",
		Type:            TypeProperty,
		Severity:        models.SeverityMedium,
		Description:     "Cookies may be set by sibling subdomains or earlier injections",
		Example:         "const prefs = document.cookie;",
		SafeAlternative: "Validate cookie values before use",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "window.name",
		Type:            TypeProperty,
		Severity:        models.SeverityHigh,
		Description:     "Persists across navigations and can be set by any opener",
		Example:         "const data = window.name;",
		SafeAlternative: "Do not use window.name for data transfer",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "event.data",
		Type:            TypeEvent,
		Severity:        models.SeverityHigh,
		Description:     "postMessage payload, sent by any window unless the origin is checked",
		Example:         "window.addEventListener('message', e => render(e.data));",
		SafeAlternative: "Check event.origin against an allowlist before using event.data",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-346",
	},
	{
		Name:            "localStorage",
		Type:            TypeAPI,
		Severity:        models.SeverityMedium,
		Description:     "Persistent storage that an earlier injection may have poisoned",
		Example:         "const html = localStorage.getItem('bio');",
		SafeAlternative: "Validate stored values and render them as text",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "sessionStorage",
		Type:            TypeAPI,
		Severity:        models.SeverityMedium,
		Description:     "Per-tab storage that an earlier injection may have poisoned",
		Example:         "const v = sessionStorage.getItem('draft');",
		SafeAlternative: "Validate stored values and render them as text",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
	{
		Name:            "URLSearchParams",
		Type:            TypeAPI,
		Severity:        models.SeverityHigh,
		Description:     "Parsed query parameters from the URL",
		Example:         "new URLSearchParams(location.search).get('q')",
		SafeAlternative: "Validate each parameter against its expected format",
		Framework:       FrameworkVanilla,
		CWE:             "CWE-20",
	},
}

// Frameworks lists the framework names Scan understands.
func Frameworks() []string {
	return []string{FrameworkVanilla, FrameworkReact, FrameworkVue, FrameworkAngular, FrameworkJQuery}
}

// SinkCatalog returns a copy of the sink catalog.
func SinkCatalog() []SinkDefinition {
	out := make([]SinkDefinition, len(sinks))
	copy(out, sinks)
	return out
}

// SourceCatalog returns a copy of the source catalog.
func SourceCatalog() []SourceDefinition {
	out := make([]SourceDefinition, len(sources))
	copy(out, sources)
	return out
}
