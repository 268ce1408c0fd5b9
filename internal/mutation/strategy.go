package mutation

import (
	"regexp"
	"strings"
	"unicode"
)

// Strategy names one family of payload transforms.
type Strategy string

const (
	HTMLEntities        Strategy = "htmlEntities"
	URLEncoding         Strategy = "urlEncoding"
	UnicodeEscapes      Strategy = "unicodeEscapes"
	Base64Encoding      Strategy = "base64"
	CaseVariations      Strategy = "caseVariations"
	QuoteSubstitution   Strategy = "quoteSubstitution"
	WhitespaceVariation Strategy = "whitespaceVariation"
	NullBytes           Strategy = "nullBytes"
	Comments            Strategy = "comments"
	ProtocolVariation   Strategy = "protocolVariation"
	Obfuscation         Strategy = "obfuscation"
)

type transform func(payload string) []Mutation

type strategyEntry struct {
	name        Strategy
	description string
	apply       transform
}

// canonical order; Generate walks this slice
var strategyTable = []strategyEntry{
	{HTMLEntities, "Decimal and hex HTML character references", htmlEntities},
	{URLEncoding, "Percent-encoding, partial and double", urlEncoding},
	{UnicodeEscapes, "JavaScript \\u and \\x escapes", unicodeEscapes},
	{Base64Encoding, "Base64 and data: URI wrapping", base64Variants},
	{CaseVariations, "Upper, lower, title and alternating case", caseVariations},
	{QuoteSubstitution, "Swapping or removing quote characters", quoteSubstitution},
	{WhitespaceVariation, "Replacing spaces with other whitespace", whitespaceVariation},
	{NullBytes, "Injecting NUL bytes around tags", nullBytes},
	{Comments, "HTML and JavaScript comment insertion", comments},
	{ProtocolVariation, "javascript: scheme variants", protocolVariation},
	{Obfuscation, "Property-access obfuscation and self-closing tags", obfuscation},
}

// AllStrategies returns every strategy in canonical order.
func AllStrategies() []Strategy {
	out := make([]Strategy, len(strategyTable))
	for i, e := range strategyTable {
		out[i] = e.name
	}
	return out
}

// Describe returns a short human description of s.
func Describe(s Strategy) string {
	for _, e := range strategyTable {
		if e.name == s {
			return e.description
		}
	}
	return ""
}

func mut(payload string, s Strategy, encoding string) Mutation {
	return Mutation{Payload: payload, Strategy: string(s), Encoding: encoding}
}

// appendIfChanged adds m unless its payload equals base.
func appendIfChanged(out []Mutation, base string, m Mutation) []Mutation {
	if m.Payload == base {
		return out
	}
	return append(out, m)
}

func htmlEntities(p string) []Mutation {
	out := []Mutation{mut(HTMLDecimal(p), HTMLEntities, "html-decimal")}
	out = appendIfChanged(out, p, mut(htmlDecimalPartial(p), HTMLEntities, "html-decimal-partial"))
	out = append(out, mut(HTMLHex(p), HTMLEntities, "html-hex"))
	return appendIfChanged(out, p, mut(htmlHexPartial(p), HTMLEntities, "html-hex-partial"))
}

func urlEncoding(p string) []Mutation {
	out := []Mutation{mut(URLEncode(p), URLEncoding, "url")}
	out = appendIfChanged(out, p, mut(urlPartial(p), URLEncoding, "url-partial"))
	return append(out, mut(DoubleURLEncode(p), URLEncoding, "url-double"))
}

func unicodeEscapes(p string) []Mutation {
	var out []Mutation
	out = appendIfChanged(out, p, mut(UnicodeEscape(p), UnicodeEscapes, "unicode"))
	return appendIfChanged(out, p, mut(HexEscape(p), UnicodeEscapes, "hex"))
}

func base64Variants(p string) []Mutation {
	enc, err := Base64(p)
	if err != nil {
		return nil
	}
	return []Mutation{
		mut("data:text/html;base64,"+enc, Base64Encoding, "base64-data-uri"),
		mut(enc, Base64Encoding, "base64"),
	}
}

var wordStart = regexp.MustCompile(`\b\w`)

func titleCase(s string) string {
	return wordStart.ReplaceAllStringFunc(s, strings.ToUpper)
}

func alternatingCase(s string) string {
	rs := []rune(s)
	for i, r := range rs {
		if i%2 == 0 {
			rs[i] = unicode.ToLower(r)
		} else {
			rs[i] = unicode.ToUpper(r)
		}
	}
	return string(rs)
}

func caseVariations(p string) []Mutation {
	out := []Mutation{
		mut(strings.ToUpper(p), CaseVariations, "uppercase"),
		mut(strings.ToLower(p), CaseVariations, "lowercase"),
	}
	out = appendIfChanged(out, p, mut(titleCase(p), CaseVariations, "titlecase"))
	return appendIfChanged(out, p, mut(alternatingCase(p), CaseVariations, "alternating"))
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "", "`", "")

func quoteSubstitution(p string) []Mutation {
	hasDouble := strings.Contains(p, `"`)
	hasSingle := strings.Contains(p, `'`)
	if !hasDouble && !hasSingle && !strings.Contains(p, "`") {
		return nil
	}

	var out []Mutation
	if hasDouble {
		out = append(out, mut(strings.ReplaceAll(p, `"`, `'`), QuoteSubstitution, "double-to-single"))
	}
	if hasSingle {
		out = append(out, mut(strings.ReplaceAll(p, `'`, `"`), QuoteSubstitution, "single-to-double"))
	}
	if hasDouble || hasSingle {
		bt := strings.NewReplacer(`"`, "`", `'`, "`").Replace(p)
		out = append(out, mut(bt, QuoteSubstitution, "backtick"))
	}
	return appendIfChanged(out, p, mut(quoteStripper.Replace(p), QuoteSubstitution, "stripped"))
}

func whitespaceVariation(p string) []Mutation {
	if !strings.Contains(p, " ") {
		return nil
	}
	return []Mutation{
		mut(strings.ReplaceAll(p, " ", "\t"), WhitespaceVariation, "tab"),
		mut(strings.ReplaceAll(p, " ", "\n"), WhitespaceVariation, "newline"),
		mut(strings.ReplaceAll(p, " ", "  "), WhitespaceVariation, "double-space"),
		mut(strings.ReplaceAll(p, " ", "\f"), WhitespaceVariation, "form-feed"),
	}
}

var openTagName = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*`)

// insertAfterFirst inserts text right after the first match of re.
func insertAfterFirst(re *regexp.Regexp, s, text string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[1]] + text + s[loc[1]:]
}

func nullBytes(p string) []Mutation {
	var out []Mutation
	if strings.Contains(p, "</") {
		out = append(out, mut(strings.ReplaceAll(p, "</", "\x00</"), NullBytes, "null-before-close"))
	}
	return appendIfChanged(out, p, mut(insertAfterFirst(openTagName, p, "\x00"), NullBytes, "null-in-tag"))
}

var scriptOpen = regexp.MustCompile(`(?i)<script[^>]*>`)

func comments(p string) []Mutation {
	out := []Mutation{mut("<!-->"+p, Comments, "html-comment")}
	if !strings.Contains(strings.ToLower(p), "script") {
		return out
	}
	out = appendIfChanged(out, p, mut(insertAfterFirst(scriptOpen, p, "/**/"), Comments, "block-comment"))
	return appendIfChanged(out, p, mut(insertAfterFirst(scriptOpen, p, "//\n"), Comments, "line-comment"))
}

var (
	jsScheme  = regexp.MustCompile(`(?i)javascript:`)
	urlAttr   = regexp.MustCompile(`(?i)\b(src|href)=(["']?)`)
	attrCheck = regexp.MustCompile(`(?i)(src|href)=`)
)

func protocolVariation(p string) []Mutation {
	var out []Mutation
	if jsScheme.MatchString(p) {
		out = append(out,
			mut(jsScheme.ReplaceAllLiteralString(p, "java script:"), ProtocolVariation, "space-injected"),
			mut(jsScheme.ReplaceAllLiteralString(p, "vbscript:"), ProtocolVariation, "vbscript"),
			mut(jsScheme.ReplaceAllLiteralString(p, "data:text/html,"), ProtocolVariation, "data-uri"),
		)
	}
	if attrCheck.MatchString(p) {
		prefixed := urlAttr.ReplaceAllString(p, "${1}=${2}javascript:")
		out = appendIfChanged(out, p, mut(prefixed, ProtocolVariation, "javascript-prefix"))
	}
	return out
}

var (
	selfClosing = regexp.MustCompile(`\s*/>`)
	voidTag     = regexp.MustCompile(`(?i)(<(?:img|input|br|hr)\b[^>]*?)\s*>`)
)

func obfuscation(p string) []Mutation {
	var out []Mutation
	if strings.Contains(p, "alert") {
		out = append(out,
			mut(strings.ReplaceAll(p, "alert", "window['al'+'ert']"), Obfuscation, "string-concat"),
			mut(strings.ReplaceAll(p, "alert", "window[`al`+`ert`]"), Obfuscation, "template-literal"),
			mut(strings.ReplaceAll(p, "alert", `\x61\x6c\x65\x72\x74`), Obfuscation, "hex-escape"),
		)
	}

	if strings.Contains(p, "/>") {
		return appendIfChanged(out, p, mut(selfClosing.ReplaceAllString(p, ">"), Obfuscation, "strip-self-closing"))
	}
	if loc := voidTag.FindStringSubmatchIndex(p); loc != nil {
		closed := p[:loc[0]] + p[loc[2]:loc[3]] + " />" + p[loc[1]:]
		out = appendIfChanged(out, p, mut(closed, Obfuscation, "add-self-closing"))
	}
	return out
}
