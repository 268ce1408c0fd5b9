package mutation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptPayload = "<script>alert(1)</script>"

func payloads(ms []Mutation) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Payload
	}
	return out
}

func byStrategy(ms []Mutation, s Strategy) []Mutation {
	var out []Mutation
	for _, m := range ms {
		if m.Strategy == string(s) {
			out = append(out, m)
		}
	}
	return out
}

func TestGenerateEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		res := Generate(in, AllEnabled())
		assert.NotNil(t, res.Mutations)
		assert.Empty(t, res.Mutations)
		assert.Zero(t, res.Total)
		assert.NotNil(t, res.Strategies)
		assert.Empty(t, res.Strategies)
	}
}

func TestGenerateHTMLEntitiesOnly(t *testing.T) {
	res := Generate(scriptPayload, Strategies{"htmlEntities": true, "unknown": true})

	assert.Equal(t, []string{"htmlEntities"}, res.Strategies)
	require.Len(t, res.Mutations, 5)
	assert.Equal(t, Mutation{Payload: scriptPayload, Strategy: "original", Encoding: "none"}, res.Mutations[0])
	assert.True(t, strings.HasPrefix(res.Mutations[1].Payload, "&#60;&#115;&#99;"))
	assert.Equal(t, "&#60;script&#62;alert(1)&#60;/script&#62;", res.Mutations[2].Payload)
	assert.True(t, strings.HasPrefix(res.Mutations[3].Payload, "&#x3c;&#x73;"))
	assert.Equal(t, "&#x3c;script&#x3e;alert(1)&#x3c;/script&#x3e;", res.Mutations[4].Payload)

	for _, m := range res.Mutations {
		assert.NotContains(t, m.Payload, "%3C")
	}
}

func TestGenerateAllStrategiesInvariants(t *testing.T) {
	inputs := []string{
		scriptPayload,
		`<img src=x onerror=alert(1)>`,
		`<a href="javascript:alert('x')">click me</a>`,
		`<svg/onload=alert(1)/>`,
		"plain text",
		"é😀\x00\xff",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			res := Generate(in, AllEnabled())
			assert.Equal(t, len(res.Mutations), res.Total)

			originals := 0
			seen := map[string]bool{}
			for _, m := range res.Mutations {
				if m.Strategy == "original" {
					originals++
					assert.Equal(t, in, m.Payload)
				}
				assert.False(t, seen[m.Payload], "duplicate payload %q", m.Payload)
				seen[m.Payload] = true
			}
			assert.Equal(t, 1, originals)

			again := Generate(in, AllEnabled())
			if diff := cmp.Diff(res, again); diff != "" {
				t.Errorf("Generate not deterministic (-first +second):\n%s", diff)
			}
		})
	}
}

func TestGenerateStrategyOrder(t *testing.T) {
	res := Generate("x", Strategies{"obfuscation": true, "htmlEntities": true, "base64": false})
	assert.Equal(t, []string{"htmlEntities", "obfuscation"}, res.Strategies)
}

func TestCaseVariationsDedup(t *testing.T) {
	res := Generate("abc", Strategies{"caseVariations": true})
	assert.Equal(t, []string{"abc", "ABC", "Abc", "aBc"}, payloads(res.Mutations))
	assert.Equal(t, 4, res.Total)
}

func TestEncoders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"url", URLEncode(scriptPayload), "%3Cscript%3Ealert(1)%3C%2Fscript%3E"},
		{"url unreserved", URLEncode("a-_.!~*'()"), "a-_.!~*'()"},
		{"url utf8", URLEncode("é "), "%C3%A9%20"},
		{"double", DoubleURLEncode("<"), "%253C"},
		{"partial", urlPartial(scriptPayload), "%3Cscript%3Ealert%281%29%3C/script%3E"},
		{"unicode", UnicodeEscape("<a>"), `\u003ca\u003e`},
		{"unicode latin", UnicodeEscape("é"), `\u00e9`},
		{"unicode astral", UnicodeEscape("😀"), `\ud83d\ude00`},
		{"hex", HexEscape(`<a>`), `\x3ca\x3e`},
		{"hex wide", HexEscape("é€"), `\xe9\u20ac`},
		{"title", titleCase("hello world"), "Hello World"},
		{"alternating", alternatingCase("abcd"), "aBcD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestBase64(t *testing.T) {
	enc, err := Base64("<b>")
	require.NoError(t, err)
	assert.Equal(t, "PGI+", enc)

	enc, err = Base64("é")
	require.NoError(t, err)
	assert.Equal(t, "6Q==", enc)

	_, err = Base64("😀")
	assert.ErrorIs(t, err, errNonLatin1)

	res := Generate("<b>😀</b>", Strategies{"base64": true})
	assert.Empty(t, byStrategy(res.Mutations, Base64Encoding))
	assert.Equal(t, []string{"base64"}, res.Strategies)

	res = Generate("<b>", Strategies{"base64": true})
	assert.Equal(t, []string{"<b>", "data:text/html;base64,PGI+", "PGI+"}, payloads(res.Mutations))
}

func TestQuoteSubstitution(t *testing.T) {
	assert.Nil(t, quoteSubstitution("noquotes"))

	got := payloads(quoteSubstitution(`a="1" b='2'`))
	assert.Equal(t, []string{
		`a='1' b='2'`,
		`a="1" b="2"`,
		"a=`1` b=`2`",
		`a=1 b=2`,
	}, got)

	got = payloads(quoteSubstitution("x`y`"))
	assert.Equal(t, []string{"xy"}, got)
}

func TestWhitespaceVariation(t *testing.T) {
	assert.Nil(t, whitespaceVariation("<svg/onload=alert(1)>"))
	got := payloads(whitespaceVariation("a b"))
	assert.Equal(t, []string{"a\tb", "a\nb", "a  b", "a\fb"}, got)
}

func TestNullBytes(t *testing.T) {
	got := payloads(nullBytes(scriptPayload))
	assert.Equal(t, []string{
		"<script>alert(1)\x00</script>",
		"<script\x00>alert(1)</script>",
	}, got)
	assert.Empty(t, nullBytes("no tags here"))
}

func TestComments(t *testing.T) {
	got := payloads(comments(scriptPayload))
	assert.Equal(t, []string{
		"<!-->" + scriptPayload,
		"<script>/**/alert(1)</script>",
		"<script>//\nalert(1)</script>",
	}, got)

	assert.Len(t, comments("<img src=x>"), 1)
	// mentions script but has no opening tag
	assert.Len(t, comments("javascript:alert(1)"), 1)
}

func TestProtocolVariation(t *testing.T) {
	got := payloads(protocolVariation(`<a href="JavaScript:alert(1)">x</a>`))
	assert.Equal(t, []string{
		`<a href="java script:alert(1)">x</a>`,
		`<a href="vbscript:alert(1)">x</a>`,
		`<a href="data:text/html,alert(1)">x</a>`,
		`<a href="javascript:JavaScript:alert(1)">x</a>`,
	}, got)

	got = payloads(protocolVariation(`<img src=x onerror=alert(1)>`))
	assert.Equal(t, []string{`<img src=javascript:x onerror=alert(1)>`}, got)

	assert.Empty(t, protocolVariation("<b>hi</b>"))
}

func TestObfuscation(t *testing.T) {
	got := payloads(obfuscation(`<img src=x onerror=alert(1)>`))
	assert.Equal(t, []string{
		`<img src=x onerror=window['al'+'ert'](1)>`,
		"<img src=x onerror=window[`al`+`ert`](1)>",
		`<img src=x onerror=\x61\x6c\x65\x72\x74(1)>`,
		`<img src=x onerror=alert(1) />`,
	}, got)

	got = payloads(obfuscation(`<br/><hr />`))
	assert.Equal(t, []string{`<br><hr>`}, got)

	assert.Empty(t, obfuscation("<b>bold</b>"))
}

func TestParseStrategies(t *testing.T) {
	flags := ParseStrategies([]string{"HTMLentities, urlEncoding", "bogus", ""})
	assert.Equal(t, Strategies{"htmlEntities": true, "urlEncoding": true}, flags)

	assert.Len(t, ParseStrategies(nil), len(AllStrategies()))
	assert.Len(t, ParseStrategies([]string{" , "}), len(AllStrategies()))
}

func TestDescribe(t *testing.T) {
	for _, s := range AllStrategies() {
		assert.NotEmpty(t, Describe(s), s)
	}
	assert.Empty(t, Describe("nope"))
}

func TestTestAgainstFilter(t *testing.T) {
	ms := []Mutation{
		{Payload: "<SCRIPT>alert(1)</SCRIPT>", Strategy: "caseVariations"},
		{Payload: "&#60;script&#62;", Strategy: "htmlEntities"},
	}

	assert.Nil(t, TestAgainstFilter(ms, "  "))

	res := TestAgainstFilter(ms, "<script")
	require.Len(t, res, 2)
	assert.True(t, res[0].Blocked)
	assert.False(t, res[1].Blocked)
	assert.Equal(t, "htmlEntities", res[1].Strategy)
	assert.Contains(t, res[0].Reason, "pattern")

	res = TestAgainstFilter(ms, "alert(")
	require.Len(t, res, 2)
	assert.True(t, res[0].Blocked)
	assert.False(t, res[1].Blocked)
	assert.Contains(t, res[0].Reason, "substring")
}
