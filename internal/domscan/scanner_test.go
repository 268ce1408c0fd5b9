package domscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsslab/xsslab/pkg/models"
)

func names(fs []Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestScanFragmentToInnerHTML(t *testing.T) {
	res := Scan("div.innerHTML = location.hash.substring(1);", "")

	assert.Equal(t, FrameworkVanilla, res.Framework)
	require.Equal(t, []string{"innerHTML"}, names(res.DetectedSinks))
	require.Equal(t, []string{"location.hash"}, names(res.DetectedSources))

	sink := res.DetectedSinks[0]
	assert.Equal(t, KindSink, sink.Kind)
	assert.Equal(t, 1, sink.Line)
	assert.Equal(t, 4, sink.Column)
	assert.Equal(t, "CWE-79", sink.CWE)
	assert.Equal(t, models.SeverityCritical, sink.Severity)
	assert.Equal(t, 17, res.DetectedSources[0].Column)

	require.Len(t, res.DataFlows, 1)
	flow := res.DataFlows[0]
	assert.Equal(t, "location.hash", flow.Source)
	assert.Equal(t, "innerHTML", flow.Sink)
	assert.Equal(t, "high", flow.Confidence)
	assert.Equal(t, 0, flow.Distance)
	assert.Equal(t, models.SeverityCritical, flow.Severity)

	require.Len(t, res.KnownPatterns, 1)
	assert.Equal(t, "URL Fragment XSS", res.KnownPatterns[0].Name)

	assert.Equal(t, Summary{
		TotalFindings: 2,
		CriticalCount: 1,
		HighCount:     1,
		SinkCount:     1,
		SourceCount:   1,
		DataFlowCount: 1,
	}, res.Summary)

	risk := CalculateRiskScore(res)
	assert.Equal(t, 38, risk.Score)
	assert.Equal(t, models.SeverityHigh, risk.Level)
}

func TestScanFlowBySharedIdentifier(t *testing.T) {
	code := "const q = new URLSearchParams(location.search).get('q');\n" +
		"const box = document.getElementById('out');\n" +
		"box.innerHTML = q;\n"
	res := Scan(code, FrameworkVanilla)

	assert.ElementsMatch(t, []string{"URLSearchParams", "location.search"}, names(res.DetectedSources))
	require.Len(t, res.DataFlows, 2)
	for _, f := range res.DataFlows {
		assert.Equal(t, 2, f.Distance)
		assert.Equal(t, "medium", f.Confidence)
		assert.Equal(t, 3, f.SinkLine)
	}
	require.Len(t, res.KnownPatterns, 1)
	assert.Equal(t, "Query String XSS", res.KnownPatterns[0].Name)
}

func TestScanNoFlowWithoutSharedIdentifier(t *testing.T) {
	code := "const a = location.hash;\nx.innerHTML = b;"
	res := Scan(code, "")
	assert.Len(t, res.DetectedSinks, 1)
	assert.Len(t, res.DetectedSources, 1)
	assert.Empty(t, res.DataFlows)
	assert.NotNil(t, res.DataFlows)
	// literal substrings are enough for known patterns
	assert.Len(t, res.KnownPatterns, 1)
}

func TestScanFlowTooFar(t *testing.T) {
	code := "var v = location.hash;\n\n\n\n\n\nout.innerHTML = v;"
	res := Scan(code, "")
	assert.Empty(t, res.DataFlows)

	code = "var v = location.hash;\n\n\n\n\nout.innerHTML = v;"
	res = Scan(code, "")
	require.Len(t, res.DataFlows, 1)
	assert.Equal(t, 5, res.DataFlows[0].Distance)
	assert.Equal(t, "low", res.DataFlows[0].Confidence)
}

func TestScanIgnoresComparisons(t *testing.T) {
	res := Scan("if (el.innerHTML == '' || el.innerHTML === x) {}", "")
	assert.Empty(t, res.DetectedSinks)
}

func TestScanFrameworkSinks(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		framework string
		want      []string
	}{
		{"react prop", `<div dangerouslySetInnerHTML={{__html: x}} />`, FrameworkReact, []string{"dangerouslySetInnerHTML"}},
		{"react prop ignored for vanilla", `<div dangerouslySetInnerHTML={{__html: x}} />`, FrameworkVanilla, []string{}},
		{"vue directive", `<p v-html="msg"></p>`, FrameworkVue, []string{"v-html"}},
		{"angular binding", `<div [innerHTML]="c"></div>`, FrameworkAngular, []string{"[innerHTML]"}},
		{"angular bypass", `this.s.bypassSecurityTrustHtml(v)`, "Angular", []string{"bypassSecurityTrustHtml"}},
		{"jquery html", `$('#out').html(data);`, FrameworkJQuery, []string{".html"}},
		{"jquery global eval", `$.globalEval(code);`, FrameworkJQuery, []string{"$.globalEval"}},
		{"constructor", `var f = new Function(body);`, "", []string{"Function"}},
		{"eval", `eval(x)`, "", []string{"eval"}},
		{"document.writeln", `document.writeln(x)`, "", []string{"document.writeln"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(tt.code, tt.framework)
			assert.Equal(t, tt.want, names(res.DetectedSinks))
		})
	}
}

func TestScanEventSource(t *testing.T) {
	res := Scan("window.addEventListener('message', e => { out.innerHTML = e.data; });", "")
	assert.Equal(t, []string{"event.data"}, names(res.DetectedSources))
	require.Len(t, res.DataFlows, 1)
	assert.Equal(t, "high", res.DataFlows[0].Confidence)
}

func TestScanMultipleMatchesOnLine(t *testing.T) {
	res := Scan("a.innerHTML = 1; b.innerHTML = 2;", "")
	require.Len(t, res.DetectedSinks, 2)
	assert.Equal(t, 2, res.DetectedSinks[0].Column)
	assert.Equal(t, 19, res.DetectedSinks[1].Column)
}

func TestScanRuneColumns(t *testing.T) {
	res := Scan("é.innerHTML = x\r\n  eval(y)", "")
	require.Len(t, res.DetectedSinks, 2)
	assert.Equal(t, 2, res.DetectedSinks[0].Column)
	assert.Equal(t, "eval(y)", res.DetectedSinks[1].Snippet)
	assert.Equal(t, 3, res.DetectedSinks[1].Column)
}

func TestScanEmpty(t *testing.T) {
	res := Scan("", "")
	assert.NotNil(t, res.Findings)
	assert.Empty(t, res.Findings)
	assert.Equal(t, Summary{}, res.Summary)
	assert.Equal(t, RiskScore{0, models.SeverityLow, riskFor(0).Description}, CalculateRiskScore(res))
}

func TestDetectFramework(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"import React from 'react';", FrameworkReact},
		{"new Vue({ el: '#app' })", FrameworkVue},
		{"@Component({ selector: 'x' })", FrameworkAngular},
		{"$('#x').hide();", FrameworkJQuery},
		{"document.body.textContent = 'hi';", FrameworkVanilla},
		{"import React from 'react';\n$('#x').hide();", FrameworkReact},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFramework(tt.code))
		})
	}
}

func TestCalculateRiskScore(t *testing.T) {
	many := &ScanResult{}
	for i := 0; i < 20; i++ {
		many.Findings = append(many.Findings, Finding{Severity: models.SeverityCritical})
	}
	assert.Equal(t, 100, CalculateRiskScore(many).Score)
	assert.Equal(t, models.SeverityCritical, CalculateRiskScore(many).Level)

	assert.Equal(t, 0, CalculateRiskScore(nil).Score)

	tests := []struct {
		score int
		want  models.Severity
	}{
		{0, models.SeverityLow},
		{9, models.SeverityLow},
		{10, models.SeverityMedium},
		{19, models.SeverityMedium},
		{20, models.SeverityHigh},
		{49, models.SeverityHigh},
		{50, models.SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, riskFor(tt.score).Level, "score %d", tt.score)
	}

	lowOnly := &ScanResult{Findings: []Finding{{Severity: models.SeverityLow}}}
	assert.Equal(t, 0, CalculateRiskScore(lowOnly).Score)
}

func TestCatalogCopies(t *testing.T) {
	cat := SinkCatalog()
	require.NotEmpty(t, cat)
	cat[0].Name = "changed"
	assert.Equal(t, "innerHTML", SinkCatalog()[0].Name)

	for _, s := range SinkCatalog() {
		assert.Contains(t, Frameworks(), s.Framework, s.Name)
		assert.NotEmpty(t, s.SafeAlternative, s.Name)
	}
	assert.NotEmpty(t, SourceCatalog())
	assert.NotEmpty(t, KnownPatterns())
}
