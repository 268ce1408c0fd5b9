package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/domscan"
	"github.com/xsslab/xsslab/internal/logger"
	"github.com/xsslab/xsslab/pkg/models"
)

const sample = "div.innerHTML = location.hash.substring(1);"

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(config.Default(), logger.Nop())
	require.NoError(t, err)
	g.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestBuild(t *testing.T) {
	g := newGenerator(t)
	r := g.Build(domscan.Scan(sample, ""), Options{Target: "app.js"})

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "app.js", r.Target)
	assert.Equal(t, 38, r.Risk.Score)
	assert.Len(t, r.Findings, 2)
	assert.Len(t, r.DataFlows, 1)
	require.Len(t, r.Remediations, 1)
	assert.Equal(t, "innerHTML", r.Remediations[0].Finding)
}

func TestBuildFiltersBySeverity(t *testing.T) {
	g := newGenerator(t)
	r := g.Build(domscan.Scan(sample, ""), Options{MinSeverity: models.SeverityCritical})

	require.Len(t, r.Findings, 1)
	assert.Equal(t, domscan.KindSink, r.Findings[0].Kind)
	assert.Equal(t, 38, r.Risk.Score)
	assert.Equal(t, "stdin", r.Target)
}

func TestBuildNilResult(t *testing.T) {
	r := newGenerator(t).Build(nil, Options{})
	assert.Empty(t, r.Findings)
	assert.Equal(t, 0, r.Risk.Score)
	assert.NotNil(t, r.Remediations)
}

func TestRenderJSONAndYAML(t *testing.T) {
	g := newGenerator(t)
	r := g.Build(domscan.Scan(sample, ""), Options{Target: "app.js"})

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, r, "json"))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "app.js", decoded["target"])
	assert.Len(t, decoded["findings"], 2)

	buf.Reset()
	require.NoError(t, g.Render(&buf, r, "yaml"))
	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, r.ID, fromYAML["id"])
	assert.Contains(t, fromYAML, "data_flows")
}

func TestRenderSARIF(t *testing.T) {
	g := newGenerator(t)
	r := g.Build(domscan.Scan(sample, ""), Options{Target: "app.js"})

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, r, "sarif"))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID string `json:"ruleId"`
				Level  string `json:"level"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	assert.Equal(t, generatorName, doc.Runs[0].Tool.Driver.Name)
	assert.Len(t, doc.Runs[0].Tool.Driver.Rules, 3)
	require.Len(t, doc.Runs[0].Results, 3)
	assert.Equal(t, "dom-xss/sink/innerHTML", doc.Runs[0].Results[0].RuleID)
	assert.Equal(t, "error", doc.Runs[0].Results[0].Level)
	assert.Equal(t, "dom-xss/flow", doc.Runs[0].Results[2].RuleID)
}

func TestRenderMarkdown(t *testing.T) {
	g := newGenerator(t)
	r := g.Build(domscan.Scan(sample, ""), Options{Target: "app.js"})

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, r, "markdown"))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# DOM XSS Report"))
	assert.Contains(t, out, "**Target:** app.js")
	assert.Contains(t, out, "**HIGH** (38/100)")
	assert.Contains(t, out, "## Findings")
	assert.Contains(t, out, "`innerHTML`")
	assert.Contains(t, out, "## Data flows")
	assert.Contains(t, out, "URL Fragment XSS")
	assert.Contains(t, out, "## Remediation")
	assert.Contains(t, out, "2024-03-01 12:00:00 UTC")
}

func TestRenderUnsupported(t *testing.T) {
	g := newGenerator(t)
	err := g.Render(&bytes.Buffer{}, g.Build(nil, Options{}), "pdf")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestGenerateWritesFiles(t *testing.T) {
	g := newGenerator(t)
	dir := t.TempDir()
	r := g.Build(domscan.Scan(sample, ""), Options{Target: "app.js"})

	files, err := g.Generate(r, Options{Formats: Formats, OutputDir: filepath.Join(dir, "reports")})
	require.NoError(t, err)
	require.Len(t, files, len(Formats))

	assert.True(t, strings.HasSuffix(files["markdown"], ".md"))
	assert.Contains(t, filepath.Base(files["json"]), "20240301_120000")
	for _, path := range files {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}

	files, err = g.Generate(r, Options{Formats: []string{"json", "pdf"}, OutputDir: dir})
	assert.Error(t, err)
	assert.Len(t, files, 1)
}

func TestTemplateHelpers(t *testing.T) {
	assert.Equal(t, "`a`", inlineCode("a"))
	assert.Equal(t, "``a`b``", inlineCode("a`b"))
	assert.Equal(t, "ab...", truncate(2, "abc"))
	assert.Equal(t, "abc", truncate(5, "abc"))
	assert.True(t, isHighRisk(models.SeverityCritical))
	assert.False(t, isHighRisk(models.SeverityMedium))

	_, err := NewTemplateManager().RenderTemplate("missing", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}
