package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/logger"
	"github.com/xsslab/xsslab/internal/mutation"
	"github.com/xsslab/xsslab/internal/progress"
)

const sample = "div.innerHTML = location.hash.substring(1);"

func execute(t *testing.T, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	root := NewRootCmd(cfg, logger.Nop())
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Progress.Backend = "file"
	cfg.Progress.Path = filepath.Join(t.TempDir(), "progress.json")
	return cfg
}

func TestMutateJSON(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"mutate", "<script>alert(1)</script>", "--strategies", "caseVariations", "--format", "json")
	require.NoError(t, err)

	var got mutateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"caseVariations"}, got.Strategies)
	assert.Equal(t, len(got.Mutations), got.Returned)
	assert.Equal(t, got.Total, got.Returned)
	require.NotEmpty(t, got.Mutations)
	assert.Equal(t, "original", got.Mutations[0].Strategy)
	for _, m := range got.Mutations[1:] {
		assert.Equal(t, "caseVariations", m.Strategy)
	}
	assert.Nil(t, got.FilterResults)
}

func TestMutatePlainWithLimit(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"mutate", "<script>alert(1)</script>", "--format", "plain", "--limit", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "<script>alert(1)</script>", lines[0])
}

func TestMutateFromStdin(t *testing.T) {
	out, err := execute(t, testConfig(t), "<svg onload=alert(1)>\n",
		"mutate", "-", "--format", "plain", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "<svg onload=alert(1)>\n", out)
}

func TestMutateFilter(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"mutate", "<script>alert(1)</script>", "--strategies", "htmlEntities",
		"--filter", "<script", "--format", "json")
	require.NoError(t, err)

	var got mutateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "<script", got.Filter)
	require.Len(t, got.FilterResults, got.Returned)
	assert.True(t, got.FilterResults[0].Blocked, "original payload contains the filtered tag")
}

func TestMutateTable(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"mutate", "<script>alert(1)</script>", "--strategies", "htmlEntities", "--filter", "<script")
	require.NoError(t, err)
	assert.Contains(t, out, "STRATEGY")
	assert.Contains(t, out, "blocked")
	assert.Contains(t, out, "slip past")
}

func TestMutateList(t *testing.T) {
	out, err := execute(t, testConfig(t), "", "mutate", "--list", "--format", "json")
	require.NoError(t, err)

	var entries []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, len(mutation.AllStrategies()))
	assert.Equal(t, "htmlEntities", entries[0]["name"])
	assert.NotEmpty(t, entries[0]["description"])
}

func TestMutateErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fuzz.MaxPayloadLength = 5

	_, err := execute(t, cfg, "", "mutate")
	assert.Error(t, err)

	_, err = execute(t, cfg, "", "mutate", "<script>")
	assert.EqualError(t, err, "payload exceeds 5 characters (got 8)")

	_, err = execute(t, cfg, "", "mutate", "<b>", "--format", "xml")
	assert.EqualError(t, err, "unsupported format: xml")
}

func TestScanStdinJSON(t *testing.T) {
	out, err := execute(t, testConfig(t), sample, "scan", "-", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Target    string `json:"target"`
		Framework string `json:"framework"`
		Risk      struct {
			Score int    `json:"score"`
			Level string `json:"level"`
		} `json:"risk"`
		Findings  []json.RawMessage `json:"findings"`
		DataFlows []json.RawMessage `json:"dataFlows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "stdin", got.Target)
	assert.Equal(t, "vanilla", got.Framework)
	assert.Equal(t, 38, got.Risk.Score)
	assert.Equal(t, "high", got.Risk.Level)
	assert.Len(t, got.Findings, 2)
	assert.Len(t, got.DataFlows, 1)
}

func TestScanFilesTable(t *testing.T) {
	dir := t.TempDir()
	unsafe := filepath.Join(dir, "unsafe.js")
	safe := filepath.Join(dir, "safe.js")
	require.NoError(t, os.WriteFile(unsafe, []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(safe, []byte("const x = 1 + 2;"), 0o644))

	out, err := execute(t, testConfig(t), "", "scan", unsafe, safe)
	require.NoError(t, err)
	assert.Contains(t, out, "unsafe.js")
	assert.Contains(t, out, "innerHTML")
	assert.Contains(t, out, "Data flows")
	assert.Contains(t, out, "No sinks or sources found")
}

func TestScanErrors(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(t, cfg, "", "scan")
	assert.Error(t, err)

	_, err = execute(t, cfg, sample, "scan", "-", "--framework", "svelte")
	assert.ErrorContains(t, err, `unknown framework "svelte"`)

	_, err = execute(t, cfg, "", "scan", filepath.Join(t.TempDir(), "missing.js"))
	assert.ErrorContains(t, err, "missing.js")

	cfg.Scan.MaxCodeSize = 10
	_, err = execute(t, cfg, sample, "scan", "-")
	assert.ErrorContains(t, err, "scan limit")
}

func TestScanList(t *testing.T) {
	out, err := execute(t, testConfig(t), "", "scan", "--list", "--framework", "react", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Sinks []struct {
			Name      string `json:"name"`
			Framework string `json:"framework"`
		} `json:"sinks"`
		Sources []json.RawMessage `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotEmpty(t, got.Sinks)
	assert.NotEmpty(t, got.Sources)
	for _, s := range got.Sinks {
		assert.Contains(t, []string{"vanilla", "react"}, s.Framework, s.Name)
	}
}

func TestScanFrameworkFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scan.DefaultFramework = "react"

	out, err := execute(t, cfg, sample, "scan", "-", "--format", "json")
	require.NoError(t, err)
	var got struct {
		Framework string `json:"framework"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "react", got.Framework)

	out, err = execute(t, cfg, sample, "scan", "-", "--framework", "auto", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "vanilla", got.Framework)
}

func TestScanSARIF(t *testing.T) {
	out, err := execute(t, testConfig(t), sample, "scan", "-", "--format", "sarif")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "2.1.0"`)
	assert.Contains(t, out, "dom-xss/sink/innerHTML")
}

func TestCSPAnalyzeJSON(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"csp", "analyze", "script-src 'self' 'unsafe-inline'; object-src 'none'", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Parsed struct {
			Order    []string `json:"order"`
			Warnings []string `json:"warnings"`
		} `json:"parsed"`
		Score struct {
			Score  int      `json:"score"`
			Issues []string `json:"issues"`
		} `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"script-src", "object-src"}, got.Parsed.Order)
	assert.NotEmpty(t, got.Parsed.Warnings)
	assert.Less(t, got.Score.Score, 100)
	assert.NotEmpty(t, got.Score.Issues)
}

func TestCSPAnalyzeTable(t *testing.T) {
	out, err := execute(t, testConfig(t), "default-src 'self'\n", "csp", "analyze", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "DIRECTIVE")
	assert.Contains(t, out, "default-src")
	assert.Contains(t, out, "Score:")
}

func TestCSPTest(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"csp", "test", "<script>alert(1)</script>", "--policy", "script-src 'self'", "--format", "json")
	require.NoError(t, err)

	var got []struct {
		Payload string `json:"payload"`
		Blocked bool   `json:"blocked"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "<script>alert(1)</script>", got[0].Payload)
	assert.True(t, got[0].Blocked)
	assert.NotEmpty(t, got[0].Reason)

	_, err = execute(t, testConfig(t), "", "csp", "test", "<b>")
	assert.EqualError(t, err, "--policy is required")
}

func TestCSPBuild(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"csp", "build", "--directive", "default-src 'self'", "--directive", "object-src 'none'")
	require.NoError(t, err)
	assert.Equal(t, "default-src 'self'; object-src 'none'", strings.SplitN(out, "\n", 2)[0])

	out, err = execute(t, testConfig(t), "",
		"csp", "build", "--preset", "strict", "--directive", "img-src 'self' data:", "--nonce", "--format", "json")
	require.NoError(t, err)

	var got builtPolicy
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.Nonce)
	assert.Contains(t, got.Header, "script-src 'self' 'nonce-"+got.Nonce+"'")
	assert.Contains(t, got.Header, "img-src 'self' data:")
	assert.True(t, strings.HasPrefix(got.Header, "default-src 'none'"))
}

func TestCSPBuildHash(t *testing.T) {
	out, err := execute(t, testConfig(t), "",
		"csp", "build", "--directive", "script-src 'self'", "--hash", "alert(1)", "--hash-alg", "sha384")
	require.NoError(t, err)
	assert.Contains(t, out, "script-src 'self' 'sha384-")
}

func TestCSPBuildErrors(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(t, cfg, "", "csp", "build")
	assert.ErrorContains(t, err, "empty policy")

	_, err = execute(t, cfg, "", "csp", "build", "--preset", "paranoid")
	assert.ErrorContains(t, err, `unknown preset "paranoid"`)

	_, err = execute(t, cfg, "", "csp", "build", "--directive", "script-src")
	assert.ErrorContains(t, err, "needs a name and at least one value")

	_, err = execute(t, cfg, "", "csp", "build", "--directive", "script-src 'self'", "--hash", "x", "--hash-alg", "md5")
	assert.ErrorContains(t, err, "unsupported hash algorithm")
}

func TestCSPExplain(t *testing.T) {
	out, err := execute(t, testConfig(t), "", "csp", "explain", "script-src")
	require.NoError(t, err)
	assert.Contains(t, out, "script-src")
	assert.Contains(t, out, "Recommendation:")

	out, err = execute(t, testConfig(t), "", "csp", "explain")
	require.NoError(t, err)
	assert.Contains(t, out, "default-src")
	assert.Contains(t, out, "object-src")

	_, err = execute(t, testConfig(t), "", "csp", "explain", "no-such-src")
	assert.EqualError(t, err, `unknown directive "no-such-src"`)
}

func TestProgressLifecycle(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "", "progress", "complete-lesson", "dom-sinks", "--path", "basics")
	require.NoError(t, err)
	assert.Contains(t, out, "1 lessons completed")

	_, err = execute(t, cfg, "", "progress", "attempt", "reflected-1")
	require.NoError(t, err)
	out, err = execute(t, cfg, "", "progress", "complete-challenge", "reflected-1", "--solution", "<svg onload=alert(1)>")
	require.NoError(t, err)
	assert.Contains(t, out, "after 2 attempts")

	_, err = execute(t, cfg, "", "progress", "complete-path", "basics")
	require.NoError(t, err)

	out, err = execute(t, cfg, "", "progress", "show", "--format", "json")
	require.NoError(t, err)

	var doc progress.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, progress.Version, doc.Version)
	require.Contains(t, doc.Lessons, "dom-sinks")
	assert.Equal(t, "basics", doc.Lessons["dom-sinks"].Path)
	require.Contains(t, doc.Paths, "basics")
	assert.True(t, doc.Paths["basics"].Completed)
	require.Contains(t, doc.Challenges, "reflected-1")
	assert.True(t, doc.Challenges["reflected-1"].Completed)
	assert.Equal(t, "<svg onload=alert(1)>", doc.Challenges["reflected-1"].Solution)
	assert.Equal(t, 2, doc.Stats.TotalAttempts)

	out, err = execute(t, cfg, "", "progress", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "reflected-1")
	assert.Contains(t, out, "solved")

	_, err = execute(t, cfg, "", "progress", "reset")
	require.NoError(t, err)
	out, err = execute(t, cfg, "", "progress", "show", "--format", "json")
	require.NoError(t, err)
	doc = progress.Document{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Empty(t, doc.Lessons)
	assert.Empty(t, doc.Challenges)
}

func TestReportWritesFiles(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(src, []byte(sample), 0o644))

	out, err := execute(t, cfg, "", "report", src, "--format", "json,markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "app.js")

	jsonFiles, err := filepath.Glob(filepath.Join(cfg.OutputDir, "xss_report_*.json"))
	require.NoError(t, err)
	assert.Len(t, jsonFiles, 1)
	mdFiles, err := filepath.Glob(filepath.Join(cfg.OutputDir, "xss_report_*.md"))
	require.NoError(t, err)
	require.Len(t, mdFiles, 1)

	md, err := os.ReadFile(mdFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(md), "# DOM XSS Report")
}

func TestReportOutputFlag(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(t.TempDir(), "reports")

	_, err := execute(t, cfg, sample, "--output", dir, "report", "-", "--format", "sarif")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "xss_report_*.sarif"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestReportUnsupportedFormat(t *testing.T) {
	_, err := execute(t, testConfig(t), sample, "report", "-", "--format", "pdf")
	assert.ErrorContains(t, err, "pdf")
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, testConfig(t), "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "xsslab")
}
