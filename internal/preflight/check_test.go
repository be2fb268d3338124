package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/config"
)

type fakeProber struct {
	available bool
}

func (f fakeProber) Available(context.Context) bool { return f.available }
func (f fakeProber) ModelName() string              { return "nomic-embed-text" }
func (f fakeProber) Dimensions() int                { return 768 }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "embeddings")
	cfg.Cache.CatalogPath = ""
	return cfg
}

func names(results []CheckResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "embedder", Status: StatusWarn, Required: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"embedder","status":"warn","message":"","required":true}`, string(data))
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_RunAll_Healthy(t *testing.T) {
	// Given: a valid configuration and a reachable embedder
	checker := New(WithOutput(&bytes.Buffer{}))
	target := Target{Config: testConfig(t), Provider: "ollama", Embedder: fakeProber{available: true}}

	// When: running all checks
	results := checker.RunAll(context.Background(), target)

	// Then: every check runs and passes
	assert.Equal(t, []string{"config", "cache_writable", "disk_space", "embedder", "catalog"}, names(results))
	for _, r := range results {
		assert.Equal(t, StatusPass, r.Status, "%s: %s", r.Name, r.Message)
	}
	assert.False(t, checker.HasCriticalFailures(results))
	assert.Equal(t, "ready", checker.SummaryStatus(results))
	assert.DirExists(t, target.Config.Cache.Dir)
}

func TestChecker_RunAll_InvalidConfigStopsEarly(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize

	results := New().RunAll(context.Background(), Target{Config: cfg, Embedder: fakeProber{available: true}})

	require.Len(t, results, 1)
	assert.Equal(t, "config", results[0].Name)
	assert.True(t, results[0].IsCritical())
	assert.Contains(t, results[0].Message, "chunk_overlap")
}

func TestChecker_RunAll_EmbedderProblems(t *testing.T) {
	tests := []struct {
		name    string
		target  func(cfg *config.Config) Target
		message string
	}{
		{
			name: "unreachable",
			target: func(cfg *config.Config) Target {
				return Target{Config: cfg, Provider: "ollama", Embedder: fakeProber{}}
			},
			message: "ollama nomic-embed-text (768 dims) is not reachable",
		},
		{
			name: "not constructed",
			target: func(cfg *config.Config) Target {
				return Target{Config: cfg, EmbedderErr: errors.New("azure endpoint missing")}
			},
			message: "azure endpoint missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New()
			results := checker.RunAll(context.Background(), tt.target(testConfig(t)))

			var embedder CheckResult
			for _, r := range results {
				if r.Name == "embedder" {
					embedder = r
				}
			}
			assert.Equal(t, StatusFail, embedder.Status)
			assert.Equal(t, tt.message, embedder.Message)
			assert.True(t, checker.HasCriticalFailures(results))
			assert.Equal(t, "failed", checker.SummaryStatus(results))
		})
	}
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	// Given: a read-only directory (skip on CI/root)
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}
	readOnly := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnly, 0o555))
	defer func() { _ = os.Chmod(readOnly, 0o755) }()

	// When: checking write permissions
	result := New().CheckWritePermissions(readOnly)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckCatalog_CountsDocuments(t *testing.T) {
	result := New().CheckCatalog(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "0 documents", result.Message)
	assert.False(t, result.Required)
}

func TestChecker_CheckDiskSpace_MissingPath(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "failed to check disk space")
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: mixed results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50.0 GB free", Details: "hidden unless verbose"},
		{Name: "catalog", Status: StatusWarn, Message: "database is locked"},
		{Name: "embedder", Status: StatusFail, Message: "not reachable", Details: "start ollama", Required: true},
	}
	buf := &bytes.Buffer{}

	// When: printing
	New(WithOutput(buf)).PrintResults(results)

	// Then: statuses, details of failures and the summary appear
	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50.0 GB free")
	assert.Contains(t, out, "[WARN] catalog: database is locked")
	assert.Contains(t, out, "[FAIL] embedder: not reachable")
	assert.Contains(t, out, "start ollama")
	assert.NotContains(t, out, "hidden unless verbose")
	assert.Contains(t, out, "Status: FAILED")

	buf.Reset()
	New(WithOutput(buf), WithVerbose(true)).PrintResults(results)
	assert.Contains(t, buf.String(), "hidden unless verbose")
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"warning", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"optional failure", []CheckResult{{Status: StatusFail}}, "ready_with_warnings"},
		{"critical failure", []CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}
