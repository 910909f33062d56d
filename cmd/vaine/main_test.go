package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vaine/internal/config"
)

const inputDoc = `{
  "data": [
    {"t": 1, "y": 2}, {"t": 2, "y": 4}, {"t": 3, "y": 6}, {"t": 4, "y": 8},
    {"t": 1, "y": 9}, {"t": 2, "y": 8}, {"t": 3, "y": 7}, {"t": 4, "y": 6}
  ],
  "treatments": ["t"],
  "outcomes": ["y"],
  "latentRepresentation": {
    "t": {
      "parents": [8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14, 14],
      "points": [[0,0],[1,1],[2,2],[3,3],[4,4],[5,5],[6,6],[7,7]]
    }
  }
}`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(inputDoc), 0o600))
	return path
}

func memoryBackends(t *testing.T) {
	t.Setenv("VAINE_BLOB_DRIVER", "memory")
	t.Setenv("VAINE_LEDGER_DRIVER", "memory")
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type analyzeOutput struct {
	Document struct {
		Treatment string `json:"treatment"`
		Clusters  []struct {
			Name       string `json:"name"`
			CustomName string `json:"customName"`
			Status     string `json:"status"`
		} `json:"clusters"`
		ATEAll *float64 `json:"ATE(all clusters)"`
	} `json:"document"`
	Export *struct {
		ID        string `json:"id"`
		Artifacts []struct {
			Key string `json:"key"`
		} `json:"artifacts"`
	} `json:"export"`
}

func TestAnalyzePrintsDocument(t *testing.T) {
	memoryBackends(t)
	out, err := runRoot(t, "analyze", "-i", writeInput(t), "-n", "2",
		"--valid", "12=true", "--name", "13=late")
	require.NoError(t, err)

	var got analyzeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "t", got.Document.Treatment)
	require.Len(t, got.Document.Clusters, 2)
	assert.Equal(t, "selected", got.Document.Clusters[0].Status)
	assert.Equal(t, "late", got.Document.Clusters[1].CustomName)
	require.NotNil(t, got.Document.ATEAll)
	assert.InDelta(t, 0.5, *got.Document.ATEAll, 1e-9)
	assert.Nil(t, got.Export)
}

func TestAnalyzeExports(t *testing.T) {
	memoryBackends(t)
	trace := filepath.Join(t.TempDir(), "trace.jsonl")
	out, err := runRoot(t, "analyze", "-i", writeInput(t), "-n", "2",
		"--export", "--format", "json,csv", "--trace", trace)
	require.NoError(t, err)

	var got analyzeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Export)
	require.Len(t, got.Export.Artifacts, 2)
	assert.True(t, strings.HasSuffix(got.Export.Artifacts[0].Key, "/ty.json"))
	assert.True(t, strings.HasSuffix(got.Export.Artifacts[1].Key, "/ty.csv"))

	spans, err := os.ReadFile(trace)
	require.NoError(t, err)
	assert.Contains(t, string(spans), "step.cut")
}

func TestAnalyzeRejectsBadFlags(t *testing.T) {
	memoryBackends(t)
	input := writeInput(t)
	for _, args := range [][]string{
		{"analyze"},
		{"analyze", "-i", input, "--valid", "12"},
		{"analyze", "-i", input, "--valid", "x=true"},
		{"analyze", "-i", input, "--valid", "12=maybe"},
		{"analyze", "-i", input, "-t", "nope"},
		{"analyze", "-i", input, "--export", "--format", "pdf"},
		{"analyze", "-i", filepath.Join(t.TempDir(), "missing.json")},
	} {
		_, err := runRoot(t, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestAnalyzeReadsCSVRows(t *testing.T) {
	memoryBackends(t)
	rows := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(rows, []byte("t,y\n1,1\n2,2\n3,3\n4,4\n1,4\n2,3\n3,2\n4,1\n"), 0o600))
	out, err := runRoot(t, "analyze", "-i", writeInput(t), "--rows", rows, "-n", "2")
	require.NoError(t, err)
	var got analyzeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Document.Clusters, 2)
}

func TestBuildServerRoutes(t *testing.T) {
	memoryBackends(t)
	cfgPath := filepath.Join(t.TempDir(), "vaine.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("clusters: 2\n"), 0o600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	a := &app{logger: zap.NewNop(), cfg: cfg}

	srv, closer, err := a.buildServer(context.Background(), &serveOptions{input: writeInput(t), addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer func() { _ = closer() }()
	assert.Equal(t, "127.0.0.1:0", srv.Addr)

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/session")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, body.String(), "vaine_session_operations_total")

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()
}
