package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantdoc/internal/analyses"
	"plantdoc/internal/history"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// setupEnv points every store at a temp dir and removes provider keys so
// analyses take the offline fallback without waiting.
func setupEnv(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PLANTDOC_CONFIG", "")
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OBJECT_STORE", "local")
	t.Setenv("LOCAL_STORE_DIR", filepath.Join(dir, "images"))
	t.Setenv("HISTORY_BACKEND", backend)
	t.Setenv("HISTORY_DIR", filepath.Join(dir, "history"))
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "db", "plantdoc.db"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PLANTNET_API_KEY", "")
	t.Setenv("KINDWISE_API_KEY", "")
	t.Setenv("FALLBACK_DELAY", "0")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "leaf.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))
	return path
}

func TestTreatmentCommand(t *testing.T) {
	setupEnv(t, "memory")

	out, err := run(t, "treatment", "Ferrugem", "comum")
	require.NoError(t, err)
	assert.Contains(t, out, "Calda bordalesa")

	out, err = run(t, "treatment")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 7)

	_, err = run(t, "treatment", "granizo")
	assert.ErrorContains(t, err, "no treatment known")
}

func TestAnalyzeSavesToHistory(t *testing.T) {
	dir := setupEnv(t, "file")
	img := writeImage(t, dir)

	out, err := run(t, "analyze", img, "--lat", "-23.55", "--lng", "-46.63", "--accuracy", "12")
	require.NoError(t, err)
	var got analyzeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, analyses.ModeFallback, got.Mode)
	assert.True(t, got.Simulated)
	assert.NotEmpty(t, got.Notice)
	assert.Equal(t, analyses.FallbackPlantName, got.Analysis.Identification.Name)
	require.NotEmpty(t, got.HistoryID)
	assert.Equal(t, got.HistoryID, got.Analysis.ID)
	require.NotNil(t, got.Analysis.Location)
	assert.InDelta(t, 12.0, *got.Analysis.Location.Accuracy, 0.001)

	out, err = run(t, "history", "list")
	require.NoError(t, err)
	var list struct {
		Items []history.HistoryItem `json:"items"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, got.HistoryID, list.Items[0].ID)
	assert.NotEmpty(t, list.Items[0].ImageURI)
	assert.Equal(t, analyses.ModeFallback, list.Items[0].Analysis.Mode)

	_, err = run(t, "analyze", img, "--no-save")
	require.NoError(t, err)
	out, err = run(t, "history", "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Count)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	dir := setupEnv(t, "memory")
	img := writeImage(t, dir)

	_, err := run(t, "analyze", img, "--lat", "95", "--lng", "10")
	assert.ErrorContains(t, err, "latitude is invalid")

	_, err = run(t, "analyze", img, "--lat", "NaN", "--lng", "10")
	assert.ErrorContains(t, err, "latitude is invalid")

	_, err = run(t, "analyze", img, "--lat", "10")
	assert.Error(t, err)

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("just some text"), 0o644))
	_, err = run(t, "analyze", text)
	assert.ErrorContains(t, err, "store image")

	_, err = run(t, "analyze", filepath.Join(dir, "missing.jpg"))
	assert.ErrorContains(t, err, "open image")
}

func TestIdentifyCommand(t *testing.T) {
	dir := setupEnv(t, "memory")
	out, err := run(t, "identify", writeImage(t, dir))
	require.NoError(t, err)

	var got struct {
		Identification analyses.PlantIdentification `json:"identification"`
		ImageURI       string                       `json:"imageUri"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Planta não identificada", got.Identification.Name)
	assert.Zero(t, got.Identification.Confidence)
	assert.NotEmpty(t, got.ImageURI)
}

func TestHistoryCommands(t *testing.T) {
	dir := setupEnv(t, "file")

	export := `[
  {"id":"analysis_1717236000000_bbbbbbbbb","timestamp":"2025-06-01T10:00:00Z","imageUri":"file:///b.jpg",
   "analysis":{"timestamp":"2025-06-01T10:00:00Z","identification":{"name":"Milho","confidence":90,"commonNames":["Milho"]},
   "health":{"status":"healthy","score":92,"healthScore":92,"isHealthy":true,"diseases":[],"recommendations":[]},
   "treatment":{"immediate":[],"shortTerm":[],"longTerm":[]},"suggestions":[]}},
  {"id":"analysis_1717149600000_aaaaaaaaa","timestamp":"2025-05-31T10:00:00Z","imageUri":"file:///a.jpg",
   "analysis":{"timestamp":"2025-05-31T10:00:00Z","identification":{"name":"Tomate","confidence":80,"commonNames":["Tomate"]},
   "health":{"status":"critical","score":30,"healthScore":30,"isHealthy":false,"diseases":[],"recommendations":[]},
   "treatment":{"immediate":[],"shortTerm":[],"longTerm":[]},"suggestions":[]}}
]`
	historyPath := filepath.Join(dir, "history.json")
	favoritesPath := filepath.Join(dir, "favorites.json")
	require.NoError(t, os.WriteFile(historyPath, []byte(export), 0o644))
	require.NoError(t, os.WriteFile(favoritesPath, []byte(`["analysis_1717149600000_aaaaaaaaa"]`), 0o644))

	out, err := run(t, "history", "import", "--history", historyPath, "--favorites", favoritesPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported":2}`, out)

	out, err = run(t, "history", "list", "--favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "analysis_1717149600000_aaaaaaaaa")
	assert.NotContains(t, out, "analysis_1717236000000_bbbbbbbbb")

	out, err = run(t, "history", "list", "--healthy")
	require.NoError(t, err)
	assert.Contains(t, out, "Milho")
	assert.NotContains(t, out, "Tomate")

	out, err = run(t, "history", "show", "analysis_1717149600000_aaaaaaaaa")
	require.NoError(t, err)
	assert.Contains(t, out, `"favorite": true`)

	out, err = run(t, "history", "favorite", "analysis_1717149600000_aaaaaaaaa")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"analysis_1717149600000_aaaaaaaaa","favorite":false}`, out)

	out, err = run(t, "history", "stats")
	require.NoError(t, err)
	var stats struct {
		Stats history.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Stats.Total)
	assert.Equal(t, 1, stats.Stats.Healthy)
	assert.Equal(t, []history.MonthCount{{Month: "2025-06", Count: 1}, {Month: "2025-05", Count: 1}}, stats.Stats.ByMonth)

	out, err = run(t, "history", "delete", "analysis_1717236000000_bbbbbbbbb")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"analysis_1717236000000_bbbbbbbbb","deleted":true}`, out)

	_, err = run(t, "history", "delete", "analysis_1717236000000_bbbbbbbbb")
	assert.ErrorContains(t, err, "not found")
	_, err = run(t, "history", "show", "nope")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "history", "clear")
	assert.ErrorContains(t, err, "--yes")
	out, err = run(t, "history", "clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "history cleared\n", out)

	out, err = run(t, "history", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"count":0}`, out)
}

func TestMigrateCommand(t *testing.T) {
	setupEnv(t, "sqlite")
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite history database at version 2\n", out)

	setupEnv(t, "memory")
	_, err = run(t, "migrate")
	assert.ErrorContains(t, err, "no database")
}
