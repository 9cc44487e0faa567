package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantdoc/internal/analyses"
	"plantdoc/internal/shared/storage/db"
)

func sampleItem(id, name string, healthy bool, ts string) HistoryItem {
	score := 40
	status := analyses.StatusCritical
	if healthy {
		score = 90
		status = analyses.StatusHealthy
	}
	return HistoryItem{
		ID:        id,
		Timestamp: ts,
		ImageURI:  "ns/" + id + ".jpg",
		Analysis: analyses.CompleteAnalysis{
			ID:        id,
			Timestamp: ts,
			Identification: analyses.PlantIdentification{
				Name:        name,
				Confidence:  80,
				CommonNames: []string{name},
			},
			Health: analyses.HealthAssessment{
				Status:      status,
				Score:       score,
				HealthScore: score,
				IsHealthy:   healthy,
			},
		},
		SchemaVersion: SchemaVersion,
	}
}

func newSQLiteRepo(t *testing.T) *SQLRepo {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Connect(ctx, db.DialectSQLite, filepath.Join(t.TempDir(), "history.db"), db.DefaultServerOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.RunMigrations(ctx, conn, db.DialectSQLite))
	return &SQLRepo{DB: conn, Dialect: db.DialectSQLite}
}

func repoFactories() map[string]func(t *testing.T) Repo {
	return map[string]func(t *testing.T) Repo{
		"memory": func(t *testing.T) Repo { return NewMemoryRepo() },
		"file": func(t *testing.T) Repo {
			r, err := NewFileRepo(filepath.Join(t.TempDir(), "history"))
			require.NoError(t, err)
			return r
		},
		"sqlite": func(t *testing.T) Repo { return newSQLiteRepo(t) },
	}
}

func TestRepoContract(t *testing.T) {
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			items, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, items)

			first := sampleItem("analysis_1_aaaaaaaaa", "Milho", true, "2025-05-01T10:00:00Z")
			second := sampleItem("analysis_2_bbbbbbbbb", "Tomate", false, "2025-05-02T10:00:00Z")
			require.NoError(t, repo.Insert(ctx, first))
			require.NoError(t, repo.Insert(ctx, second))

			items, err = repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, second.ID, items[0].ID, "newest insert first")
			if diff := cmp.Diff(first, items[1]); diff != "" {
				t.Fatalf("round trip (-want +got):\n%s", diff)
			}

			got, err := repo.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "Milho", got.Analysis.Identification.Name)
			_, err = repo.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			on, err := repo.ToggleFavorite(ctx, first.ID)
			require.NoError(t, err)
			assert.True(t, on)
			on, err = repo.ToggleFavorite(ctx, second.ID)
			require.NoError(t, err)
			assert.True(t, on)
			ids, err := repo.FavoriteIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{first.ID, second.ID}, ids)

			on, err = repo.ToggleFavorite(ctx, second.ID)
			require.NoError(t, err)
			assert.False(t, on)
			fav, err := repo.IsFavorite(ctx, second.ID)
			require.NoError(t, err)
			assert.False(t, fav)

			require.NoError(t, repo.Delete(ctx, first.ID))
			fav, err = repo.IsFavorite(ctx, first.ID)
			require.NoError(t, err)
			assert.False(t, fav, "delete cascades to favorites")
			_, err = repo.Get(ctx, first.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, repo.Delete(ctx, "missing"))

			_, err = repo.ToggleFavorite(ctx, second.ID)
			require.NoError(t, err)
			require.NoError(t, repo.Clear(ctx))
			items, err = repo.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, items)
			ids, err = repo.FavoriteIDs(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestRepoHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, factory := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := factory(t)
			assert.Error(t, repo.Insert(ctx, sampleItem("analysis_1_aaaaaaaaa", "Milho", true, "2025-05-01T10:00:00Z")))
			_, err := repo.List(ctx)
			assert.Error(t, err)
		})
	}
}

func TestFileRepoLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileRepo(dir)
	require.NoError(t, err)

	require.NoError(t, repo.Insert(ctx, sampleItem("analysis_1_aaaaaaaaa", "Milho", true, "2025-05-01T10:00:00Z")))
	_, err = repo.ToggleFavorite(ctx, "analysis_1_aaaaaaaaa")
	require.NoError(t, err)

	var raw []map[string]any
	data, err := os.ReadFile(filepath.Join(dir, historyFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "analysis_1_aaaaaaaaa", raw[0]["id"])
	assert.Contains(t, raw[0], "imageUri")

	data, err = os.ReadFile(filepath.Join(dir, favoritesFile))
	require.NoError(t, err)
	assert.JSONEq(t, `["analysis_1_aaaaaaaaa"]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestFileRepoCorruptFilesReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, favoritesFile), []byte(`{"a":1}`), 0o644))

	repo, err := NewFileRepo(dir)
	require.NoError(t, err)

	items, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	ids, err := repo.FavoriteIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.Insert(ctx, sampleItem("analysis_1_aaaaaaaaa", "Milho", true, "2025-05-01T10:00:00Z")))
	items, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFileRepoDeleteKeepsItemWhenFavoritesWriteFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileRepo(dir)
	require.NoError(t, err)

	const id = "analysis_1_aaaaaaaaa"
	require.NoError(t, repo.Insert(ctx, sampleItem(id, "Milho", true, "2025-05-01T10:00:00Z")))
	_, err = repo.ToggleFavorite(ctx, id)
	require.NoError(t, err)

	prev := renameFile
	t.Cleanup(func() { renameFile = prev })
	renameFile = func(oldpath, newpath string) error {
		if filepath.Base(newpath) == favoritesFile {
			return errors.New("disk full")
		}
		return prev(oldpath, newpath)
	}

	require.Error(t, repo.Delete(ctx, id))

	renameFile = prev
	_, err = repo.Get(ctx, id)
	require.NoError(t, err, "item survives a failed cascade")
	on, err := repo.IsFavorite(ctx, id)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	ids, err := repo.FavoriteIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
