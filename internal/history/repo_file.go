package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"plantdoc/internal/shared/telemetry"
)

const (
	historyFile   = "history.json"
	favoritesFile = "favorites.json"
)

var renameFile = os.Rename

// FileRepo keeps the history as two JSON documents in a directory: an array
// of items (newest first) and an array of favorite ids. Missing or corrupt
// files read as empty. Writes replace files atomically.
type FileRepo struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepo creates dir if needed and returns a FileRepo rooted there.
func NewFileRepo(dir string) (*FileRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileRepo{dir: dir}, nil
}

func (r *FileRepo) Insert(ctx context.Context, item HistoryItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.readItems()
	if err != nil {
		return err
	}
	return r.write(historyFile, append([]HistoryItem{item}, items...))
}

func (r *FileRepo) List(ctx context.Context) ([]HistoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readItems()
}

func (r *FileRepo) Get(ctx context.Context, id string) (HistoryItem, error) {
	items, err := r.List(ctx)
	if err != nil {
		return HistoryItem{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return HistoryItem{}, ErrNotFound
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.readItems()
	if err != nil {
		return err
	}
	favs, err := r.readFavorites()
	if err != nil {
		return err
	}
	// Favorites go first: a failure between the two writes leaves an
	// unmarked item, never a favorite pointing at a deleted item.
	if err := r.write(favoritesFile, slices.DeleteFunc(favs, func(fav string) bool { return fav == id })); err != nil {
		return err
	}
	return r.write(historyFile, slices.DeleteFunc(items, func(item HistoryItem) bool { return item.ID == id }))
}

func (r *FileRepo) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	favs, err := r.readFavorites()
	if err != nil {
		return false, err
	}
	on := true
	if i := slices.Index(favs, id); i >= 0 {
		favs = slices.Delete(favs, i, i+1)
		on = false
	} else {
		favs = append(favs, id)
	}
	if err := r.write(favoritesFile, favs); err != nil {
		return false, err
	}
	return on, nil
}

func (r *FileRepo) IsFavorite(ctx context.Context, id string) (bool, error) {
	favs, err := r.FavoriteIDs(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(favs, id), nil
}

func (r *FileRepo) FavoriteIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readFavorites()
}

func (r *FileRepo) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range []string{historyFile, favoritesFile} {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (r *FileRepo) readItems() ([]HistoryItem, error) {
	var items []HistoryItem
	ok, err := r.read(historyFile, &items)
	if err != nil {
		return nil, err
	}
	if !ok || items == nil {
		return []HistoryItem{}, nil
	}
	return items, nil
}

func (r *FileRepo) readFavorites() ([]string, error) {
	var favs []string
	ok, err := r.read(favoritesFile, &favs)
	if err != nil {
		return nil, err
	}
	if !ok || favs == nil {
		return []string{}, nil
	}
	return favs, nil
}

// read decodes name into v and reports whether v holds usable data. Missing,
// empty and undecodable files report false without an error.
func (r *FileRepo) read(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		telemetry.Warn("history.file.corrupt", map[string]any{
			"file":  name,
			"error": err,
		})
		return false, nil
	}
	return true, nil
}

func (r *FileRepo) write(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(r.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := renameFile(tmpName, filepath.Join(r.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
