package history

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu        sync.RWMutex
	items     []HistoryItem // newest first
	favorites []string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Insert(ctx context.Context, item HistoryItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]HistoryItem{item}, r.items...)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]HistoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HistoryItem, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (HistoryItem, error) {
	if err := ctx.Err(); err != nil {
		return HistoryItem{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if item.ID == id {
			return item, nil
		}
	}
	return HistoryItem{}, ErrNotFound
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = slices.DeleteFunc(r.items, func(item HistoryItem) bool { return item.ID == id })
	r.favorites = slices.DeleteFunc(r.favorites, func(fav string) bool { return fav == id })
	return nil
}

func (r *MemoryRepo) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.favorites, id); i >= 0 {
		r.favorites = slices.Delete(r.favorites, i, i+1)
		return false, nil
	}
	r.favorites = append(r.favorites, id)
	return true, nil
}

func (r *MemoryRepo) IsFavorite(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.favorites, id), nil
}

func (r *MemoryRepo) FavoriteIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.favorites), nil
}

func (r *MemoryRepo) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	r.favorites = nil
	return nil
}
