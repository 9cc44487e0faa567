package history

import "context"

// Repo persists history items and the favorites set. Every method is atomic
// with respect to the others on the same Repo.
type Repo interface {
	// Insert stores item as the newest entry.
	Insert(ctx context.Context, item HistoryItem) error
	// List returns all items, most recently inserted first.
	List(ctx context.Context) ([]HistoryItem, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (HistoryItem, error)
	// Delete removes the item and its favorite mark. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
	// ToggleFavorite flips the favorite mark and reports the new state.
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	IsFavorite(ctx context.Context, id string) (bool, error)
	// FavoriteIDs returns favorite ids in the order they were marked.
	FavoriteIDs(ctx context.Context) ([]string, error)
	// Clear removes every item and favorite.
	Clear(ctx context.Context) error
}
