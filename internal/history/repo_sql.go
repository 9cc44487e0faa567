package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"plantdoc/internal/shared/storage/db"
)

// SQLRepo implements Repo on SQLite or Postgres. Items are stored as JSON
// payloads ordered by an insertion sequence.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// Insert stores a new history item.
func (r *SQLRepo) Insert(ctx context.Context, item HistoryItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode history item: %w", err)
	}
	const query = `
INSERT INTO history_items (
    id,
    recorded_at,
    image_uri,
    is_healthy,
    schema_version,
    payload
) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.DB.ExecContext(ctx, r.bind(query),
		item.ID,
		item.Timestamp,
		item.ImageURI,
		item.Analysis.Health.IsHealthy,
		item.SchemaVersion,
		string(payload),
	)
	return err
}

// List returns items, most recently inserted first.
func (r *SQLRepo) List(ctx context.Context) ([]HistoryItem, error) {
	const query = `SELECT payload FROM history_items ORDER BY seq DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []HistoryItem{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		item, err := decodeItem(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Get fetches one item by id.
func (r *SQLRepo) Get(ctx context.Context, id string) (HistoryItem, error) {
	const query = `SELECT payload FROM history_items WHERE id = ?`
	var payload string
	if err := r.DB.QueryRowContext(ctx, r.bind(query), id).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HistoryItem{}, ErrNotFound
		}
		return HistoryItem{}, err
	}
	return decodeItem(payload)
}

// Delete removes the item and its favorite mark in one transaction.
func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.bind(`DELETE FROM history_favorites WHERE item_id = ?`), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.bind(`DELETE FROM history_items WHERE id = ?`), id)
		return err
	})
}

// ToggleFavorite removes the mark when present and adds it otherwise.
func (r *SQLRepo) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var on bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.bind(`DELETE FROM history_favorites WHERE item_id = ?`), id)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if removed > 0 {
			on = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, r.bind(`INSERT INTO history_favorites (item_id) VALUES (?)`), id); err != nil {
			return err
		}
		on = true
		return nil
	})
	return on, err
}

// IsFavorite reports whether id is marked.
func (r *SQLRepo) IsFavorite(ctx context.Context, id string) (bool, error) {
	const query = `SELECT COUNT(1) FROM history_favorites WHERE item_id = ?`
	var n int
	if err := r.DB.QueryRowContext(ctx, r.bind(query), id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// FavoriteIDs returns marked ids in marking order.
func (r *SQLRepo) FavoriteIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT item_id FROM history_favorites ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes all items and favorites.
func (r *SQLRepo) Clear(ctx context.Context) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history_favorites`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM history_items`)
		return err
	})
}

func (r *SQLRepo) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// bind rewrites ? placeholders to $n for Postgres.
func (r *SQLRepo) bind(query string) string {
	if r.Dialect != db.DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func decodeItem(payload string) (HistoryItem, error) {
	var item HistoryItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return HistoryItem{}, fmt.Errorf("decode history item: %w", err)
	}
	return item, nil
}
