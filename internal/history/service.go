package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"plantdoc/internal/analyses"
	"plantdoc/internal/shared/metrics"
	"plantdoc/internal/shared/telemetry"
)

const (
	DefaultRecentLimit = 3
	DefaultCountDays   = 30
)

// Service contains business logic for the analysis history.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Healthy       *bool
	Term          string
	FavoritesOnly bool
}

// Save stores item under a fresh id, which is also stamped into the analysis.
func (s *Service) Save(ctx context.Context, item HistoryItem) (string, error) {
	id, err := newID(s.now())
	if err != nil {
		return "", s.fail("save", err)
	}
	item.ID = id
	item.Analysis.ID = id
	item.SchemaVersion = SchemaVersion
	if item.Analysis.Mode == "" {
		item.Analysis.Mode = analyses.ModeUnknown
	}
	if item.Timestamp == "" {
		item.Timestamp = s.now().UTC().Format(time.RFC3339)
	}
	if err := s.Repo.Insert(ctx, item); err != nil {
		return "", s.fail("save", err)
	}
	telemetry.Info("history.saved", map[string]any{
		"history_id": id,
		"plant":      item.Analysis.Identification.Name,
		"mode":       string(item.Analysis.Mode),
	})
	s.refreshGauge(ctx)
	return id, nil
}

// SaveAnalysis converts a completed analysis into a history item and saves it.
func (s *Service) SaveAnalysis(ctx context.Context, analysis analyses.CompleteAnalysis, imageURI string, loc *analyses.Location) (string, error) {
	return s.Save(ctx, s.toItem(analysis, imageURI, loc))
}

func (s *Service) toItem(analysis analyses.CompleteAnalysis, imageURI string, loc *analyses.Location) HistoryItem {
	ts := analysis.Timestamp
	if ts == "" {
		ts = s.now().UTC().Format(time.RFC3339)
	}
	if loc == nil {
		loc = analysis.Location
	}
	if loc != nil {
		cp := *loc
		loc = &cp
	}
	return HistoryItem{
		Timestamp: ts,
		ImageURI:  imageURI,
		Analysis:  analysis,
		Location:  loc,
	}
}

// List returns every item, newest first.
func (s *Service) List(ctx context.Context) ([]HistoryItem, error) {
	items, err := s.Repo.List(ctx)
	if err != nil {
		return nil, s.fail("list", err)
	}
	for i := range items {
		items[i] = upgrade(items[i])
	}
	return items, nil
}

// Query returns the items matching f, newest first.
func (s *Service) Query(ctx context.Context, f Filter) ([]HistoryItem, error) {
	var (
		items []HistoryItem
		err   error
	)
	if f.FavoritesOnly {
		items, err = s.Favorites(ctx)
	} else {
		items, err = s.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(f.Term))
	return slices.DeleteFunc(items, func(item HistoryItem) bool {
		if f.Healthy != nil && item.Analysis.Health.IsHealthy != *f.Healthy {
			return true
		}
		return term != "" && !matchesPlant(item, term)
	}), nil
}

// Get returns one item or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (HistoryItem, error) {
	item, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return HistoryItem{}, ErrNotFound
		}
		return HistoryItem{}, s.fail("get", err)
	}
	return upgrade(item), nil
}

// Delete removes the item and its favorite mark. It reports true once the
// store no longer holds id, whether or not it existed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return false, s.fail("delete", err)
	}
	telemetry.Info("history.deleted", map[string]any{"history_id": id})
	s.refreshGauge(ctx)
	return true, nil
}

// ToggleFavorite flips the favorite mark and returns the new state.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	on, err := s.Repo.ToggleFavorite(ctx, id)
	if err != nil {
		return false, s.fail("toggle_favorite", err)
	}
	return on, nil
}

func (s *Service) IsFavorite(ctx context.Context, id string) (bool, error) {
	on, err := s.Repo.IsFavorite(ctx, id)
	if err != nil {
		return false, s.fail("is_favorite", err)
	}
	return on, nil
}

// Favorites returns favorited items in history order.
func (s *Service) Favorites(ctx context.Context) ([]HistoryItem, error) {
	ids, err := s.Repo.FavoriteIDs(ctx)
	if err != nil {
		return nil, s.fail("favorites", err)
	}
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(items, func(item HistoryItem) bool {
		return !slices.Contains(ids, item.ID)
	}), nil
}

// Stats summarizes the history. LastAnalysis is the most recently saved item
// and ByMonth is ordered newest month first.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	items, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	metrics.SetHistoryItems(len(items))

	st := Stats{Total: len(items), ByMonth: []MonthCount{}}
	counts := map[string]int{}
	for _, item := range items {
		if item.Analysis.Health.IsHealthy {
			st.Healthy++
		} else {
			st.Unhealthy++
		}
		switch item.Analysis.Mode {
		case analyses.ModeFallback, analyses.ModeSimulatedDiagnosis:
			st.Simulated++
		}
		if ts, ok := parseTimestamp(item.Timestamp); ok {
			counts[ts.UTC().Format("2006-01")]++
		}
	}
	if len(items) > 0 {
		last := items[0]
		st.LastAnalysis = &last
	}
	for month, n := range counts {
		st.ByMonth = append(st.ByMonth, MonthCount{Month: month, Count: n})
	}
	sort.Slice(st.ByMonth, func(i, j int) bool { return st.ByMonth[i].Month > st.ByMonth[j].Month })
	return st, nil
}

// Clear removes all items and favorites.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.Repo.Clear(ctx); err != nil {
		return s.fail("clear", err)
	}
	telemetry.Info("history.cleared", nil)
	metrics.SetHistoryItems(0)
	return nil
}

// Recent returns up to limit items ordered by timestamp, newest first.
// A non-positive limit means DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		ti, _ := parseTimestamp(items[i].Timestamp)
		tj, _ := parseTimestamp(items[j].Timestamp)
		return ti.After(tj)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ByHealthStatus returns items whose assessment matches healthy.
func (s *Service) ByHealthStatus(ctx context.Context, healthy bool) ([]HistoryItem, error) {
	return s.Query(ctx, Filter{Healthy: &healthy})
}

// SearchByPlantName matches term case-insensitively against the first common
// name, the scientific name and the display name.
func (s *Service) SearchByPlantName(ctx context.Context, term string) ([]HistoryItem, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(term)
	return slices.DeleteFunc(items, func(item HistoryItem) bool {
		return !matchesPlant(item, lower)
	}), nil
}

// CountSince counts items recorded within the last days days. A non-positive
// value means DefaultCountDays.
func (s *Service) CountSince(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = DefaultCountDays
	}
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().AddDate(0, 0, -days)
	n := 0
	for _, item := range items {
		if ts, ok := parseTimestamp(item.Timestamp); ok && !ts.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// ImportLegacy ingests a history export: historyJSON is the newest-first item
// array and favoritesJSON the favorite id array. Either may be empty. Items
// whose id is already stored are skipped. It returns the number of items added.
func (s *Service) ImportLegacy(ctx context.Context, historyJSON, favoritesJSON []byte) (int, error) {
	var items []HistoryItem
	if len(strings.TrimSpace(string(historyJSON))) > 0 {
		if err := json.Unmarshal(historyJSON, &items); err != nil {
			return 0, fmt.Errorf("%w: history export: %v", ErrInvalidInput, err)
		}
	}
	var favs []string
	if len(strings.TrimSpace(string(favoritesJSON))) > 0 {
		if err := json.Unmarshal(favoritesJSON, &favs); err != nil {
			return 0, fmt.Errorf("%w: favorites export: %v", ErrInvalidInput, err)
		}
	}

	added := 0
	for i := len(items) - 1; i >= 0; i-- {
		item := upgrade(items[i])
		if item.ID == "" {
			id, err := newID(s.now())
			if err != nil {
				return added, s.fail("import", err)
			}
			item.ID = id
			item.Analysis.ID = id
		} else if _, err := s.Repo.Get(ctx, item.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return added, s.fail("import", err)
		}
		if err := s.Repo.Insert(ctx, item); err != nil {
			return added, s.fail("import", err)
		}
		added++
	}
	for _, id := range favs {
		on, err := s.Repo.IsFavorite(ctx, id)
		if err != nil {
			return added, s.fail("import", err)
		}
		if on {
			continue
		}
		if _, err := s.Repo.ToggleFavorite(ctx, id); err != nil {
			return added, s.fail("import", err)
		}
	}
	telemetry.Info("history.imported", map[string]any{
		"items":     added,
		"favorites": len(favs),
	})
	s.refreshGauge(ctx)
	return added, nil
}

func matchesPlant(item HistoryItem, lowerTerm string) bool {
	id := item.Analysis.Identification
	common := ""
	if len(id.CommonNames) > 0 {
		common = id.CommonNames[0]
	}
	for _, candidate := range []string{common, id.ScientificName, id.Name} {
		if strings.Contains(strings.ToLower(candidate), lowerTerm) {
			return true
		}
	}
	return false
}

func parseTimestamp(raw string) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (s *Service) refreshGauge(ctx context.Context) {
	items, err := s.Repo.List(ctx)
	if err != nil {
		return
	}
	metrics.SetHistoryItems(len(items))
}

func (s *Service) fail(op string, err error) error {
	telemetry.Error("history.storage_error", map[string]any{
		"op":    op,
		"error": err,
	})
	return err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
