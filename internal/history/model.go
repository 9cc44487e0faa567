package history

import "plantdoc/internal/analyses"

// SchemaVersion is stamped on every stored item. Items imported from the
// legacy export carry no version and are upgraded on read. Version 2 records
// the analysis mode.
const SchemaVersion = 2

// HistoryItem is one saved analysis.
type HistoryItem struct {
	ID            string                    `json:"id"`
	Timestamp     string                    `json:"timestamp"`
	ImageURI      string                    `json:"imageUri"`
	Analysis      analyses.CompleteAnalysis `json:"analysis"`
	Location      *analyses.Location        `json:"location,omitempty"`
	SchemaVersion int                       `json:"schemaVersion,omitempty"`
}

// MonthCount is the number of analyses recorded in a "YYYY-MM" month.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Stats summarizes the history. Simulated counts analyses whose result was
// not fully live.
type Stats struct {
	Total        int          `json:"total"`
	Healthy      int          `json:"healthy"`
	Unhealthy    int          `json:"unhealthy"`
	Simulated    int          `json:"simulated"`
	LastAnalysis *HistoryItem `json:"lastAnalysis"`
	ByMonth      []MonthCount `json:"byMonth"`
}

// upgrade brings an item to the current schema.
func upgrade(item HistoryItem) HistoryItem {
	if item.SchemaVersion >= SchemaVersion {
		return item
	}
	h := &item.Analysis.Health
	if h.Score == 0 && h.HealthScore != 0 {
		h.Score = h.HealthScore
	}
	if h.HealthScore == 0 && h.Score != 0 {
		h.HealthScore = h.Score
	}
	if item.Analysis.ID == "" {
		item.Analysis.ID = item.ID
	}
	if item.Analysis.Mode == "" {
		item.Analysis.Mode = analyses.ModeUnknown
	}
	item.SchemaVersion = SchemaVersion
	return item
}
