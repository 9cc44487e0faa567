package analyses

import (
	"errors"
	"math"

	"plantdoc/internal/diagnosis"
	"plantdoc/internal/treatments"
)

// HealthStatus is the coarse health bucket derived from the score.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
)

// Score thresholds for HealthStatus.
const (
	HealthyThreshold = diagnosis.HealthyThreshold
	WarningThreshold = 50
)

// StatusForScore maps a 0..100 score to a HealthStatus.
func StatusForScore(score int) HealthStatus {
	switch {
	case score >= HealthyThreshold:
		return StatusHealthy
	case score >= WarningThreshold:
		return StatusWarning
	default:
		return StatusCritical
	}
}

type PlantIdentification struct {
	Name           string   `json:"name"`
	Confidence     int      `json:"confidence"`
	ScientificName string   `json:"scientificName,omitempty"`
	Description    string   `json:"description,omitempty"`
	CommonNames    []string `json:"commonNames"`
}

type DiseaseInfo struct {
	Name        string               `json:"name"`
	Probability int                  `json:"probability"`
	Severity    diagnosis.Severity   `json:"severity"`
	Description string               `json:"description"`
	Treatment   treatments.Treatment `json:"treatment"`
	Symptoms    []string             `json:"symptoms"`
}

// HealthAssessment carries both score and healthScore; the latter is kept
// for clients written against older payloads.
type HealthAssessment struct {
	Status          HealthStatus  `json:"status"`
	Score           int           `json:"score"`
	HealthScore     int           `json:"healthScore"`
	IsHealthy       bool          `json:"isHealthy"`
	Diseases        []DiseaseInfo `json:"diseases"`
	Recommendations []string      `json:"recommendations"`
}

type ProductType string

const (
	ProductOrganic  ProductType = "organic"
	ProductChemical ProductType = "chemical"
)

type Product struct {
	Name   string      `json:"name"`
	Type   ProductType `json:"type"`
	Dosage string      `json:"dosage"`
}

// Treatment is the overall care plan for the analysed plant.
type Treatment struct {
	Immediate []string  `json:"immediate"`
	ShortTerm []string  `json:"shortTerm"`
	LongTerm  []string  `json:"longTerm"`
	Products  []Product `json:"products,omitempty"`
}

type Suggestion struct {
	Name           string                `json:"name"`
	Probability    int                   `json:"probability"`
	ScientificName string                `json:"scientificName,omitempty"`
	Description    string                `json:"description,omitempty"`
	IsPest         bool                  `json:"isPest"`
	Treatment      *treatments.Treatment `json:"treatment,omitempty"`
	Symptoms       []string              `json:"symptoms,omitempty"`
}

type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Validate checks that coordinates are finite and in range and that accuracy
// is finite and non-negative.
func (l Location) Validate() error {
	if !finite(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return errors.New("latitude is invalid")
	}
	if !finite(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return errors.New("longitude is invalid")
	}
	if l.Accuracy != nil && (!finite(*l.Accuracy) || *l.Accuracy < 0) {
		return errors.New("accuracy is invalid")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CompleteAnalysis is the merged result of one analysis run. ID is empty
// until the analysis is saved to history.
type CompleteAnalysis struct {
	ID             string              `json:"id,omitempty"`
	Timestamp      string              `json:"timestamp"`
	Identification PlantIdentification `json:"identification"`
	Health         HealthAssessment    `json:"health"`
	Treatment      Treatment           `json:"treatment"`
	Suggestions    []Suggestion        `json:"suggestions"`
	Location       *Location           `json:"location,omitempty"`
	ImageURI       string              `json:"imageUri,omitempty"`
	Mode           Mode                `json:"mode,omitempty"`
}
