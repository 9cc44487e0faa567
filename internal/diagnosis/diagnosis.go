// Package diagnosis defines the plant-health diagnosis contract shared by the
// Kindwise client and the offline simulator.
package diagnosis

import (
	"context"
	"strings"

	"plantdoc/internal/shared/apiclient"
)

// HealthyThreshold is the lowest health score considered healthy.
const HealthyThreshold = 80

// PlaceholderAPIKey is the value shipped in sample configs.
const PlaceholderAPIKey = "SUA_API_KEY_AQUI"

type DiseaseType string

const (
	TypeFungal        DiseaseType = "fungal"
	TypeBacterial     DiseaseType = "bacterial"
	TypeViral         DiseaseType = "viral"
	TypePest          DiseaseType = "pest"
	TypeDeficiency    DiseaseType = "deficiency"
	TypeEnvironmental DiseaseType = "environmental"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DiseaseDiagnosis is one disease or pest candidate, normalized across providers.
type DiseaseDiagnosis struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Probability    int         `json:"probability"`
	ScientificName string      `json:"scientificName,omitempty"`
	Type           DiseaseType `json:"type"`
	Description    string      `json:"description,omitempty"`
	Treatment      []string    `json:"treatment"`
	Prevention     []string    `json:"prevention"`
	Severity       Severity    `json:"severity"`
	AffectedParts  []string    `json:"affectedParts"`
}

// HealthResponse is the normalized diagnosis result.
type HealthResponse struct {
	IsHealthy           bool               `json:"isHealthy"`
	HealthScore         int                `json:"healthScore"`
	PlantName           string             `json:"plantName,omitempty"`
	PlantScientificName string             `json:"plantScientificName,omitempty"`
	Diseases            []DiseaseDiagnosis `json:"diseases"`
	Suggestions         []string           `json:"suggestions"`
	Confidence          float64            `json:"confidence"`
	Timestamp           string             `json:"timestamp"`
}

// Client diagnoses plant health from a photo. speciesHint is the scientific
// name from identification and may be empty.
type Client interface {
	Diagnose(ctx context.Context, img apiclient.Image, speciesHint string) (HealthResponse, error)
}

// CanUseRealAPI reports whether key looks like a usable provider credential.
func CanUseRealAPI(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

// DefaultSuggestions returns the generic care advice for a health state.
func DefaultSuggestions(healthy bool) []string {
	if healthy {
		return []string{
			"Continue com as boas práticas de cultivo",
			"Monitore regularmente para detecção precoce",
			"Mantenha condições adequadas de irrigação e nutrição",
		}
	}
	return []string{
		"Isole plantas doentes para evitar contaminação",
		"Aplique tratamentos recomendados",
		"Consulte um agrônomo para diagnóstico preciso",
	}
}
