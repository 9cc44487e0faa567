package kindwise

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"plantdoc/internal/diagnosis"
	"plantdoc/internal/shared/apiclient"
)

const (
	defaultConfidence   = 0.7
	healthyDefaultScore = 85
	sickDefaultScore    = 40
	flatHealthyCutoff   = 70
)

// textList decodes either a JSON string or an array of strings.
type textList []string

func (l *textList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) != "" {
			*l = textList{s}
		}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			var s string
			if json.Unmarshal(r, &s) == nil {
				items = append(items, s)
			}
		}
		*l = items
	}
	// Other shapes carry no usable text.
	return nil
}

func (l textList) first() string {
	for _, s := range l {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// severityValue keeps a severity given either as a label or a 0..1 number.
type severityValue struct {
	label string
	prob  *float64
}

func (s *severityValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch {
	case b[0] == '"':
		return json.Unmarshal(b, &s.label)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		s.prob = &f
	}
	// Other shapes leave severity to be derived from the probability.
	return nil
}

type diseasePayload struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	CommonName       string         `json:"common_name"`
	ScientificName   string         `json:"scientific_name"`
	Probability      *float64       `json:"probability"`
	Confidence       *float64       `json:"confidence"`
	Type             string         `json:"type"`
	Category         string         `json:"category"`
	Description      string         `json:"description"`
	Symptoms         textList       `json:"symptoms"`
	TreatmentAdvice  textList       `json:"treatment_advice"`
	PreventionAdvice textList       `json:"prevention_advice"`
	Severity         severityValue  `json:"severity"`
	AffectedParts    []string       `json:"affected_parts"`
	Details          *detailPayload `json:"details"`
}

type detailPayload struct {
	CommonNames []string `json:"common_names"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Treatment   struct {
		Biological textList `json:"biological"`
		Chemical   textList `json:"chemical"`
		Prevention textList `json:"prevention"`
	} `json:"treatment"`
}

type probabilityPayload struct {
	Binary      *bool    `json:"binary"`
	Probability *float64 `json:"probability"`
}

type healthPayload struct {
	// flat legacy shape
	IsHealthy   *bool            `json:"is_healthy"`
	HealthScore *float64         `json:"health_score"`
	PlantName   string           `json:"plant_name"`
	Diseases    []diseasePayload `json:"diseases"`
	Suggestions []string         `json:"suggestions"`
	Confidence  *float64         `json:"confidence"`

	// nested crop.health shape
	Result *struct {
		IsHealthy *probabilityPayload `json:"is_healthy"`
		IsPlant   *probabilityPayload `json:"is_plant"`
		Crop      *struct {
			Suggestions []struct {
				Name        string   `json:"name"`
				Probability *float64 `json:"probability"`
				Details     *struct {
					CommonNames []string `json:"common_names"`
				} `json:"details"`
			} `json:"suggestions"`
		} `json:"crop"`
		Disease *struct {
			Suggestions []diseasePayload `json:"suggestions"`
		} `json:"disease"`
	} `json:"result"`
}

// normalize converts either provider payload shape into a HealthResponse.
func normalize(raw []byte, speciesHint string, now time.Time) (diagnosis.HealthResponse, error) {
	var p healthPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return diagnosis.HealthResponse{}, &apiclient.APIError{Provider: providerName, Kind: apiclient.ErrBadResponse, Err: err}
	}

	src := p.Diseases
	if p.Result != nil && p.Result.Disease != nil && len(src) == 0 {
		src = p.Result.Disease.Suggestions
	}
	diseases := make([]diagnosis.DiseaseDiagnosis, 0, len(src))
	for _, d := range src {
		diseases = append(diseases, normalizeDisease(d))
	}

	healthy, score := healthOf(p, len(diseases))

	resp := diagnosis.HealthResponse{
		IsHealthy:           healthy,
		HealthScore:         score,
		PlantName:           plantNameOf(p, speciesHint),
		PlantScientificName: speciesHint,
		Diseases:            diseases,
		Suggestions:         p.Suggestions,
		Confidence:          confidenceOf(p),
		Timestamp:           now.UTC().Format(time.RFC3339),
	}
	if len(resp.Suggestions) == 0 {
		resp.Suggestions = diagnosis.DefaultSuggestions(healthy)
	}
	return resp, nil
}

func healthOf(p healthPayload, diseaseCount int) (bool, int) {
	if p.Result != nil && p.Result.IsHealthy != nil {
		h := p.Result.IsHealthy
		healthy := false
		switch {
		case h.Binary != nil:
			healthy = *h.Binary
		case h.Probability != nil:
			healthy = *h.Probability >= 0.5
		}
		if h.Probability != nil {
			return healthy, percent(*h.Probability)
		}
		return healthy, defaultScore(healthy)
	}

	healthy := (p.IsHealthy != nil && *p.IsHealthy) ||
		diseaseCount == 0 ||
		(p.HealthScore != nil && *p.HealthScore > flatHealthyCutoff)
	if p.HealthScore != nil && *p.HealthScore != 0 {
		return healthy, clamp(int(math.Round(*p.HealthScore)))
	}
	return healthy, defaultScore(healthy)
}

func plantNameOf(p healthPayload, hint string) string {
	if p.PlantName != "" {
		return p.PlantName
	}
	if p.Result != nil && p.Result.Crop != nil && len(p.Result.Crop.Suggestions) > 0 {
		top := p.Result.Crop.Suggestions[0]
		if top.Details != nil && len(top.Details.CommonNames) > 0 {
			return top.Details.CommonNames[0]
		}
		if top.Name != "" {
			return top.Name
		}
	}
	return hint
}

func confidenceOf(p healthPayload) float64 {
	if p.Confidence != nil && *p.Confidence != 0 {
		return *p.Confidence
	}
	if p.Result != nil && p.Result.Crop != nil && len(p.Result.Crop.Suggestions) > 0 {
		if c := p.Result.Crop.Suggestions[0].Probability; c != nil && *c != 0 {
			return *c
		}
	}
	return defaultConfidence
}

func normalizeDisease(d diseasePayload) diagnosis.DiseaseDiagnosis {
	var details detailPayload
	if d.Details != nil {
		details = *d.Details
	}

	prob := 0.0
	switch {
	case d.Probability != nil:
		prob = *d.Probability
	case d.Confidence != nil:
		prob = *d.Confidence
	}

	name := firstNonEmpty(d.CommonName, firstOf(details.CommonNames), d.Name, d.ScientificName)
	if name == "" {
		name = "Doença não identificada"
	}
	scientific := d.ScientificName
	if scientific == "" && d.Name != name {
		scientific = d.Name
	}

	treatment := []string(d.TreatmentAdvice)
	if len(treatment) == 0 {
		treatment = append(append([]string{}, details.Treatment.Biological...), details.Treatment.Chemical...)
	}
	if len(treatment) == 0 {
		treatment = []string{"Consultar agrônomo"}
	}
	prevention := []string(d.PreventionAdvice)
	if len(prevention) == 0 {
		prevention = details.Treatment.Prevention
	}
	if len(prevention) == 0 {
		prevention = []string{"Boas práticas agrícolas"}
	}

	var severity diagnosis.Severity
	switch {
	case d.Severity.label != "":
		severity = diagnosis.SeverityFromLabel(d.Severity.label)
	case details.Severity != "":
		severity = diagnosis.SeverityFromLabel(details.Severity)
	case d.Severity.prob != nil:
		severity = diagnosis.SeverityFromProbability(*d.Severity.prob)
	default:
		severity = diagnosis.SeverityFromProbability(prob)
	}

	parts := d.AffectedParts
	if len(parts) == 0 {
		parts = []string{"leaf"}
	}

	category := firstNonEmpty(d.Type, d.Category, details.Type)
	if category == "" {
		category = name
	}

	id := d.ID
	if id == "" {
		id = "disease_" + uuid.NewString()
	}

	return diagnosis.DiseaseDiagnosis{
		ID:             id,
		Name:           name,
		Probability:    percent(prob),
		ScientificName: scientific,
		Type:           diagnosis.ClassifyType(category),
		Description:    firstNonEmpty(d.Description, details.Description, d.Symptoms.first()),
		Treatment:      treatment,
		Prevention:     prevention,
		Severity:       severity,
		AffectedParts:  parts,
	}
}

func defaultScore(healthy bool) int {
	if healthy {
		return healthyDefaultScore
	}
	return sickDefaultScore
}

func percent(p float64) int {
	return clamp(int(math.Round(p * 100)))
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
