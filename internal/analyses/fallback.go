package analyses

import (
	"context"
	"time"

	"plantdoc/internal/diagnosis"
	"plantdoc/internal/treatments"
)

// FallbackPlantName is the identification name of the canned analysis.
const FallbackPlantName = "Tomateiro (Lycopersicon esculentum)"

// fallbackAnalysis returns the canned demo analysis.
func fallbackAnalysis(now time.Time, imageURI string, loc *Location) CompleteAnalysis {
	return CompleteAnalysis{
		Timestamp: now.UTC().Format(time.RFC3339),
		Identification: PlantIdentification{
			Name:           FallbackPlantName,
			Confidence:     88,
			ScientificName: "Solanum lycopersicum",
			Description:    "Planta frutífera da família das solanáceas",
			CommonNames:    []string{"Tomate", "Tomateiro"},
		},
		Health: HealthAssessment{
			Status:      StatusWarning,
			Score:       65,
			HealthScore: 65,
			IsHealthy:   false,
			Diseases: []DiseaseInfo{{
				Name:        "Míldio do Tomateiro",
				Probability: 78,
				Severity:    diagnosis.SeverityMedium,
				Description: "Doença fúngica que causa manchas foliares e murcha",
				Treatment: treatments.Treatment{
					Organic:    []string{"Calda bordalesa", "Extrato de alho"},
					Chemical:   []string{"Fungicida sistêmico"},
					Preventive: []string{"Boa ventilação", "Evitar molhar folhas"},
				},
				Symptoms: []string{"Manchas foliares", "Murcha das folhas"},
			}},
			Recommendations: []string{
				"Aplicar fungicida preventivo",
				"Melhorar circulação de ar",
				"Monitorar evolução",
			},
		},
		Treatment: Treatment{
			Immediate: []string{"Remover folhas afetadas"},
			ShortTerm: []string{"Aplicar fungicida"},
			LongTerm:  []string{"Melhorar drenagem"},
			Products:  []Product{{Name: "Fungicida X", Type: ProductChemical, Dosage: "10ml/L"}},
		},
		Suggestions: []Suggestion{
			{Name: "Tomateiro", Probability: 88, IsPest: false},
			{Name: "Míldio", Probability: 78, IsPest: true},
		},
		Location: loc,
		ImageURI: imageURI,
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
