package analyses

import (
	"strings"
	"time"

	"plantdoc/internal/diagnosis"
	"plantdoc/internal/identify"
)

func identificationFrom(info identify.PlantInfo) PlantIdentification {
	family := info.Family
	if family == "" {
		family = "Desconhecida"
	}
	commonNames := info.CommonNames
	if len(commonNames) == 0 {
		commonNames = []string{info.CommonName}
	}
	return PlantIdentification{
		Name:           info.CommonName,
		Confidence:     info.Probability,
		ScientificName: info.ScientificName,
		Description:    "Família: " + family,
		CommonNames:    append([]string(nil), commonNames...),
	}
}

// merge combines identification, diagnosis and treatment lookups. Status and
// isHealthy are always derived from the score.
func (s *Service) merge(info identify.PlantInfo, health diagnosis.HealthResponse, imageURI string, loc *Location) CompleteAnalysis {
	score := clampScore(health.HealthScore)
	status := StatusForScore(score)

	diseases := make([]DiseaseInfo, 0, len(health.Diseases))
	for _, d := range health.Diseases {
		description := d.Description
		if description == "" {
			description = "Doença identificada"
		}
		symptoms := []string{}
		if len(d.AffectedParts) > 0 {
			symptoms = append(symptoms, "Afeta: "+strings.Join(d.AffectedParts, ", "))
		}
		diseases = append(diseases, DiseaseInfo{
			Name:        d.Name,
			Probability: d.Probability,
			Severity:    d.Severity,
			Description: description,
			Treatment:   s.treatmentFor(d),
			Symptoms:    symptoms,
		})
	}

	suggestions := make([]Suggestion, 0, len(health.Diseases)+1)
	suggestions = append(suggestions, Suggestion{
		Name:           info.CommonName,
		Probability:    info.Probability,
		ScientificName: info.ScientificName,
		Description:    "Planta identificada: " + info.CommonName,
		IsPest:         false,
	})
	for _, d := range health.Diseases {
		sg := Suggestion{
			Name:           d.Name,
			Probability:    d.Probability,
			ScientificName: d.ScientificName,
			Description:    d.Description,
			IsPest:         isPest(d),
		}
		if tr, ok := s.table().Find(d.Name); ok {
			sg.Treatment = &tr
		}
		if d.Description != "" {
			sg.Symptoms = []string{d.Description}
		}
		suggestions = append(suggestions, sg)
	}

	recommendations := append([]string(nil), health.Suggestions...)
	if len(recommendations) == 0 {
		recommendations = diagnosis.DefaultSuggestions(status == StatusHealthy)
	}

	return CompleteAnalysis{
		Timestamp:      s.now().UTC().Format(time.RFC3339),
		Identification: identificationFrom(info),
		Health: HealthAssessment{
			Status:          status,
			Score:           score,
			HealthScore:     score,
			IsHealthy:       status == StatusHealthy,
			Diseases:        diseases,
			Recommendations: recommendations,
		},
		Treatment:   treatmentPlan(status, len(diseases) > 0),
		Suggestions: suggestions,
		Location:    loc,
		ImageURI:    imageURI,
	}
}

const isolateNow = "Isolar planta imediatamente"

func treatmentPlan(status HealthStatus, hasDiseases bool) Treatment {
	var plan Treatment
	if hasDiseases {
		plan = Treatment{
			Immediate: []string{"Identificar problema específico", "Isolar planta se necessário"},
			ShortTerm: []string{"Aplicar tratamento recomendado", "Monitorar evolução diariamente"},
			LongTerm:  []string{"Implementar medidas preventivas", "Fortalecer defesas naturais da planta"},
			Products: []Product{
				{Name: "Óleo de Neem", Type: ProductOrganic, Dosage: "5ml por litro"},
				{Name: "Fungicida/Inseticida", Type: ProductChemical, Dosage: "Conforme instruções"},
			},
		}
	} else {
		plan = Treatment{
			Immediate: []string{"Nenhuma ação imediata necessária"},
			ShortTerm: []string{"Continuar cuidados regulares"},
			LongTerm:  []string{"Manter rotina de cuidados"},
		}
	}
	if status == StatusCritical {
		immediate := []string{isolateNow}
		for _, a := range plan.Immediate {
			if a == "Isolar planta se necessário" || a == "Nenhuma ação imediata necessária" {
				continue
			}
			immediate = append(immediate, a)
		}
		plan.Immediate = immediate
	}
	return plan
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
