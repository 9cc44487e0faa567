package diagnosis

import (
	"context"
	"hash/fnv"
	"time"

	"plantdoc/internal/shared/apiclient"
)

const (
	simulatedPlantName      = "Milho"
	simulatedScientificName = "Zea mays"
	simulatedConfidence     = 0.73
	simulatedPestScore      = 45
)

// Simulator fabricates a plausible diagnosis without network access. The
// same image reference always yields the same result.
type Simulator struct {
	Now func() time.Time
}

func (s Simulator) Diagnose(ctx context.Context, img apiclient.Image, speciesHint string) (HealthResponse, error) {
	if err := ctx.Err(); err != nil {
		return HealthResponse{}, err
	}

	pest := speciesHint != "" && IsPest(speciesHint)

	resp := HealthResponse{
		PlantName:           speciesHint,
		PlantScientificName: speciesHint,
		Confidence:          simulatedConfidence,
		Timestamp:           s.now().UTC().Format(time.RFC3339),
	}
	if resp.PlantName == "" {
		resp.PlantName = simulatedPlantName
		resp.PlantScientificName = simulatedScientificName
	}

	if pest {
		resp.HealthScore = simulatedPestScore
		resp.Diseases = []DiseaseDiagnosis{{
			ID:            "simulated_pest_1",
			Name:          "Lagarta do Cartucho",
			Probability:   78,
			Type:          TypePest,
			Description:   "Praga comum que causa danos nas folhas de milho",
			Treatment:     []string{"Bacillus thuringiensis (Bt)", "Controle manual", "Inseticidas específicos"},
			Prevention:    []string{"Rotação de culturas", "Eliminação de restos culturais"},
			Severity:      SeverityMedium,
			AffectedParts: []string{"leaf"},
		}}
		resp.Suggestions = []string{
			"Aplicar inseticida biológico",
			"Monitorar população da praga",
			"Práticas de manejo integrado",
		}
		return resp, nil
	}

	resp.HealthScore = 60 + int(imageHash(img)%40)
	resp.IsHealthy = resp.HealthScore >= HealthyThreshold
	resp.Diseases = []DiseaseDiagnosis{{
		ID:            "simulated_fungal_1",
		Name:          "Ferrugem Comum",
		Probability:   65,
		Type:          TypeFungal,
		Description:   "Manchas amarelo-alaranjadas nas folhas",
		Treatment:     []string{"Fungicidas triazóis", "Remover folhas infectadas"},
		Prevention:    []string{"Rotação de culturas", "Espaçamento adequado"},
		Severity:      SeverityMedium,
		AffectedParts: []string{"leaf"},
	}}
	resp.Suggestions = []string{
		"Aplicar fungicida preventivo",
		"Melhorar circulação de ar",
		"Evitar irrigação por aspersão",
	}
	return resp, nil
}

func (s Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func imageHash(img apiclient.Image) uint32 {
	h := fnv.New32a()
	if img.Name != "" {
		_, _ = h.Write([]byte(img.Name))
	} else {
		_, _ = h.Write(img.Data)
	}
	return h.Sum32()
}

var _ Client = Simulator{}
