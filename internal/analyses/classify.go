package analyses

import (
	"plantdoc/internal/diagnosis"
	"plantdoc/internal/treatments"
)

// genericTreatments is used when the treatment table has no entry for a disease.
var genericTreatments = map[diagnosis.DiseaseType]treatments.Treatment{
	diagnosis.TypeFungal: {
		Organic:    []string{"Calda bordalesa", "Remover partes afetadas"},
		Chemical:   []string{"Fungicida à base de cobre"},
		Preventive: []string{"Melhorar circulação de ar", "Evitar molhar as folhas"},
	},
	diagnosis.TypePest: {
		Organic:    []string{"Óleo de neem", "Controle manual"},
		Chemical:   []string{"Inseticida específico"},
		Preventive: []string{"Monitoramento regular", "Rotação de culturas"},
	},
	diagnosis.TypeBacterial: {
		Organic:    []string{"Remover e destruir partes infectadas"},
		Chemical:   []string{"Bactericida à base de cobre"},
		Preventive: []string{"Desinfetar ferramentas de poda", "Evitar ferimentos nas plantas"},
	},
	diagnosis.TypeViral: {
		Organic:    []string{"Eliminar plantas infectadas"},
		Chemical:   []string{"Controle químico dos insetos vetores"},
		Preventive: []string{"Usar sementes certificadas", "Controlar insetos vetores"},
	},
	diagnosis.TypeDeficiency: {
		Organic:    []string{"Adubação orgânica (composto, húmus)"},
		Chemical:   []string{"Fertilizante mineral balanceado"},
		Preventive: []string{"Análise de solo periódica", "Correção do pH do solo"},
	},
	diagnosis.TypeEnvironmental: {
		Organic:    []string{"Ajustar irrigação e exposição ao sol"},
		Chemical:   []string{"Consulte produto químico específico"},
		Preventive: []string{"Boas práticas agrícolas"},
	},
}

// diseaseType infers the category from the disease name and falls back to
// the provider's category when the name is inconclusive.
func diseaseType(d diagnosis.DiseaseDiagnosis) diagnosis.DiseaseType {
	if t := diagnosis.ClassifyType(d.Name, d.ScientificName); t != diagnosis.TypeEnvironmental {
		return t
	}
	if d.Type != "" {
		return d.Type
	}
	return diagnosis.TypeEnvironmental
}

// treatmentFor prefers the treatment table and otherwise synthesizes a
// generic treatment from the disease category plus the provider's advice.
func (s *Service) treatmentFor(d diagnosis.DiseaseDiagnosis) treatments.Treatment {
	if tr, ok := s.table().Find(d.Name); ok {
		return tr
	}
	generic := genericTreatments[diseaseType(d)]
	return treatments.Treatment{
		Organic:    mergeUnique(d.Treatment, generic.Organic),
		Chemical:   mergeUnique(nil, generic.Chemical),
		Preventive: mergeUnique(d.Prevention, generic.Preventive),
	}
}

func isPest(d diagnosis.DiseaseDiagnosis) bool {
	return d.Type == diagnosis.TypePest || diagnosis.IsPest(d.Name)
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, l := range lists {
		for _, s := range l {
			if _, ok := seen[s]; ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
