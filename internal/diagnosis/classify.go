package diagnosis

import "strings"

type typeRule struct {
	Type   DiseaseType
	Tokens []string
}

// typeRules is evaluated in order; the first rule with a matching token wins.
var typeRules = []typeRule{
	{TypeFungal, []string{"fung", "ferrugem", "rust", "míldio", "mildio", "mildew", "oídio", "oidio", "antracnose", "anthracnose", "mofo", "mold"}},
	{TypePest, []string{"pest", "praga", "insect", "inseto", "lagarta", "caterpillar", "pulgão", "pulgao", "aphid", "ácaro", "acaro", "mite", "cochonilha", "broca", "percevejo", "mosca", "vaquinha"}},
	{TypeBacterial, []string{"bact"}},
	{TypeViral, []string{"vírus", "virus", "viral", "mosaico", "mosaic"}},
	{TypeDeficiency, []string{"defic", "carência", "carencia", "nutrient"}},
}

// ClassifyType infers the disease category from free-text names or provider
// categories. Unmatched text is environmental.
func ClassifyType(texts ...string) DiseaseType {
	joined := strings.ToLower(strings.Join(texts, " "))
	for _, rule := range typeRules {
		for _, tok := range rule.Tokens {
			if strings.Contains(joined, tok) {
				return rule.Type
			}
		}
	}
	return TypeEnvironmental
}

// PestKeywords are the problem names the app treats as crop pests.
var PestKeywords = []string{
	"lagarta", "broca", "percevejo", "pulgão", "ácaro", "cochonilha",
	"mosca", "branca", "vaquinha", "ferrugem", "oídio", "míldio",
	"bactéria", "vírus", "murcha", "mancha", "podridão",
}

// IsPest reports whether name contains one of PestKeywords.
func IsPest(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range PestKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SeverityFromLabel maps a provider severity label.
func SeverityFromLabel(label string) Severity {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "high"), strings.Contains(lower, "severe"):
		return SeverityHigh
	case strings.Contains(lower, "medium"), strings.Contains(lower, "moderate"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFromProbability maps a 0..1 probability.
func SeverityFromProbability(p float64) Severity {
	switch {
	case p > 0.7:
		return SeverityHigh
	case p > 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
