package diagnosis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantdoc/internal/shared/apiclient"
)

func TestClassifyTypeFirstMatchWins(t *testing.T) {
	tests := []struct {
		in   []string
		want DiseaseType
	}{
		{[]string{"Ferrugem Comum"}, TypeFungal},
		{[]string{"Fungus"}, TypeFungal},
		{[]string{"Lagarta do Cartucho"}, TypePest},
		{[]string{"Insect damage"}, TypePest},
		{[]string{"Mancha bacteriana"}, TypeBacterial},
		{[]string{"Mosaico do tomateiro"}, TypeViral},
		{[]string{"Deficiência de nitrogênio"}, TypeDeficiency},
		{[]string{"Queimadura solar"}, TypeEnvironmental},
		{[]string{"", "fungi"}, TypeFungal},
		// fungal rule precedes pest rule
		{[]string{"Ferrugem com lagarta"}, TypeFungal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyType(tt.in...), "input %v", tt.in)
	}
}

func TestIsPest(t *testing.T) {
	assert.True(t, IsPest("Pulgão verde"))
	assert.True(t, IsPest("MOSCA BRANCA"))
	assert.False(t, IsPest("Zea mays"))
	assert.False(t, IsPest(""))
}

func TestSeverityMapping(t *testing.T) {
	assert.Equal(t, SeverityHigh, SeverityFromLabel("Severe"))
	assert.Equal(t, SeverityMedium, SeverityFromLabel("moderate"))
	assert.Equal(t, SeverityLow, SeverityFromLabel("mild"))
	assert.Equal(t, SeverityHigh, SeverityFromProbability(0.71))
	assert.Equal(t, SeverityMedium, SeverityFromProbability(0.5))
	assert.Equal(t, SeverityLow, SeverityFromProbability(0.4))
}

func TestCanUseRealAPI(t *testing.T) {
	assert.False(t, CanUseRealAPI(""))
	assert.False(t, CanUseRealAPI("  "))
	assert.False(t, CanUseRealAPI(PlaceholderAPIKey))
	assert.True(t, CanUseRealAPI("abc123"))
}

func TestSimulatorDeterministic(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sim := Simulator{Now: func() time.Time { return fixed }}
	img := apiclient.Image{Name: "images/u1/leaf.jpg"}

	first, err := sim.Diagnose(context.Background(), img, "")
	require.NoError(t, err)
	second, err := sim.Diagnose(context.Background(), img, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first.HealthScore, 60)
	assert.Less(t, first.HealthScore, 100)
	assert.Equal(t, first.HealthScore >= HealthyThreshold, first.IsHealthy)
	require.Len(t, first.Diseases, 1)
	assert.Equal(t, "Ferrugem Comum", first.Diseases[0].Name)
	assert.Equal(t, "Milho", first.PlantName)
	assert.Equal(t, "Zea mays", first.PlantScientificName)
	assert.Equal(t, "2025-03-01T12:00:00Z", first.Timestamp)
}

func TestSimulatorPestHint(t *testing.T) {
	resp, err := Simulator{}.Diagnose(context.Background(), apiclient.Image{Name: "x"}, "lagarta-do-cartucho")
	require.NoError(t, err)
	assert.False(t, resp.IsHealthy)
	assert.Equal(t, 45, resp.HealthScore)
	require.Len(t, resp.Diseases, 1)
	assert.Equal(t, TypePest, resp.Diseases[0].Type)
	assert.Equal(t, "lagarta-do-cartucho", resp.PlantScientificName)
}

func TestSimulatorHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulator{}.Diagnose(ctx, apiclient.Image{Name: "x"}, "")
	require.ErrorIs(t, err, context.Canceled)
}
