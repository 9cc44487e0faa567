package identify

import (
	"context"

	"plantdoc/internal/shared/apiclient"
)

// PlantInfo is the best species match returned by an identification provider.
type PlantInfo struct {
	ScientificName string   `json:"scientificName"`
	CommonName     string   `json:"commonName"`
	Family         string   `json:"family,omitempty"`
	Genus          string   `json:"genus,omitempty"`
	Probability    int      `json:"probability"`
	CommonNames    []string `json:"commonNames,omitempty"`
	Images         []string `json:"images,omitempty"`
}

// Client identifies a plant species from a photo.
type Client interface {
	Identify(ctx context.Context, img apiclient.Image) (PlantInfo, error)
}

// PlaceholderClient is used when no identification credentials are configured.
type PlaceholderClient struct{}

// Identify always fails with apiclient.ErrNotConfigured.
func (PlaceholderClient) Identify(ctx context.Context, img apiclient.Image) (PlantInfo, error) {
	_ = ctx
	_ = img
	return PlantInfo{}, &apiclient.APIError{Provider: "identify", Kind: apiclient.ErrNotConfigured}
}
