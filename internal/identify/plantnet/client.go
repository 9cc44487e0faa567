package plantnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plantdoc/internal/identify"
	"plantdoc/internal/shared/apiclient"
	"plantdoc/internal/shared/metrics"
	"plantdoc/internal/shared/telemetry"
)

const (
	providerName   = "plantnet"
	defaultBaseURL = "https://my-api.plantnet.org/v2/identify"
	defaultProject = "all"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
)

var statusMap = apiclient.StatusMap{
	http.StatusUnauthorized:    apiclient.ErrUnauthorized,
	http.StatusForbidden:       apiclient.ErrQuotaExceeded,
	http.StatusNotFound:        apiclient.ErrEndpointNotFound,
	http.StatusTooManyRequests: apiclient.ErrRateLimited,
}

// Client implements identify.Client against the Pl@ntNet identification API.
type Client struct {
	apiKey     string
	baseURL    string
	project    string
	lang       string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (without the project segment).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithProject selects the flora project, e.g. "all" or "weurope".
func WithProject(p string) Option {
	return func(c *Client) {
		if strings.TrimSpace(p) != "" {
			c.project = p
		}
	}
}

// WithLang sets the language of common names.
func WithLang(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a Pl@ntNet client. The API key is required.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &apiclient.APIError{
			Provider: providerName,
			Kind:     apiclient.ErrNotConfigured,
			Message:  "get a key at https://my.plantnet.org/account",
		}
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		project:    defaultProject,
		lang:       "pt",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type identifyResponse struct {
	Results []struct {
		Score   float64 `json:"score"`
		Species struct {
			ScientificName string `json:"scientificName"`
			Family         *struct {
				ScientificName string `json:"scientificName"`
			} `json:"family"`
			Genus *struct {
				ScientificName string `json:"scientificName"`
			} `json:"genus"`
			CommonNames []string `json:"commonNames"`
		} `json:"species"`
		Images []struct {
			URL *struct {
				O string `json:"o"`
				M string `json:"m"`
				S string `json:"s"`
			} `json:"url"`
		} `json:"images"`
	} `json:"results"`
	Language string `json:"language"`
	Version  string `json:"version"`
}

// Identify uploads the image and returns the best match.
func (c *Client) Identify(ctx context.Context, img apiclient.Image) (identify.PlantInfo, error) {
	body, contentType, err := apiclient.EncodeMultipart("images", img, apiclient.Field{Name: "organs", Value: "leaf"})
	if err != nil {
		return identify.PlantInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), body)
	if err != nil {
		return identify.PlantInfo{}, fmt.Errorf("build plantnet request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncProviderRequest(providerName, "network_error")
		return identify.PlantInfo{}, apiclient.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.IncProviderRequest(providerName, "network_error")
		return identify.PlantInfo{}, apiclient.FromTransport(providerName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncProviderRequest(providerName, "http_"+fmt.Sprint(resp.StatusCode))
		apiErr := apiclient.FromStatus(providerName, resp.StatusCode, statusMap, string(raw))
		telemetry.Error("plantnet.identify.failed", map[string]any{
			"status": resp.StatusCode,
			"error":  apiErr,
		})
		return identify.PlantInfo{}, apiErr
	}

	info, err := parseIdentifyResponse(raw)
	if err != nil {
		metrics.IncProviderRequest(providerName, "bad_response")
		return identify.PlantInfo{}, err
	}
	metrics.IncProviderRequest(providerName, "ok")
	telemetry.Info("plantnet.identify", map[string]any{
		"scientific_name": info.ScientificName,
		"probability":     info.Probability,
	})
	return info, nil
}

func (c *Client) endpoint() string {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("include-related-images", "false")
	q.Set("no-reject", "false")
	if c.lang != "" {
		q.Set("lang", c.lang)
	}
	return c.baseURL + "/" + url.PathEscape(c.project) + "?" + q.Encode()
}

func parseIdentifyResponse(raw []byte) (identify.PlantInfo, error) {
	var parsed identifyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return identify.PlantInfo{}, &apiclient.APIError{Provider: providerName, Kind: apiclient.ErrBadResponse, Err: err}
	}
	if len(parsed.Results) == 0 {
		return identify.PlantInfo{}, &apiclient.APIError{Provider: providerName, Kind: apiclient.ErrNoResults}
	}

	best := parsed.Results[0]
	commonName := best.Species.ScientificName
	if len(best.Species.CommonNames) > 0 && strings.TrimSpace(best.Species.CommonNames[0]) != "" {
		commonName = best.Species.CommonNames[0]
	}

	info := identify.PlantInfo{
		ScientificName: best.Species.ScientificName,
		CommonName:     commonName,
		Probability:    int(math.Round(best.Score * 100)),
		CommonNames:    best.Species.CommonNames,
	}
	if best.Species.Family != nil {
		info.Family = best.Species.Family.ScientificName
	}
	if best.Species.Genus != nil {
		info.Genus = best.Species.Genus.ScientificName
	}
	for _, im := range best.Images {
		if im.URL == nil {
			continue
		}
		switch {
		case im.URL.M != "":
			info.Images = append(info.Images, im.URL.M)
		case im.URL.O != "":
			info.Images = append(info.Images, im.URL.O)
		case im.URL.S != "":
			info.Images = append(info.Images, im.URL.S)
		}
	}
	return info, nil
}

var _ identify.Client = (*Client)(nil)
