package kindwise

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plantdoc/internal/diagnosis"
	"plantdoc/internal/shared/apiclient"
	"plantdoc/internal/shared/metrics"
	"plantdoc/internal/shared/telemetry"
)

const (
	providerName   = "kindwise"
	defaultURL     = "https://crop.kindwise.com/api/v1/identification"
	defaultTimeout = 40 * time.Second
	maxBodyBytes   = 4 << 20
)

var statusMap = apiclient.StatusMap{
	http.StatusUnauthorized:    apiclient.ErrUnauthorized,
	http.StatusPaymentRequired: apiclient.ErrQuotaExceeded,
	http.StatusTooManyRequests: apiclient.ErrRateLimited,
}

// Client implements diagnosis.Client against the Kindwise crop.health API.
type Client struct {
	apiKey     string
	url        string
	language   string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

func WithURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.url = u
		}
	}
}

func WithLanguage(lang string) Option {
	return func(c *Client) {
		if strings.TrimSpace(lang) != "" {
			c.language = lang
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock fixes the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a Kindwise client. Placeholder keys are rejected.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if !diagnosis.CanUseRealAPI(apiKey) {
		return nil, &apiclient.APIError{Provider: providerName, Kind: apiclient.ErrNotConfigured}
	}
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		url:        defaultURL,
		language:   "pt",
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Diagnose(ctx context.Context, img apiclient.Image, speciesHint string) (diagnosis.HealthResponse, error) {
	if img.Name == "" {
		img.Name = "plant_health.jpg"
	}
	body, contentType, err := apiclient.EncodeMultipart("images", img)
	if err != nil {
		return diagnosis.HealthResponse{}, err
	}

	endpoint, err := c.endpoint(speciesHint)
	if err != nil {
		return diagnosis.HealthResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return diagnosis.HealthResponse{}, fmt.Errorf("build kindwise request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncProviderRequest(providerName, "network_error")
		return diagnosis.HealthResponse{}, apiclient.FromTransport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.IncProviderRequest(providerName, "network_error")
		return diagnosis.HealthResponse{}, apiclient.FromTransport(providerName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncProviderRequest(providerName, "http_"+fmt.Sprint(resp.StatusCode))
		apiErr := apiclient.FromStatus(providerName, resp.StatusCode, statusMap, string(raw))
		telemetry.Error("kindwise.diagnose.failed", map[string]any{
			"status": resp.StatusCode,
			"error":  apiErr,
		})
		return diagnosis.HealthResponse{}, apiErr
	}

	out, err := normalize(raw, speciesHint, c.now())
	if err != nil {
		metrics.IncProviderRequest(providerName, "bad_response")
		return diagnosis.HealthResponse{}, err
	}
	metrics.IncProviderRequest(providerName, "ok")
	telemetry.Info("kindwise.diagnose", map[string]any{
		"health_score": out.HealthScore,
		"diseases":     len(out.Diseases),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (c *Client) endpoint(speciesHint string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse kindwise url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("health", "auto")
	q.Set("disease_level", "general")
	q.Set("language", c.language)
	if speciesHint != "" {
		q.Set("plant_species", speciesHint)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ diagnosis.Client = (*Client)(nil)
