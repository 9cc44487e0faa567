package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"plantdoc/internal/diagnosis"
	"plantdoc/internal/identify"
	"plantdoc/internal/shared/apiclient"
	"plantdoc/internal/shared/metrics"
	"plantdoc/internal/shared/storage/object"
	"plantdoc/internal/shared/telemetry"
	"plantdoc/internal/treatments"
)

const (
	DefaultFallbackDelay = 2 * time.Second
	DefaultMaxImageBytes = 10 << 20
)

// ImageSource opens stored photos by storage key.
type ImageSource interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Service runs the identification and diagnosis pipeline. It never persists.
type Service struct {
	Images     ImageSource
	Identifier identify.Client
	// Diagnoser is the live health provider; nil selects Simulator.
	Diagnoser     diagnosis.Client
	Simulator     diagnosis.Client
	Treatments    *treatments.Table
	FallbackDelay time.Duration
	MaxImageBytes int64
	Now           func() time.Time
}

// CompleteAnalysis identifies and diagnoses the photo at imageURI. It always
// returns an analysis; Result.Mode and Result.Cause report whether the canned
// fallback was used and why.
func (s *Service) CompleteAnalysis(ctx context.Context, imageURI string, loc *Location) Result {
	start := time.Now()
	requestID := requestIDFromContext(ctx)
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.started", map[string]any{
		"request_id": requestID,
		"image_uri":  imageURI,
	})

	res, err := s.run(ctx, imageURI, loc)
	if err != nil {
		telemetry.Error("analysis.fallback", map[string]any{
			"request_id": requestID,
			"image_uri":  imageURI,
			"error":      err,
		})
		if waitErr := sleepCtx(ctx, s.fallbackDelay()); waitErr != nil {
			telemetry.Warn("analysis.fallback.delay_interrupted", map[string]any{
				"request_id": requestID,
				"error":      waitErr,
			})
		}
		res = Result{
			Analysis: fallbackAnalysis(s.now(), imageURI, loc),
			Mode:     ModeFallback,
			Cause:    err,
		}
	}

	res.Analysis.Mode = res.Mode

	elapsed := time.Since(start)
	metrics.IncAnalysisCompleted(string(res.Mode))
	metrics.ObserveAnalysisDuration(elapsed)
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":   requestID,
		"mode":         string(res.Mode),
		"plant":        res.Analysis.Identification.Name,
		"health_score": res.Analysis.Health.Score,
		"diseases":     len(res.Analysis.Health.Diseases),
		"duration_ms":  elapsed.Milliseconds(),
	})
	return res
}

func (s *Service) run(ctx context.Context, imageURI string, loc *Location) (Result, error) {
	if s.Identifier == nil {
		return Result{}, &apiclient.APIError{Provider: "identify", Kind: apiclient.ErrNotConfigured}
	}
	img, err := s.loadImage(ctx, imageURI)
	if err != nil {
		return Result{}, err
	}

	info, err := s.Identifier.Identify(ctx, img)
	if err != nil {
		return Result{}, fmt.Errorf("identify: %w", err)
	}

	mode := ModeLive
	diag := s.Diagnoser
	if diag == nil {
		diag = s.simulator()
		mode = ModeSimulatedDiagnosis
	}
	health, err := diag.Diagnose(ctx, img, info.ScientificName)
	if err != nil {
		return Result{}, fmt.Errorf("diagnose: %w", err)
	}

	return Result{Analysis: s.merge(info, health, imageURI, loc), Mode: mode}, nil
}

// QuickAnalysis only identifies the plant. Failures yield an unidentified
// placeholder with zero confidence.
func (s *Service) QuickAnalysis(ctx context.Context, imageURI string) PlantIdentification {
	id, err := s.identifyOnly(ctx, imageURI)
	if err != nil {
		telemetry.Error("analysis.quick.failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"image_uri":  imageURI,
			"error":      err,
		})
		return PlantIdentification{Name: "Planta não identificada", Confidence: 0, CommonNames: []string{}}
	}
	return id
}

func (s *Service) identifyOnly(ctx context.Context, imageURI string) (PlantIdentification, error) {
	if s.Identifier == nil {
		return PlantIdentification{}, &apiclient.APIError{Provider: "identify", Kind: apiclient.ErrNotConfigured}
	}
	img, err := s.loadImage(ctx, imageURI)
	if err != nil {
		return PlantIdentification{}, err
	}
	info, err := s.Identifier.Identify(ctx, img)
	if err != nil {
		return PlantIdentification{}, err
	}
	return identificationFrom(info), nil
}

func (s *Service) loadImage(ctx context.Context, imageURI string) (apiclient.Image, error) {
	if imageURI == "" {
		return apiclient.Image{}, ErrImageRequired
	}
	if s.Images == nil {
		return apiclient.Image{}, errors.New("image source not configured")
	}
	rc, err := s.Images.Open(ctx, imageURI)
	if err != nil {
		return apiclient.Image{}, fmt.Errorf("open image %s: %w", imageURI, err)
	}
	defer rc.Close()

	limit := s.MaxImageBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return apiclient.Image{}, fmt.Errorf("read image %s: %w", imageURI, err)
	}
	if int64(len(data)) > limit {
		return apiclient.Image{}, ErrImageTooLarge
	}
	contentType, err := object.DetectImage(data)
	if err != nil {
		return apiclient.Image{}, err
	}
	return apiclient.Image{Name: path.Base(imageURI), ContentType: contentType, Data: data}, nil
}

func (s *Service) simulator() diagnosis.Client {
	if s.Simulator != nil {
		return s.Simulator
	}
	return diagnosis.Simulator{Now: s.Now}
}

func (s *Service) table() *treatments.Table {
	if s.Treatments != nil {
		return s.Treatments
	}
	return treatments.Default()
}

func (s *Service) fallbackDelay() time.Duration {
	if s.FallbackDelay < 0 {
		return 0
	}
	if s.FallbackDelay == 0 {
		return DefaultFallbackDelay
	}
	return s.FallbackDelay
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
