package analyses

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"plantdoc/internal/shared/apiclient"
	"plantdoc/internal/shared/server/middleware"
	"plantdoc/internal/shared/server/respond"
	"plantdoc/internal/shared/storage/object"
)

// Recorder persists completed analyses. history.Service implements it.
type Recorder interface {
	SaveAnalysis(ctx context.Context, analysis CompleteAnalysis, imageURI string, loc *Location) (string, error)
}

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc      *Service
	Store    object.ObjectStore
	Recorder Recorder
	MaxBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, store object.ObjectStore, recorder Recorder) *Handler {
	return &Handler{Svc: svc, Store: store, Recorder: recorder, MaxBytes: DefaultMaxImageBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
	rg.POST("/identify", h.identify)
}

type analysisResponse struct {
	Analysis  CompleteAnalysis `json:"analysis"`
	Mode      Mode             `json:"mode"`
	Simulated bool             `json:"simulated"`
	Notice    string           `json:"notice,omitempty"`
	HistoryID string           `json:"historyId,omitempty"`
}

func (h *Handler) createAnalysis(c *gin.Context) {
	loc, err := parseLocation(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
		return
	}
	save := true
	if raw := strings.TrimSpace(c.PostForm("save")); raw != "" {
		if save, err = strconv.ParseBool(raw); err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "save must be a boolean", nil)
			return
		}
	}

	imageURI, ok := h.storeUpload(c)
	if !ok {
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res := h.Svc.CompleteAnalysis(ctx, imageURI, loc)
	c.Set(middleware.LogKeyAnalysisMode, string(res.Mode))

	out := analysisResponse{
		Analysis:  res.Analysis,
		Mode:      res.Mode,
		Simulated: res.Simulated(),
	}
	if res.Cause != nil {
		out.Notice = apiclient.UserMessage(res.Cause)
	}

	if !save || h.Recorder == nil {
		respond.OK(c, out)
		return
	}
	id, err := h.Recorder.SaveAnalysis(ctx, res.Analysis, imageURI, loc)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "failed to save analysis", nil)
		return
	}
	c.Set(middleware.LogKeyHistoryID, id)
	out.Analysis.ID = id
	out.HistoryID = id
	respond.Created(c, out)
}

func (h *Handler) identify(c *gin.Context) {
	imageURI, ok := h.storeUpload(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	respond.OK(c, gin.H{
		"identification": h.Svc.QuickAnalysis(ctx, imageURI),
		"imageUri":       imageURI,
	})
}

// storeUpload saves the multipart "image" file and returns its storage key.
// It writes the error response itself when it returns false.
func (h *Handler) storeUpload(c *gin.Context) (string, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, ErrImageRequired.Error(), []map[string]string{
			{"field": "image", "issue": "required"},
		})
		return "", false
	}
	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	if fh.Size > limit {
		respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeValidation, ErrImageTooLarge.Error(), gin.H{"maxBytes": limit})
		return "", false
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "could not read upload", nil)
		return "", false
	}
	defer f.Close()

	key, _, _, err := h.Store.Save(c.Request.Context(), middleware.ClientKey(c), fh.Filename, f)
	if err != nil {
		if errors.Is(err, object.ErrNotImage) {
			respond.Error(c, http.StatusUnsupportedMediaType, ErrorCodeValidation, "upload must be a JPEG, PNG, WebP, HEIC or GIF image", nil)
			return "", false
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "failed to store image", nil)
		return "", false
	}
	return key, true
}

func parseLocation(c *gin.Context) (*Location, error) {
	latRaw := strings.TrimSpace(c.PostForm("latitude"))
	lngRaw := strings.TrimSpace(c.PostForm("longitude"))
	if latRaw == "" && lngRaw == "" {
		return nil, nil
	}
	if latRaw == "" || lngRaw == "" {
		return nil, errors.New("latitude and longitude must be sent together")
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, errors.New("latitude is invalid")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, errors.New("longitude is invalid")
	}
	loc := &Location{Latitude: lat, Longitude: lng}
	if accRaw := strings.TrimSpace(c.PostForm("accuracy")); accRaw != "" {
		acc, err := strconv.ParseFloat(accRaw, 64)
		if err != nil {
			return nil, errors.New("accuracy is invalid")
		}
		loc.Accuracy = &acc
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}
