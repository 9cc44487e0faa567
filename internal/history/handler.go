package history

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"plantdoc/internal/shared/server/middleware"
	"plantdoc/internal/shared/server/respond"
)

const (
	errorCodeNotFound   = "not_found"
	errorCodeValidation = "validation_error"
	errorCodeStorage    = "storage_error"
)

// Handler wires HTTP handlers to the history service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.list)
	rg.DELETE("/history", h.clear)
	rg.GET("/history/recent", h.recent)
	rg.GET("/history/stats", h.stats)
	rg.GET("/history/count", h.count)
	rg.GET("/history/:id", h.get)
	rg.DELETE("/history/:id", h.delete)
	rg.POST("/history/:id/favorite", h.toggleFavorite)
}

type listResponse struct {
	Items []HistoryItem `json:"items"`
	Count int           `json:"count"`
}

func (h *Handler) list(c *gin.Context) {
	var f Filter
	if raw := strings.TrimSpace(c.Query("healthy")); raw != "" {
		healthy, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, errorCodeValidation, "healthy must be a boolean", nil)
			return
		}
		f.Healthy = &healthy
	}
	if raw := strings.TrimSpace(c.Query("favorites")); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, errorCodeValidation, "favorites must be a boolean", nil)
			return
		}
		f.FavoritesOnly = fav
	}
	f.Term = c.Query("q")

	items, err := h.Svc.Query(c.Request.Context(), f)
	if err != nil {
		storageError(c)
		return
	}
	respond.OK(c, listResponse{Items: items, Count: len(items)})
}

func (h *Handler) recent(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	items, err := h.Svc.Recent(c.Request.Context(), limit)
	if err != nil {
		storageError(c)
		return
	}
	respond.OK(c, listResponse{Items: items, Count: len(items)})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		storageError(c)
		return
	}
	respond.OK(c, st)
}

func (h *Handler) count(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		return
	}
	if days <= 0 {
		days = DefaultCountDays
	}
	n, err := h.Svc.CountSince(c.Request.Context(), days)
	if err != nil {
		storageError(c)
		return
	}
	respond.OK(c, gin.H{"days": days, "count": n})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	item, ok := h.load(c, id)
	if !ok {
		return
	}
	fav, err := h.Svc.IsFavorite(c.Request.Context(), id)
	if err != nil {
		storageError(c)
		return
	}
	respond.OK(c, gin.H{"item": item, "favorite": fav})
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.load(c, id); !ok {
		return
	}
	deleted, err := h.Svc.Delete(c.Request.Context(), id)
	if err != nil {
		storageError(c)
		return
	}
	c.Set(middleware.LogKeyHistoryID, id)
	respond.OK(c, gin.H{"deleted": deleted})
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.load(c, id); !ok {
		return
	}
	on, err := h.Svc.ToggleFavorite(c.Request.Context(), id)
	if err != nil {
		storageError(c)
		return
	}
	c.Set(middleware.LogKeyHistoryID, id)
	respond.OK(c, gin.H{"id": id, "favorite": on})
}

func (h *Handler) clear(c *gin.Context) {
	if err := h.Svc.Clear(c.Request.Context()); err != nil {
		storageError(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) load(c *gin.Context, id string) (HistoryItem, bool) {
	item, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, errorCodeNotFound, "history item not found", nil)
			return HistoryItem{}, false
		}
		storageError(c)
		return HistoryItem{}, false
	}
	return item, true
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respond.Error(c, http.StatusBadRequest, errorCodeValidation, name+" must be a non-negative integer", nil)
		return 0, false
	}
	return v, true
}

func storageError(c *gin.Context) {
	respond.Error(c, http.StatusInternalServerError, errorCodeStorage, "history storage unavailable", nil)
}
