package treatments

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plantdoc/internal/shared/server/respond"
)

// Handler serves treatment lookups.
type Handler struct {
	Table *Table
}

func NewHandler(table *Table) *Handler {
	if table == nil {
		table = Default()
	}
	return &Handler{Table: table}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/treatments", h.lookup)
}

func (h *Handler) lookup(c *gin.Context) {
	problem := strings.TrimSpace(c.Query("problem"))
	if problem == "" {
		respond.OK(c, gin.H{"items": h.Table.Entries()})
		return
	}
	entry, ok := h.Table.Lookup(problem)
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "no treatment known for this problem", nil)
		return
	}
	respond.OK(c, entry)
}
