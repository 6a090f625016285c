package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/romangod6/catscout/internal/runregistry"
	"github.com/romangod6/catscout/internal/storage"
)

type Handler struct {
	store    storage.Store
	registry *runregistry.Registry
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHandler(store storage.Store, registry *runregistry.Registry) *Handler {
	return &Handler{store: store, registry: registry}
}

// ListCategories returns a retailer's persisted taxonomy, ordered by
// depth ascending so the response can be rendered as a tree by walking
// it once.
func (h *Handler) ListCategories(c *gin.Context) {
	retailerID, err := strconv.Atoi(c.Query("retailer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "retailer_id query parameter is required and must be an integer"})
		return
	}

	categories, err := h.store.ListCategories(c.Request.Context(), retailerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to fetch categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"retailer_id": retailerID, "categories": categories})
}

// CategoryStats returns the count and max depth for a retailer, the same
// numbers a blueprint's staleness check compares against.
func (h *Handler) CategoryStats(c *gin.Context) {
	retailerID, err := strconv.Atoi(c.Query("retailer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "retailer_id query parameter is required and must be an integer"})
		return
	}

	count, err := h.store.CountCategories(c.Request.Context(), retailerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to count categories"})
		return
	}
	maxDepth, err := h.store.MaxDepth(c.Request.Context(), retailerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to compute max depth"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"retailer_id": retailerID, "total_categories": count, "max_depth": maxDepth})
}

// ListRuns returns the run states the registry still retains (it evicts
// the oldest beyond its limit), most recently started first.
func (h *Handler) ListRuns(c *gin.Context) {
	if h.registry == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": h.registry.List()})
}

// GetRun returns one run's current state by run ID.
func (h *Handler) GetRun(c *gin.Context) {
	if h.registry == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
		return
	}
	state := h.registry.Get(c.Param("id"))
	if state == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}
