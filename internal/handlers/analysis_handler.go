package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/taxappeal/internal/middleware"
	"github.com/stwalsh4118/taxappeal/internal/services"
)

// AnalysisHandler serves opportunity analyses.
type AnalysisHandler struct {
	service services.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler instance.
func NewAnalysisHandler(service services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// AnalysisResponse wraps one analysis snapshot.
type AnalysisResponse struct {
	Analysis *services.AnalysisSnapshot `json:"analysis"`
}

// Analyze handles GET /api/v1/properties/:parcel_id/analysis.
// A do-not-file recommendation is a successful analysis, not an error.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	parcelID := c.Param("parcel_id")
	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Processing analysis request", map[string]interface{}{"parcel_id": parcelID})
	}

	snap, err := h.service.Analyze(c.Request.Context(), parcelID)
	if err != nil {
		writeServiceError(c, err, "Failed to analyze property")
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{Analysis: snap})
}
