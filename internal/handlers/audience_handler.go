package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/services"
)

// AudienceHandler handles audience preview and segment requests
type AudienceHandler struct {
	audienceService services.AudienceService
}

// NewAudienceHandler creates a new AudienceHandler
func NewAudienceHandler(audienceService services.AudienceService) *AudienceHandler {
	return &AudienceHandler{audienceService: audienceService}
}

// Preview handles POST /audiences/preview. The body is a rule group.
func (h *AudienceHandler) Preview(c *gin.Context) {
	var rules models.RuleGroup
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule structure", "details": err.Error()})
		return
	}

	result, err := h.audienceService.Preview(c.Request.Context(), rules)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateSegment handles POST /audiences
func (h *AudienceHandler) CreateSegment(c *gin.Context) {
	var req models.CreateSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	segment, err := h.audienceService.CreateSegment(c.Request.Context(), &req, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, segment)
}

// GetSegment handles GET /audiences/:id
func (h *AudienceHandler) GetSegment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	segment, err := h.audienceService.GetSegment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, segment)
}

// ListSegments handles GET /audiences
func (h *AudienceHandler) ListSegments(c *gin.Context) {
	segments, err := h.audienceService.ListSegments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": segments, "total": len(segments)})
}
