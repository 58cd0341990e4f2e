package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/services"
)

// CampaignHandler handles campaign HTTP requests
type CampaignHandler struct {
	campaignService services.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaignService services.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService}
}

// CreateCampaign handles POST /campaigns. When dispatch-on-create is enabled
// and the dispatch fails, the stored campaign is still returned with 201
// and the failure is reported under dispatchError.
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, result, err := h.campaignService.CreateCampaign(c.Request.Context(), &req, currentUser(c))
	if campaign == nil {
		respondError(c, err)
		return
	}

	body := gin.H{"campaign": campaign}
	if result != nil {
		body["dispatch"] = result
	}
	if err != nil {
		slog.Warn("Campaign stored but dispatch failed", "campaignId", campaign.ID.Hex(), "error", err)
		body["dispatchError"] = err.Error()
	}
	c.JSON(http.StatusCreated, body)
}

// GetCampaign handles GET /campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	campaign, err := h.campaignService.GetCampaign(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// ListCampaigns handles GET /campaigns
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	page, limit := pagination(c)
	campaigns, total, err := h.campaignService.ListCampaigns(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse{Data: campaigns, Page: page, Limit: limit, Total: total})
}

// ListLogs handles GET /campaigns/:id/logs
func (h *CampaignHandler) ListLogs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, limit := pagination(c)
	logs, total, err := h.campaignService.ListLogs(c.Request.Context(), id, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResponse{Data: logs, Page: page, Limit: limit, Total: total})
}

// Deliver handles POST /campaigns/:id/deliver
func (h *CampaignHandler) Deliver(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.campaignService.Dispatch(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Campaign delivery initiated",
		"result":  result,
	})
}
