package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/services"
)

// WebhookHandler receives delivery receipts from the messaging vendor
type WebhookHandler struct {
	deliveryService services.DeliveryService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(deliveryService services.DeliveryService) *WebhookHandler {
	return &WebhookHandler{deliveryService: deliveryService}
}

// DeliveryReceipt handles POST /webhooks/delivery-receipts
func (h *WebhookHandler) DeliveryReceipt(c *gin.Context) {
	var receipt models.DeliveryReceipt
	if err := c.ShouldBindJSON(&receipt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "details": err.Error()})
		return
	}

	entry, err := h.deliveryService.ProcessReceipt(c.Request.Context(), &receipt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Log updated successfully via webhook",
		"logId":   entry.ID.Hex(),
		"status":  entry.Status,
	})
}
