package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/crm-campaign-backend/pkg/vendor"
)

// VendorAcceptor accepts dispatch requests on behalf of the stub vendor
type VendorAcceptor interface {
	Accept(req vendor.SendRequest) vendor.SendResponse
}

// VendorHandler exposes the simulated messaging vendor
type VendorHandler struct {
	vendor VendorAcceptor
}

// NewVendorHandler creates a new VendorHandler
func NewVendorHandler(v VendorAcceptor) *VendorHandler {
	return &VendorHandler{vendor: v}
}

// Send handles POST /vendor/send
func (h *VendorHandler) Send(c *gin.Context) {
	var req vendor.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, h.vendor.Accept(req))
}
