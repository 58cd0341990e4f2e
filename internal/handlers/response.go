package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/services"
)

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	var verrs audience.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule structure", "details": verrs})
	case errors.Is(err, audience.ErrInvalidRuleValue),
		errors.Is(err, audience.ErrUnsupportedOperator),
		errors.Is(err, audience.ErrRuleTooDeep),
		errors.Is(err, services.ErrInvalidID),
		errors.Is(err, services.ErrInvalidReceipt):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrCustomerNotFound),
		errors.Is(err, services.ErrSegmentNotFound),
		errors.Is(err, services.ErrLogNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicateKey),
		errors.Is(err, services.ErrDuplicateName),
		errors.Is(err, services.ErrCampaignStateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// paramID parses an ObjectID path parameter, answering 400 when malformed
func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// pagination reads page and limit query parameters, bounded the same way
// the services page their queries
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.NormalizePage(page, limit)
}

// currentUser returns the authenticated operator's id, or NilObjectID
func currentUser(c *gin.Context) primitive.ObjectID {
	raw, ok := c.Get("userID")
	if !ok {
		return primitive.NilObjectID
	}
	s, _ := raw.(string)
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

type pageResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int64       `json:"total"`
}
