package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusScheduled = "SCHEDULED"
	CampaignStatusSending   = "SENDING"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusFailed    = "FAILED"
)

// Campaign represents a personalized messaging campaign
type Campaign struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string             `bson:"name" json:"name"`
	AudienceRules   RuleGroup          `bson:"audienceRules" json:"audienceRules"`
	MessageTemplate string             `bson:"messageTemplate" json:"messageTemplate"`
	Status          string             `bson:"status" json:"status"` // DRAFT, SCHEDULED, SENDING, COMPLETED, FAILED
	AudienceSize    int                `bson:"audienceSize" json:"audienceSize"`
	SentCount       int                `bson:"sentCount" json:"sentCount"`
	FailedCount     int                `bson:"failedCount" json:"failedCount"`
	CreatedBy       primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	Tags            []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	FailureReason   string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CanDispatch reports whether a delivery run may start from the current status
func (c *Campaign) CanDispatch() bool {
	return c.Status != CampaignStatusSending && c.Status != CampaignStatusCompleted
}

// IsDelivered reports whether every recipient has a terminal outcome
func (c *Campaign) IsDelivered() bool {
	return c.AudienceSize > 0 && c.AudienceSize == c.SentCount+c.FailedCount
}

// CreateCampaignRequest is the payload for campaign creation
type CreateCampaignRequest struct {
	Name            string    `json:"name" binding:"required,min=3"`
	AudienceRules   RuleGroup `json:"audienceRules"`
	MessageTemplate string    `json:"messageTemplate" binding:"required,min=10"`
	Tags            []string  `json:"tags"`
}
