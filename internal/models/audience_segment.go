package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AudienceSegment is a named, reusable rule set
type AudienceSegment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Rules       RuleGroup          `bson:"rules" json:"rules"`
	CreatedBy   primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateSegmentRequest is the payload for segment creation
type CreateSegmentRequest struct {
	Name        string    `json:"name" binding:"required,min=3"`
	Description string    `json:"description"`
	Rules       RuleGroup `json:"rules"`
}
