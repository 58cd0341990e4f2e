package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer represents a CRM customer targeted by audience rules
type Customer struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	TotalSpends    float64            `bson:"totalSpends" json:"totalSpends"`
	VisitCount     int                `bson:"visitCount" json:"visitCount"`
	LastActiveDate *time.Time         `bson:"lastActiveDate,omitempty" json:"lastActiveDate,omitempty"`
	CreatedBy      primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateCustomerRequest is the payload for customer ingestion
type CreateCustomerRequest struct {
	Name           string     `json:"name" binding:"required"`
	Email          string     `json:"email" binding:"required,email"`
	TotalSpends    float64    `json:"totalSpends" binding:"min=0"`
	VisitCount     int        `json:"visitCount" binding:"min=0"`
	LastActiveDate *time.Time `json:"lastActiveDate"`
}
