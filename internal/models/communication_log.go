package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message statuses
const (
	MessageStatusPending   = "PENDING"
	MessageStatusSent      = "SENT"
	MessageStatusFailed    = "FAILED"
	MessageStatusDelivered = "DELIVERED"
	MessageStatusOpened    = "OPENED"
	MessageStatusClicked   = "CLICKED"
)

// DefaultVendorFailureReason is stored when a FAILED receipt carries no reason
const DefaultVendorFailureReason = "Unknown failure from vendor"

// IsValidMessageStatus reports whether s is a known message status
func IsValidMessageStatus(s string) bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusFailed,
		MessageStatusDelivered, MessageStatusOpened, MessageStatusClicked:
		return true
	}
	return false
}

// CommunicationLog tracks delivery of one personalized message to one customer
type CommunicationLog struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID      primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	CustomerID      primitive.ObjectID `bson:"customerId" json:"customerId"`
	Message         string             `bson:"message" json:"message"`
	Status          string             `bson:"status" json:"status"` // PENDING, SENT, FAILED, DELIVERED, OPENED, CLICKED
	VendorMessageID string             `bson:"vendorMessageId,omitempty" json:"vendorMessageId,omitempty"`
	SentAt          *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	FailedAt        *time.Time         `bson:"failedAt,omitempty" json:"failedAt,omitempty"`
	FailureReason   string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedBy       primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ReceiptUpdate is the terminal-state change applied to a log by a vendor receipt
type ReceiptUpdate struct {
	Status          string
	VendorMessageID string
	Timestamp       time.Time
	FailureReason   string
}

// DeliveryReceipt is the callback payload sent by the messaging vendor
type DeliveryReceipt struct {
	CommunicationLogID string    `json:"communicationLogId" binding:"required"`
	Status             string    `json:"status" binding:"required"`
	VendorMessageID    string    `json:"vendorMessageId" binding:"required"`
	Timestamp          time.Time `json:"timestamp" binding:"required"`
	FailureReason      string    `json:"failureReason,omitempty"`
}
