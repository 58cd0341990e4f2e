package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order represents a purchase made by a customer
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OrderID     string             `bson:"orderId" json:"orderId"`
	CustomerID  primitive.ObjectID `bson:"customerId" json:"customerId"`
	OrderAmount float64            `bson:"orderAmount" json:"orderAmount"`
	OrderDate   time.Time          `bson:"orderDate" json:"orderDate"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CreateOrderRequest is the payload for order ingestion
type CreateOrderRequest struct {
	OrderID     string    `json:"orderId" binding:"required"`
	CustomerID  string    `json:"customerId" binding:"required"`
	OrderAmount float64   `json:"orderAmount" binding:"min=0"`
	OrderDate   time.Time `json:"orderDate" binding:"required"`
}
