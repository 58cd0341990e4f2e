package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no document
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an insert violates a unique index
	ErrDuplicateKey = errors.New("duplicate key")
)

// UserRepository defines the interface for operator account operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// CustomerRepository defines the interface for customer data operations
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error)
	FindAll(ctx context.Context, page, limit int) ([]*models.Customer, error)
	Count(ctx context.Context) (int64, error)
	// FindMatching returns every customer the filter selects
	FindMatching(ctx context.Context, filter audience.Filter) ([]*models.Customer, error)
	CountMatching(ctx context.Context, filter audience.Filter) (int64, error)
	// RecordOrder atomically adds an order's amount and one visit to the customer
	RecordOrder(ctx context.Context, id primitive.ObjectID, amount float64, at time.Time) error
}

// OrderRepository defines the interface for order data operations
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindAll(ctx context.Context, page, limit int) ([]*models.Order, error)
	FindByCustomerID(ctx context.Context, customerID primitive.ObjectID) ([]*models.Order, error)
	Count(ctx context.Context) (int64, error)
}

// AudienceSegmentRepository defines the interface for segment data operations
type AudienceSegmentRepository interface {
	Create(ctx context.Context, segment *models.AudienceSegment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error)
	FindByName(ctx context.Context, name string) (*models.AudienceSegment, error)
	FindAll(ctx context.Context) ([]*models.AudienceSegment, error)
}

// CampaignRepository defines the interface for campaign data operations.
// Every status and counter change is a single atomic store operation.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	FindAll(ctx context.Context, page, limit int) ([]*models.Campaign, error)
	Count(ctx context.Context) (int64, error)
	// BeginDispatch moves a campaign that is neither SENDING nor COMPLETED
	// to SENDING and zeroes its counters. It returns ErrNotFound when the
	// campaign is missing or not eligible.
	BeginDispatch(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	SetAudienceSize(ctx context.Context, id primitive.ObjectID, size int) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error
	MarkCompleted(ctx context.Context, id primitive.ObjectID, audienceSize int) error
	IncrementCounters(ctx context.Context, id primitive.ObjectID, sent, failed int) error
	// CompleteIfDelivered sets COMPLETED when audienceSize > 0 equals
	// sentCount + failedCount. It reports whether this call made the change.
	CompleteIfDelivered(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// CommunicationLogRepository defines the interface for delivery log operations
type CommunicationLogRepository interface {
	// Upsert creates or resets the log keyed by (campaignId, customerId) to
	// PENDING and returns the stored document.
	Upsert(ctx context.Context, log *models.CommunicationLog) (*models.CommunicationLog, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommunicationLog, error)
	FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error)
	CountByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (int64, error)
	// ApplyReceipt writes a vendor receipt to the log and returns the updated log
	ApplyReceipt(ctx context.Context, id primitive.ObjectID, update models.ReceiptUpdate) (*models.CommunicationLog, error)
	MarkDispatchFailed(ctx context.Context, id primitive.ObjectID, reason string, at time.Time) error
}
