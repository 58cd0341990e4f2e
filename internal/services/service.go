package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
)

// AuthService defines the interface for operator authentication
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
}

// CustomerService defines the interface for customer ingestion and reads
type CustomerService interface {
	CreateCustomer(ctx context.Context, req *models.CreateCustomerRequest, createdBy primitive.ObjectID) (*models.Customer, error)
	GetCustomer(ctx context.Context, id primitive.ObjectID) (*models.Customer, error)
	ListCustomers(ctx context.Context, page, limit int) ([]*models.Customer, int64, error)
}

// OrderService defines the interface for order ingestion and reads
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	ListOrders(ctx context.Context, page, limit int) ([]*models.Order, int64, error)
}

// AudienceService resolves rule sets against the customer base and manages segments
type AudienceService interface {
	// Validate reports every problem in a rule set as audience.ValidationErrors
	Validate(rules models.RuleGroup) error
	// Resolve compiles the rules and executes them. Customers are loaded
	// only when materialize is true.
	Resolve(ctx context.Context, rules models.RuleGroup, materialize bool) (*Audience, error)
	Preview(ctx context.Context, rules models.RuleGroup) (*PreviewResult, error)
	CreateSegment(ctx context.Context, req *models.CreateSegmentRequest, createdBy primitive.ObjectID) (*models.AudienceSegment, error)
	GetSegment(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error)
	ListSegments(ctx context.Context) ([]*models.AudienceSegment, error)
}

// CampaignService creates campaigns and runs their delivery
type CampaignService interface {
	// CreateCampaign stores a DRAFT campaign with its audience size and, when
	// configured, dispatches it straight away. A dispatch failure is returned
	// alongside the stored campaign.
	CreateCampaign(ctx context.Context, req *models.CreateCampaignRequest, createdBy primitive.ObjectID) (*models.Campaign, *DispatchResult, error)
	Dispatch(ctx context.Context, id, requestedBy primitive.ObjectID) (*DispatchResult, error)
	GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, page, limit int) ([]*models.Campaign, int64, error)
	ListLogs(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, int64, error)
}

// DeliveryService processes vendor delivery receipts
type DeliveryService interface {
	ProcessReceipt(ctx context.Context, receipt *models.DeliveryReceipt) (*models.CommunicationLog, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePage applies pagination defaults and bounds
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
