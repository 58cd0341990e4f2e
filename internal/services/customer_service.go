package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ CustomerService = (*CustomerServiceImpl)(nil)

// CustomerServiceImpl implements CustomerService
type CustomerServiceImpl struct {
	customerRepo repositories.CustomerRepository
}

// NewCustomerService creates a new CustomerServiceImpl
func NewCustomerService(customerRepo repositories.CustomerRepository) *CustomerServiceImpl {
	return &CustomerServiceImpl{customerRepo: customerRepo}
}

// CreateCustomer stores a customer with a normalized, unique email
func (s *CustomerServiceImpl) CreateCustomer(ctx context.Context, req *models.CreateCustomerRequest, createdBy primitive.ObjectID) (*models.Customer, error) {
	customer := &models.Customer{
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		TotalSpends:    req.TotalSpends,
		VisitCount:     req.VisitCount,
		LastActiveDate: req.LastActiveDate,
		CreatedBy:      createdBy,
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: customer with email %s", ErrDuplicateKey, customer.Email)
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	slog.Info("Customer created", "customerId", customer.ID.Hex())
	return customer, nil
}

// GetCustomer returns one customer
func (s *CustomerServiceImpl) GetCustomer(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return customer, nil
}

// ListCustomers returns a page of customers and the total count
func (s *CustomerServiceImpl) ListCustomers(ctx context.Context, page, limit int) ([]*models.Customer, int64, error) {
	page, limit = NormalizePage(page, limit)
	customers, err := s.customerRepo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.customerRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}
