package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository stores customers in memory
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[primitive.ObjectID]models.Customer
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{customers: make(map[primitive.ObjectID]models.Customer)}
}

// Create inserts a customer, rejecting duplicate emails
func (r *CustomerRepository) Create(_ context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.Email == customer.Email {
			return repositories.ErrDuplicateKey
		}
	}
	customer.ID = primitive.NewObjectID()
	customer.CreatedAt = now()
	customer.UpdatedAt = customer.CreatedAt
	r.customers[customer.ID] = *customer
	return nil
}

// FindByID finds a customer by ID
func (r *CustomerRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

// FindAll returns customers newest first with pagination
func (r *CustomerRepository) FindAll(_ context.Context, page, limit int) ([]*models.Customer, error) {
	return paginate(r.collect(audience.MatchAll()), page, limit), nil
}

// Count counts all customers
func (r *CustomerRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.customers)), nil
}

// FindMatching returns every customer the filter selects
func (r *CustomerRepository) FindMatching(_ context.Context, filter audience.Filter) ([]*models.Customer, error) {
	return r.collect(filter), nil
}

// CountMatching counts the customers the filter selects
func (r *CustomerRepository) CountMatching(_ context.Context, filter audience.Filter) (int64, error) {
	return int64(len(r.collect(filter))), nil
}

// RecordOrder adds an order's amount and a visit to the customer
func (r *CustomerRepository) RecordOrder(_ context.Context, id primitive.ObjectID, amount float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.TotalSpends += amount
	c.VisitCount++
	c.LastActiveDate = &at
	c.UpdatedAt = now()
	r.customers[id] = c
	return nil
}

func (r *CustomerRepository) collect(filter audience.Filter) []*models.Customer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.Customer{}
	for _, c := range r.customers {
		c := c
		if filter.Match(&c) {
			out = append(out, &c)
		}
	}
	newestFirst(out, func(c *models.Customer) (time.Time, primitive.ObjectID) { return c.CreatedAt, c.ID })
	return out
}
