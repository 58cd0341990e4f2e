package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// OrderRepository stores orders in memory
type OrderRepository struct {
	mu     sync.RWMutex
	orders []models.Order
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// Create inserts an order, rejecting duplicate order ids
func (r *OrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderID == order.OrderID {
			return repositories.ErrDuplicateKey
		}
	}
	order.ID = primitive.NewObjectID()
	order.CreatedAt = now()
	order.UpdatedAt = order.CreatedAt
	r.orders = append(r.orders, *order)
	return nil
}

// FindAll returns orders, most recent order date first
func (r *OrderRepository) FindAll(_ context.Context, page, limit int) ([]*models.Order, error) {
	return paginate(r.collect(func(*models.Order) bool { return true }), page, limit), nil
}

// FindByCustomerID returns every order placed by a customer
func (r *OrderRepository) FindByCustomerID(_ context.Context, customerID primitive.ObjectID) ([]*models.Order, error) {
	return r.collect(func(o *models.Order) bool { return o.CustomerID == customerID }), nil
}

// Count counts all orders
func (r *OrderRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders)), nil
}

func (r *OrderRepository) collect(keep func(*models.Order) bool) []*models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.Order{}
	for _, o := range r.orders {
		o := o
		if keep(&o) {
			out = append(out, &o)
		}
	}
	newestFirst(out, func(o *models.Order) (time.Time, primitive.ObjectID) { return o.OrderDate, o.ID })
	return out
}
