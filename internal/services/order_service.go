package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ OrderService = (*OrderServiceImpl)(nil)

// OrderServiceImpl ingests orders and rolls them up into customer totals
type OrderServiceImpl struct {
	orderRepo    repositories.OrderRepository
	customerRepo repositories.CustomerRepository
	now          func() time.Time
}

// NewOrderService creates a new OrderServiceImpl
func NewOrderService(orderRepo repositories.OrderRepository, customerRepo repositories.CustomerRepository) *OrderServiceImpl {
	return &OrderServiceImpl{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		now:          time.Now,
	}
}

// CreateOrder stores an order for an existing customer, then adds the
// amount to the customer's totalSpends, bumps visitCount and refreshes
// lastActiveDate.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	slog.Info("Processing order", "orderId", req.OrderID, "customerId", req.CustomerID, "amount", req.OrderAmount)

	customerID, err := primitive.ObjectIDFromHex(req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: customerId %q", ErrInvalidID, req.CustomerID)
	}
	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			slog.Warn("Customer not found for order", "customerId", req.CustomerID)
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to retrieve customer: %w", err)
	}

	order := &models.Order{
		OrderID:     strings.TrimSpace(req.OrderID),
		CustomerID:  customerID,
		OrderAmount: req.OrderAmount,
		OrderDate:   req.OrderDate,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: order %s", ErrDuplicateKey, order.OrderID)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.customerRepo.RecordOrder(ctx, customerID, order.OrderAmount, s.now()); err != nil {
		slog.Error("Failed to update customer totals", "customerId", req.CustomerID, "orderId", order.OrderID, "error", err)
		return nil, fmt.Errorf("failed to update customer totals: %w", err)
	}

	slog.Info("Order processed successfully", "orderId", order.OrderID, "customerId", req.CustomerID)
	return order, nil
}

// ListOrders returns a page of orders and the total count
func (s *OrderServiceImpl) ListOrders(ctx context.Context, page, limit int) ([]*models.Order, int64, error) {
	page, limit = NormalizePage(page, limit)
	orders, err := s.orderRepo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
