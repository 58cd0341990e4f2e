package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// OrderRepository handles MongoDB operations for orders
type OrderRepository struct {
	collection *mongo.Collection
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{
		collection: db.Collection("orders"),
	}
}

// Create inserts a new order
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.ID = primitive.NewObjectID()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	_, err := r.collection.InsertOne(ctx, order)
	return translateError(err)
}

// FindAll finds orders with pagination, most recent order date first
func (r *OrderRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Order, error) {
	return r.find(ctx, bson.M{}, page, limit)
}

// FindByCustomerID finds every order placed by a customer
func (r *OrderRepository) FindByCustomerID(ctx context.Context, customerID primitive.ObjectID) ([]*models.Order, error) {
	return r.find(ctx, bson.M{"customerId": customerID}, 1, 0)
}

// Count counts all orders
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M, page, limit int) ([]*models.Order, error) {
	cursor, err := r.collection.Find(ctx, filter, pageOptions(page, limit, "orderDate"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []*models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}
