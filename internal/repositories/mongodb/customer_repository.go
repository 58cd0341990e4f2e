package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

// CustomerRepository handles MongoDB operations for customers
type CustomerRepository struct {
	collection *mongo.Collection
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *mongo.Database) *CustomerRepository {
	return &CustomerRepository{
		collection: db.Collection("customers"),
	}
}

// Create inserts a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	customer.ID = primitive.NewObjectID()
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt
	_, err := r.collection.InsertOne(ctx, customer)
	return translateError(err)
}

// FindByID finds a customer by ID
func (r *CustomerRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&customer); err != nil {
		return nil, translateError(err)
	}
	return &customer, nil
}

// FindAll finds customers with pagination, newest first
func (r *CustomerRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Customer, error) {
	return r.find(ctx, bson.M{}, page, limit)
}

// Count counts all customers
func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// FindMatching returns every customer selected by the audience filter
func (r *CustomerRepository) FindMatching(ctx context.Context, filter audience.Filter) ([]*models.Customer, error) {
	return r.find(ctx, filter.BSON(), 1, 0)
}

// CountMatching counts the customers selected by the audience filter
func (r *CustomerRepository) CountMatching(ctx context.Context, filter audience.Filter) (int64, error) {
	return r.collection.CountDocuments(ctx, filter.BSON())
}

// RecordOrder adds an order to the customer's running totals
func (r *CustomerRepository) RecordOrder(ctx context.Context, id primitive.ObjectID, amount float64, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{"totalSpends": amount, "visitCount": 1},
		"$set": bson.M{"lastActiveDate": at, "updatedAt": time.Now()},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) find(ctx context.Context, filter bson.M, page, limit int) ([]*models.Customer, error) {
	cursor, err := r.collection.Find(ctx, filter, pageOptions(page, limit, "createdAt"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var customers []*models.Customer
	if err := cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	return customers, nil
}
