package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.AudienceSegmentRepository = (*AudienceSegmentRepository)(nil)

// AudienceSegmentRepository handles MongoDB operations for audience segments
type AudienceSegmentRepository struct {
	collection *mongo.Collection
}

// NewAudienceSegmentRepository creates a new AudienceSegmentRepository
func NewAudienceSegmentRepository(db *mongo.Database) *AudienceSegmentRepository {
	return &AudienceSegmentRepository{
		collection: db.Collection("audience_segments"),
	}
}

// Create inserts a new segment
func (r *AudienceSegmentRepository) Create(ctx context.Context, segment *models.AudienceSegment) error {
	segment.ID = primitive.NewObjectID()
	segment.CreatedAt = time.Now()
	segment.UpdatedAt = segment.CreatedAt
	_, err := r.collection.InsertOne(ctx, segment)
	return translateError(err)
}

// FindByID finds a segment by ID
func (r *AudienceSegmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByName finds a segment by its unique name
func (r *AudienceSegmentRepository) FindByName(ctx context.Context, name string) (*models.AudienceSegment, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

// FindAll returns every segment, newest first
func (r *AudienceSegmentRepository) FindAll(ctx context.Context) ([]*models.AudienceSegment, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var segments []*models.AudienceSegment
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, err
	}
	if segments == nil {
		segments = []*models.AudienceSegment{}
	}
	return segments, nil
}

func (r *AudienceSegmentRepository) findOne(ctx context.Context, filter bson.M) (*models.AudienceSegment, error) {
	var segment models.AudienceSegment
	if err := r.collection.FindOne(ctx, filter).Decode(&segment); err != nil {
		return nil, translateError(err)
	}
	return &segment, nil
}
