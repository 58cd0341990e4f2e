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

var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// CampaignRepository implements the repositories.CampaignRepository interface
type CampaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *mongo.Database) *CampaignRepository {
	return &CampaignRepository{
		collection: db.Collection("campaigns"),
	}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	campaign.ID = primitive.NewObjectID()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = campaign.CreatedAt
	_, err := r.collection.InsertOne(ctx, campaign)
	return translateError(err)
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign); err != nil {
		return nil, translateError(err)
	}
	return &campaign, nil
}

// FindAll finds all campaigns with pagination, newest first
func (r *CampaignRepository) FindAll(ctx context.Context, page, limit int) ([]*models.Campaign, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, pageOptions(page, limit, "createdAt"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}

	// Ensure an empty slice is returned instead of nil if no campaigns found
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}

// Count counts all campaigns
func (r *CampaignRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// BeginDispatch atomically claims a campaign for a delivery run
func (r *CampaignRepository) BeginDispatch(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$nin": bson.A{models.CampaignStatusSending, models.CampaignStatusCompleted}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":       models.CampaignStatusSending,
			"sentCount":    0,
			"failedCount":  0,
			"audienceSize": 0,
			"updatedAt":    time.Now(),
		},
		"$unset": bson.M{"failureReason": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var campaign models.Campaign
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&campaign); err != nil {
		return nil, translateError(err)
	}
	return &campaign, nil
}

// SetAudienceSize records the resolved audience size of a running campaign
func (r *CampaignRepository) SetAudienceSize(ctx context.Context, id primitive.ObjectID, size int) error {
	return r.set(ctx, id, bson.M{"audienceSize": size})
}

// MarkFailed moves a campaign to FAILED with a reason
func (r *CampaignRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, reason string) error {
	return r.set(ctx, id, bson.M{"status": models.CampaignStatusFailed, "failureReason": reason})
}

// MarkCompleted moves a campaign to COMPLETED with the given audience size
func (r *CampaignRepository) MarkCompleted(ctx context.Context, id primitive.ObjectID, audienceSize int) error {
	return r.set(ctx, id, bson.M{"status": models.CampaignStatusCompleted, "audienceSize": audienceSize})
}

// IncrementCounters atomically adds to sentCount and failedCount
func (r *CampaignRepository) IncrementCounters(ctx context.Context, id primitive.ObjectID, sent, failed int) error {
	update := bson.M{
		"$inc": bson.M{"sentCount": sent, "failedCount": failed},
		"$set": bson.M{"updatedAt": time.Now()},
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

// CompleteIfDelivered flips the campaign to COMPLETED once every recipient
// has a terminal outcome. The filter makes the transition happen once.
func (r *CampaignRepository) CompleteIfDelivered(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":          id,
		"status":       bson.M{"$ne": models.CampaignStatusCompleted},
		"audienceSize": bson.M{"$gt": 0},
		"$expr": bson.M{"$eq": bson.A{
			"$audienceSize",
			bson.M{"$add": bson.A{"$sentCount", "$failedCount"}},
		}},
	}
	update := bson.M{"$set": bson.M{"status": models.CampaignStatusCompleted, "updatedAt": time.Now()}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *CampaignRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
