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

var _ repositories.CommunicationLogRepository = (*CommunicationLogRepository)(nil)

// CommunicationLogRepository handles MongoDB operations for delivery logs
type CommunicationLogRepository struct {
	collection *mongo.Collection
}

// NewCommunicationLogRepository creates a new CommunicationLogRepository
func NewCommunicationLogRepository(db *mongo.Database) *CommunicationLogRepository {
	return &CommunicationLogRepository{
		collection: db.Collection("communication_logs"),
	}
}

// Upsert creates the log for a (campaign, customer) pair, or resets an
// existing one to PENDING with its terminal fields cleared.
func (r *CommunicationLogRepository) Upsert(ctx context.Context, log *models.CommunicationLog) (*models.CommunicationLog, error) {
	now := time.Now()
	filter := bson.M{"campaignId": log.CampaignID, "customerId": log.CustomerID}

	set := bson.M{
		"message":   log.Message,
		"status":    models.MessageStatusPending,
		"updatedAt": now,
	}
	if !log.CreatedBy.IsZero() {
		set["createdBy"] = log.CreatedBy
	}
	update := bson.M{
		"$set": set,
		"$unset": bson.M{
			"vendorMessageId": "",
			"sentAt":          "",
			"failedAt":        "",
			"failureReason":   "",
		},
		"$setOnInsert": bson.M{
			"campaignId": log.CampaignID,
			"customerId": log.CustomerID,
			"createdAt":  now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.CommunicationLog
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return nil, translateError(err)
	}
	return &stored, nil
}

// FindByID finds a log by ID
func (r *CommunicationLogRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommunicationLog, error) {
	var log models.CommunicationLog
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&log); err != nil {
		return nil, translateError(err)
	}
	return &log, nil
}

// FindByCampaignID finds logs by campaign ID with pagination
func (r *CommunicationLogRepository) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"campaignId": campaignID}, pageOptions(page, limit, "createdAt"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*models.CommunicationLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*models.CommunicationLog{}
	}
	return logs, nil
}

// CountByCampaignID counts logs for a campaign
func (r *CommunicationLogRepository) CountByCampaignID(ctx context.Context, campaignID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"campaignId": campaignID})
}

// ApplyReceipt stores a vendor receipt on the log
func (r *CommunicationLogRepository) ApplyReceipt(ctx context.Context, id primitive.ObjectID, u models.ReceiptUpdate) (*models.CommunicationLog, error) {
	set := bson.M{
		"status":          u.Status,
		"vendorMessageId": u.VendorMessageID,
		"updatedAt":       time.Now(),
	}
	unset := bson.M{}
	switch u.Status {
	case models.MessageStatusSent, models.MessageStatusDelivered:
		set["sentAt"] = u.Timestamp
		unset["failedAt"] = ""
		unset["failureReason"] = ""
	case models.MessageStatusFailed:
		set["failedAt"] = u.Timestamp
		set["failureReason"] = u.FailureReason
		unset["sentAt"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var log models.CommunicationLog
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&log); err != nil {
		return nil, translateError(err)
	}
	return &log, nil
}

// MarkDispatchFailed records a failed vendor hand-off against the log
func (r *CommunicationLogRepository) MarkDispatchFailed(ctx context.Context, id primitive.ObjectID, reason string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"status":        models.MessageStatusFailed,
			"failedAt":      at,
			"failureReason": reason,
			"updatedAt":     time.Now(),
		},
		"$unset": bson.M{"sentAt": ""},
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
