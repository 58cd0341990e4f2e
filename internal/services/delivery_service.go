package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ DeliveryService = (*DeliveryServiceImpl)(nil)

// DeliveryServiceImpl applies vendor delivery receipts to logs and campaigns
type DeliveryServiceImpl struct {
	logRepo      repositories.CommunicationLogRepository
	campaignRepo repositories.CampaignRepository
}

// NewDeliveryService creates a new DeliveryServiceImpl
func NewDeliveryService(logRepo repositories.CommunicationLogRepository, campaignRepo repositories.CampaignRepository) *DeliveryServiceImpl {
	return &DeliveryServiceImpl{
		logRepo:      logRepo,
		campaignRepo: campaignRepo,
	}
}

// ProcessReceipt updates the log named by the receipt, counts SENT,
// DELIVERED and FAILED outcomes against its campaign, and completes the
// campaign once every recipient is accounted for. Receipts are not
// deduplicated.
func (s *DeliveryServiceImpl) ProcessReceipt(ctx context.Context, receipt *models.DeliveryReceipt) (*models.CommunicationLog, error) {
	logID, err := primitive.ObjectIDFromHex(receipt.CommunicationLogID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed communicationLogId %q", ErrInvalidReceipt, receipt.CommunicationLogID)
	}
	if !models.IsValidMessageStatus(receipt.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidReceipt, receipt.Status)
	}
	if receipt.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", ErrInvalidReceipt)
	}

	update := models.ReceiptUpdate{
		Status:          receipt.Status,
		VendorMessageID: receipt.VendorMessageID,
		Timestamp:       receipt.Timestamp,
		FailureReason:   receipt.FailureReason,
	}
	if update.Status == models.MessageStatusFailed && update.FailureReason == "" {
		update.FailureReason = models.DefaultVendorFailureReason
	}

	slog.Info("Processing delivery receipt", "logId", logID.Hex(), "status", update.Status)
	entry, err := s.logRepo.ApplyReceipt(ctx, logID, update)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			slog.Warn("Delivery receipt for unknown communication log", "logId", logID.Hex())
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to update communication log: %w", err)
	}

	if entry.CampaignID.IsZero() {
		return entry, nil
	}

	var sent, failed int
	switch update.Status {
	case models.MessageStatusSent, models.MessageStatusDelivered:
		sent = 1
	case models.MessageStatusFailed:
		failed = 1
	default:
		return entry, nil
	}

	if err := s.campaignRepo.IncrementCounters(ctx, entry.CampaignID, sent, failed); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			slog.Warn("Delivery receipt for a log whose campaign no longer exists", "logId", logID.Hex(), "campaignId", entry.CampaignID.Hex())
			return entry, nil
		}
		return nil, fmt.Errorf("failed to update campaign counters: %w", err)
	}

	completed, err := s.campaignRepo.CompleteIfDelivered(ctx, entry.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to check campaign completion: %w", err)
	}
	if completed {
		slog.Info("Campaign completed", "campaignId", entry.CampaignID.Hex())
	}
	return entry, nil
}
