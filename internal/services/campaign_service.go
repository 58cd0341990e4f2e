package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
	"github.com/ArowuTest/crm-campaign-backend/pkg/vendor"
)

// VendorSender hands one message to the messaging vendor
type VendorSender interface {
	Send(ctx context.Context, req vendor.SendRequest) (*vendor.SendResponse, error)
}

// DispatchResult summarizes a started delivery run
type DispatchResult struct {
	CampaignID   string `json:"campaignId"`
	Status       string `json:"status"`
	AudienceSize int    `json:"audienceSize"`
	Initiated    int    `json:"initiated"`
}

// CampaignOptions configures campaign dispatch
type CampaignOptions struct {
	CallbackURL      string
	DispatchOnCreate bool
	SendTimeout      time.Duration
	MaxInFlight      int
}

var _ CampaignService = (*CampaignServiceImpl)(nil)

// CampaignServiceImpl implements CampaignService. Vendor calls run as
// detached tasks bounded by MaxInFlight; Wait drains them.
type CampaignServiceImpl struct {
	campaignRepo repositories.CampaignRepository
	logRepo      repositories.CommunicationLogRepository
	audience     AudienceService
	sender       VendorSender
	opts         CampaignOptions
	now          func() time.Time

	inFlight chan struct{}
	tasks    sync.WaitGroup
}

// NewCampaignService creates a new CampaignServiceImpl
func NewCampaignService(campaignRepo repositories.CampaignRepository, logRepo repositories.CommunicationLogRepository, audienceService AudienceService, sender VendorSender, opts CampaignOptions) *CampaignServiceImpl {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &CampaignServiceImpl{
		campaignRepo: campaignRepo,
		logRepo:      logRepo,
		audience:     audienceService,
		sender:       sender,
		opts:         opts,
		now:          time.Now,
		inFlight:     make(chan struct{}, opts.MaxInFlight),
	}
}

// CreateCampaign validates the rules, snapshots the audience size and stores
// the campaign as DRAFT before optionally dispatching it.
func (s *CampaignServiceImpl) CreateCampaign(ctx context.Context, req *models.CreateCampaignRequest, createdBy primitive.ObjectID) (*models.Campaign, *DispatchResult, error) {
	if err := s.audience.Validate(req.AudienceRules); err != nil {
		return nil, nil, err
	}
	aud, err := s.audience.Resolve(ctx, req.AudienceRules, false)
	if err != nil {
		return nil, nil, err
	}

	campaign := &models.Campaign{
		Name:            strings.TrimSpace(req.Name),
		AudienceRules:   req.AudienceRules,
		MessageTemplate: req.MessageTemplate,
		Status:          models.CampaignStatusDraft,
		AudienceSize:    int(aud.Count),
		CreatedBy:       createdBy,
		Tags:            req.Tags,
	}
	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		return nil, nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	slog.Info("Campaign created", "campaignId", campaign.ID.Hex(), "audienceSize", campaign.AudienceSize)

	if !s.opts.DispatchOnCreate {
		return campaign, nil, nil
	}

	result, dispatchErr := s.Dispatch(ctx, campaign.ID, createdBy)
	if current, err := s.campaignRepo.FindByID(ctx, campaign.ID); err == nil {
		campaign = current
	}
	return campaign, result, dispatchErr
}

// Dispatch starts a delivery run. It refuses campaigns that are SENDING or
// COMPLETED, resolves the audience, upserts one log per customer and hands
// each message to the vendor without waiting for the outcome.
func (s *CampaignServiceImpl) Dispatch(ctx context.Context, id, requestedBy primitive.ObjectID) (*DispatchResult, error) {
	campaign, err := s.campaignRepo.BeginDispatch(ctx, id)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to start dispatch: %w", err)
		}
		if _, ferr := s.campaignRepo.FindByID(ctx, id); ferr != nil {
			if errors.Is(ferr, repositories.ErrNotFound) {
				return nil, ErrCampaignNotFound
			}
			return nil, ferr
		}
		return nil, ErrCampaignStateConflict
	}
	slog.Info("Campaign dispatch started", "campaignId", id.Hex())

	// SENDING is committed; the rest of the run must outlive the caller
	ctx = context.WithoutCancel(ctx)

	aud, err := s.audience.Resolve(ctx, campaign.AudienceRules, true)
	if err != nil {
		s.fail(ctx, id, fmt.Sprintf("Audience resolution failed: %v", err))
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}

	result := &DispatchResult{CampaignID: id.Hex(), AudienceSize: len(aud.Customers)}
	if len(aud.Customers) == 0 {
		if err := s.campaignRepo.MarkCompleted(ctx, id, 0); err != nil {
			return nil, fmt.Errorf("failed to complete empty campaign: %w", err)
		}
		slog.Info("Campaign audience is empty; marked completed", "campaignId", id.Hex())
		result.Status = models.CampaignStatusCompleted
		return result, nil
	}

	if err := s.campaignRepo.SetAudienceSize(ctx, id, len(aud.Customers)); err != nil {
		s.fail(ctx, id, fmt.Sprintf("Failed to record audience size: %v", err))
		return nil, fmt.Errorf("failed to record audience size: %w", err)
	}
	result.Status = models.CampaignStatusSending

	for _, customer := range aud.Customers {
		entry, err := s.logRepo.Upsert(ctx, &models.CommunicationLog{
			CampaignID: id,
			CustomerID: customer.ID,
			Message:    Personalize(campaign.MessageTemplate, customer),
			CreatedBy:  requestedBy,
		})
		if err != nil {
			slog.Error("Failed to upsert communication log", "campaignId", id.Hex(), "customerId", customer.ID.Hex(), "error", err)
			s.recordFailure(ctx, id)
			continue
		}
		s.send(id, customer, entry)
		result.Initiated++
	}

	slog.Info("Campaign dispatch initiated", "campaignId", id.Hex(), "initiated", result.Initiated, "audienceSize", result.AudienceSize)
	return result, nil
}

// send runs one vendor call as a detached task
func (s *CampaignServiceImpl) send(campaignID primitive.ObjectID, customer *models.Customer, entry *models.CommunicationLog) {
	req := vendor.SendRequest{
		CustomerID:         customer.ID.Hex(),
		CustomerEmail:      customer.Email,
		Message:            entry.Message,
		CommunicationLogID: entry.ID.Hex(),
		CallbackURL:        s.opts.CallbackURL,
	}

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.inFlight <- struct{}{}
		defer func() { <-s.inFlight }()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Vendor dispatch task panicked", "logId", req.CommunicationLogID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SendTimeout)
		defer cancel()

		if _, err := s.sender.Send(ctx, req); err != nil {
			reason := dispatchFailureReason(err)
			slog.Warn("Vendor dispatch failed", "campaignId", campaignID.Hex(), "logId", req.CommunicationLogID, "reason", reason)
			if err := s.logRepo.MarkDispatchFailed(ctx, entry.ID, reason, s.now()); err != nil {
				slog.Error("Failed to mark communication log failed", "logId", req.CommunicationLogID, "error", err)
			}
			s.recordFailure(ctx, campaignID)
		}
	}()
}

func dispatchFailureReason(err error) string {
	var dispatchErr *vendor.DispatchError
	if errors.As(err, &dispatchErr) && !dispatchErr.IsNetwork() {
		return fmt.Sprintf("Vendor API error: %d %s", dispatchErr.StatusCode, strings.TrimSpace(dispatchErr.Body))
	}
	return fmt.Sprintf("Network error: %v", err)
}

// recordFailure counts one failed recipient and re-checks completion
func (s *CampaignServiceImpl) recordFailure(ctx context.Context, campaignID primitive.ObjectID) {
	if err := s.campaignRepo.IncrementCounters(ctx, campaignID, 0, 1); err != nil {
		slog.Error("Failed to increment failed count", "campaignId", campaignID.Hex(), "error", err)
		return
	}
	completed, err := s.campaignRepo.CompleteIfDelivered(ctx, campaignID)
	if err != nil {
		slog.Error("Failed to check campaign completion", "campaignId", campaignID.Hex(), "error", err)
		return
	}
	if completed {
		slog.Info("Campaign completed", "campaignId", campaignID.Hex())
	}
}

func (s *CampaignServiceImpl) fail(ctx context.Context, id primitive.ObjectID, reason string) {
	slog.Error("Campaign dispatch failed", "campaignId", id.Hex(), "reason", reason)
	if err := s.campaignRepo.MarkFailed(ctx, id, reason); err != nil {
		slog.Error("Failed to mark campaign failed", "campaignId", id.Hex(), "error", err)
	}
}

// Wait blocks until all detached vendor calls finish or ctx is done
func (s *CampaignServiceImpl) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetCampaign returns one campaign
func (s *CampaignServiceImpl) GetCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}

// ListCampaigns returns a page of campaigns, newest first, and the total count
func (s *CampaignServiceImpl) ListCampaigns(ctx context.Context, page, limit int) ([]*models.Campaign, int64, error) {
	page, limit = NormalizePage(page, limit)
	campaigns, err := s.campaignRepo.FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.campaignRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ListLogs returns a page of a campaign's communication logs and their total
func (s *CampaignServiceImpl) ListLogs(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, int64, error) {
	if _, err := s.GetCampaign(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	page, limit = NormalizePage(page, limit)
	logs, err := s.logRepo.FindByCampaignID(ctx, campaignID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.logRepo.CountByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
