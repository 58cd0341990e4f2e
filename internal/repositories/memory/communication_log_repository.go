package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.CommunicationLogRepository = (*CommunicationLogRepository)(nil)

type logKey struct {
	campaignID primitive.ObjectID
	customerID primitive.ObjectID
}

// CommunicationLogRepository stores delivery logs in memory, unique per
// (campaign, customer) pair
type CommunicationLogRepository struct {
	mu    sync.RWMutex
	logs  map[primitive.ObjectID]models.CommunicationLog
	byKey map[logKey]primitive.ObjectID
}

// NewCommunicationLogRepository creates a new CommunicationLogRepository
func NewCommunicationLogRepository() *CommunicationLogRepository {
	return &CommunicationLogRepository{
		logs:  make(map[primitive.ObjectID]models.CommunicationLog),
		byKey: make(map[logKey]primitive.ObjectID),
	}
}

// Upsert creates or resets the log for a (campaign, customer) pair
func (r *CommunicationLogRepository) Upsert(_ context.Context, log *models.CommunicationLog) (*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := now()
	key := logKey{campaignID: log.CampaignID, customerID: log.CustomerID}
	stored, exists := r.logs[r.byKey[key]]
	if !exists {
		stored = models.CommunicationLog{
			ID:         primitive.NewObjectID(),
			CampaignID: log.CampaignID,
			CustomerID: log.CustomerID,
			CreatedAt:  ts,
		}
		r.byKey[key] = stored.ID
	}
	stored.Message = log.Message
	stored.Status = models.MessageStatusPending
	if !log.CreatedBy.IsZero() {
		stored.CreatedBy = log.CreatedBy
	}
	stored.VendorMessageID = ""
	stored.SentAt = nil
	stored.FailedAt = nil
	stored.FailureReason = ""
	stored.UpdatedAt = ts
	r.logs[stored.ID] = stored
	return &stored, nil
}

// FindByID finds a log by ID
func (r *CommunicationLogRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.CommunicationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &l, nil
}

// FindByCampaignID returns a campaign's logs newest first with pagination
func (r *CommunicationLogRepository) FindByCampaignID(_ context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.CommunicationLog, error) {
	r.mu.RLock()
	out := []*models.CommunicationLog{}
	for _, l := range r.logs {
		l := l
		if l.CampaignID == campaignID {
			out = append(out, &l)
		}
	}
	r.mu.RUnlock()
	newestFirst(out, func(l *models.CommunicationLog) (time.Time, primitive.ObjectID) { return l.CreatedAt, l.ID })
	return paginate(out, page, limit), nil
}

// CountByCampaignID counts a campaign's logs
func (r *CommunicationLogRepository) CountByCampaignID(_ context.Context, campaignID primitive.ObjectID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, l := range r.logs {
		if l.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

// ApplyReceipt stores a vendor receipt on the log
func (r *CommunicationLogRepository) ApplyReceipt(_ context.Context, id primitive.ObjectID, u models.ReceiptUpdate) (*models.CommunicationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	l.Status = u.Status
	l.VendorMessageID = u.VendorMessageID
	ts := u.Timestamp
	switch u.Status {
	case models.MessageStatusSent, models.MessageStatusDelivered:
		l.SentAt = &ts
		l.FailedAt = nil
		l.FailureReason = ""
	case models.MessageStatusFailed:
		l.FailedAt = &ts
		l.FailureReason = u.FailureReason
		l.SentAt = nil
	}
	l.UpdatedAt = now()
	r.logs[id] = l
	return &l, nil
}

// MarkDispatchFailed records a failed vendor hand-off against the log
func (r *CommunicationLogRepository) MarkDispatchFailed(_ context.Context, id primitive.ObjectID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	l.Status = models.MessageStatusFailed
	l.FailedAt = &at
	l.FailureReason = reason
	l.SentAt = nil
	l.UpdatedAt = now()
	r.logs[id] = l
	return nil
}
