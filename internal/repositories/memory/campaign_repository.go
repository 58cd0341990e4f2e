package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// CampaignRepository stores campaigns in memory. Each method holds the
// lock for its whole read-modify-write, so updates are atomic.
type CampaignRepository struct {
	mu        sync.RWMutex
	campaigns map[primitive.ObjectID]models.Campaign
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{campaigns: make(map[primitive.ObjectID]models.Campaign)}
}

// Create inserts a campaign
func (r *CampaignRepository) Create(_ context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign.ID = primitive.NewObjectID()
	campaign.CreatedAt = now()
	campaign.UpdatedAt = campaign.CreatedAt
	r.campaigns[campaign.ID] = *campaign
	return nil
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

// FindAll returns campaigns newest first with pagination
func (r *CampaignRepository) FindAll(_ context.Context, page, limit int) ([]*models.Campaign, error) {
	r.mu.RLock()
	out := make([]*models.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		c := c
		out = append(out, &c)
	}
	r.mu.RUnlock()
	newestFirst(out, func(c *models.Campaign) (time.Time, primitive.ObjectID) { return c.CreatedAt, c.ID })
	return paginate(out, page, limit), nil
}

// Count counts all campaigns
func (r *CampaignRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.campaigns)), nil
}

// BeginDispatch claims a campaign for a delivery run
func (r *CampaignRepository) BeginDispatch(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || !c.CanDispatch() {
		return nil, repositories.ErrNotFound
	}
	c.Status = models.CampaignStatusSending
	c.SentCount, c.FailedCount, c.AudienceSize = 0, 0, 0
	c.FailureReason = ""
	c.UpdatedAt = now()
	r.campaigns[id] = c
	return &c, nil
}

// SetAudienceSize records the resolved audience size
func (r *CampaignRepository) SetAudienceSize(_ context.Context, id primitive.ObjectID, size int) error {
	return r.update(id, func(c *models.Campaign) { c.AudienceSize = size })
}

// MarkFailed moves a campaign to FAILED
func (r *CampaignRepository) MarkFailed(_ context.Context, id primitive.ObjectID, reason string) error {
	return r.update(id, func(c *models.Campaign) {
		c.Status = models.CampaignStatusFailed
		c.FailureReason = reason
	})
}

// MarkCompleted moves a campaign to COMPLETED
func (r *CampaignRepository) MarkCompleted(_ context.Context, id primitive.ObjectID, audienceSize int) error {
	return r.update(id, func(c *models.Campaign) {
		c.Status = models.CampaignStatusCompleted
		c.AudienceSize = audienceSize
	})
}

// IncrementCounters adds to sentCount and failedCount
func (r *CampaignRepository) IncrementCounters(_ context.Context, id primitive.ObjectID, sent, failed int) error {
	return r.update(id, func(c *models.Campaign) {
		c.SentCount += sent
		c.FailedCount += failed
	})
}

// CompleteIfDelivered sets COMPLETED once every recipient has an outcome
func (r *CampaignRepository) CompleteIfDelivered(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return false, nil
	}
	if c.Status == models.CampaignStatusCompleted || !c.IsDelivered() {
		return false, nil
	}
	c.Status = models.CampaignStatusCompleted
	c.UpdatedAt = now()
	r.campaigns[id] = c
	return true, nil
}

func (r *CampaignRepository) update(id primitive.ObjectID, fn func(*models.Campaign)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = now()
	r.campaigns[id] = c
	return nil
}
