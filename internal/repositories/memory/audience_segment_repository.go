package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

var _ repositories.AudienceSegmentRepository = (*AudienceSegmentRepository)(nil)

// AudienceSegmentRepository stores segments in memory
type AudienceSegmentRepository struct {
	mu       sync.RWMutex
	segments map[primitive.ObjectID]models.AudienceSegment
}

// NewAudienceSegmentRepository creates a new AudienceSegmentRepository
func NewAudienceSegmentRepository() *AudienceSegmentRepository {
	return &AudienceSegmentRepository{segments: make(map[primitive.ObjectID]models.AudienceSegment)}
}

// Create inserts a segment, rejecting duplicate names
func (r *AudienceSegmentRepository) Create(_ context.Context, segment *models.AudienceSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.segments {
		if s.Name == segment.Name {
			return repositories.ErrDuplicateKey
		}
	}
	segment.ID = primitive.NewObjectID()
	segment.CreatedAt = now()
	segment.UpdatedAt = segment.CreatedAt
	r.segments[segment.ID] = *segment
	return nil
}

// FindByID finds a segment by ID
func (r *AudienceSegmentRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.AudienceSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.segments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

// FindByName finds a segment by name
func (r *AudienceSegmentRepository) FindByName(_ context.Context, name string) (*models.AudienceSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.segments {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// FindAll returns every segment, newest first
func (r *AudienceSegmentRepository) FindAll(_ context.Context) ([]*models.AudienceSegment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.AudienceSegment, 0, len(r.segments))
	for _, s := range r.segments {
		s := s
		out = append(out, &s)
	}
	newestFirst(out, func(s *models.AudienceSegment) (time.Time, primitive.ObjectID) { return s.CreatedAt, s.ID })
	return out, nil
}
