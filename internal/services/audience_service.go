package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
)

// Audience is a resolved rule set
type Audience struct {
	Count           int64
	Customers       []*models.Customer
	TargetsEveryone bool
}

// PreviewResult is returned by audience previews
type PreviewResult struct {
	AudienceSize int64  `json:"audienceSize"`
	Message      string `json:"message,omitempty"`
}

const everyoneNote = "No rules defined. Audience includes all customers."

var _ AudienceService = (*AudienceServiceImpl)(nil)

// AudienceServiceImpl implements AudienceService
type AudienceServiceImpl struct {
	customerRepo repositories.CustomerRepository
	segmentRepo  repositories.AudienceSegmentRepository
	compiler     *audience.Compiler
}

// NewAudienceService creates a new AudienceServiceImpl
func NewAudienceService(customerRepo repositories.CustomerRepository, segmentRepo repositories.AudienceSegmentRepository, compiler *audience.Compiler) *AudienceServiceImpl {
	return &AudienceServiceImpl{
		customerRepo: customerRepo,
		segmentRepo:  segmentRepo,
		compiler:     compiler,
	}
}

// Validate reports every problem in a rule set as audience.ValidationErrors
func (s *AudienceServiceImpl) Validate(rules models.RuleGroup) error {
	return s.compiler.Validate(rules)
}

// Resolve compiles a rule set and runs it against the customer store. Only
// a rule set with no conditions and no groups targets every customer; one
// that still compiles to match-all (only empty sub-groups) selects nobody.
func (s *AudienceServiceImpl) Resolve(ctx context.Context, rules models.RuleGroup, materialize bool) (*Audience, error) {
	filter, err := s.compiler.Compile(rules)
	if err != nil {
		return nil, err
	}

	result := &Audience{TargetsEveryone: rules.IsEmpty()}
	if audience.IsMatchAll(filter) && !result.TargetsEveryone {
		slog.Warn("Rule set has groups but no conditions; resolving to an empty audience")
		result.Customers = []*models.Customer{}
		return result, nil
	}

	if materialize {
		customers, err := s.customerRepo.FindMatching(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load audience: %w", err)
		}
		result.Customers = customers
		result.Count = int64(len(customers))
		return result, nil
	}

	count, err := s.customerRepo.CountMatching(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count audience: %w", err)
	}
	result.Count = count
	return result, nil
}

// Preview returns the audience size for a rule set without side effects
func (s *AudienceServiceImpl) Preview(ctx context.Context, rules models.RuleGroup) (*PreviewResult, error) {
	if err := s.compiler.Validate(rules); err != nil {
		return nil, err
	}
	aud, err := s.Resolve(ctx, rules, false)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{AudienceSize: aud.Count}
	if aud.TargetsEveryone {
		result.Message = everyoneNote
	}
	return result, nil
}

// CreateSegment stores a named rule set
func (s *AudienceServiceImpl) CreateSegment(ctx context.Context, req *models.CreateSegmentRequest, createdBy primitive.ObjectID) (*models.AudienceSegment, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.compiler.Validate(req.Rules); err != nil {
		return nil, err
	}

	if _, err := s.segmentRepo.FindByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: segment %q", ErrDuplicateName, name)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check segment name: %w", err)
	}

	segment := &models.AudienceSegment{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Rules:       req.Rules,
		CreatedBy:   createdBy,
	}
	if err := s.segmentRepo.Create(ctx, segment); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: segment %q", ErrDuplicateName, name)
		}
		return nil, fmt.Errorf("failed to create segment: %w", err)
	}

	slog.Info("Audience segment created", "segmentId", segment.ID.Hex(), "name", name)
	return segment, nil
}

// GetSegment returns one segment
func (s *AudienceServiceImpl) GetSegment(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error) {
	segment, err := s.segmentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	return segment, nil
}

// ListSegments returns every segment, newest first
func (s *AudienceServiceImpl) ListSegments(ctx context.Context) ([]*models.AudienceSegment, error) {
	return s.segmentRepo.FindAll(ctx)
}
