// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. Filters are evaluated with audience.Filter.Match.
package memory

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store bundles one empty in-memory repository per collection. Each stamps
// times from the wall clock at millisecond precision.
type Store struct {
	Users     *UserRepository
	Customers *CustomerRepository
	Orders    *OrderRepository
	Segments  *AudienceSegmentRepository
	Campaigns *CampaignRepository
	Logs      *CommunicationLogRepository
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		Users:     NewUserRepository(),
		Customers: NewCustomerRepository(),
		Orders:    NewOrderRepository(),
		Segments:  NewAudienceSegmentRepository(),
		Campaigns: NewCampaignRepository(),
		Logs:      NewCommunicationLogRepository(),
	}
}

func now() time.Time {
	// match the millisecond precision of stored BSON dates
	return time.Now().UTC().Truncate(time.Millisecond)
}

// paginate slices items for a 1-based page; limit <= 0 returns everything
func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// newestFirst sorts by timestamp descending, breaking ties on the id
func newestFirst[T any](items []T, key func(T) (time.Time, primitive.ObjectID)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi.Hex() > idj.Hex()
	})
}
