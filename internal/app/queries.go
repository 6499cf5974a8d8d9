package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fitidea/internal/domain"
)

type QueryService struct {
	repo     domain.ListingRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ListingRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// GetListing reads a persisted gym or product, cache-aside.
func (s *QueryService) GetListing(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	key := entityKey(kind, id)
	var e domain.Entity
	if ok, _ := s.cache.Get(ctx, key, &e); ok {
		return e, nil
	}
	e, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return domain.Entity{}, err
	}

	// optional size guard
	if b, _ := json.Marshal(e); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, e, s.cacheTTL)
	}
	return e, nil
}

func entityKey(kind domain.Kind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}
