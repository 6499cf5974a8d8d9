package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"fitidea/internal/domain"
)

const OffersTTL = time.Hour

var ErrEmptyQuery = errors.New("empty query")

// OfferService looks up shopping offers for a product name, cache-aside.
type OfferService struct {
	client domain.ShoppingClient
	cache  domain.Cache
	ttl    time.Duration
}

func NewOfferService(c domain.ShoppingClient, cache domain.Cache) *OfferService {
	return &OfferService{client: c, cache: cache, ttl: OffersTTL}
}

func (s *OfferService) Search(ctx context.Context, query string) ([]domain.Offer, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return nil, ErrEmptyQuery
	}
	key := "serpapi:" + q

	var out []domain.Offer
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.client.Shopping(ctx, q)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Offer{}
	}
	_ = s.cache.Set(ctx, key, out, s.ttl)
	return out, nil
}
