package domain

import (
	"context"
	"time"
)

type ListingRepository interface {
	// Write paths
	Insert(ctx context.Context, l Listing) (Entity, error)
	Update(ctx context.Context, e Entity) error

	// Read paths
	FindByURL(ctx context.Context, kind Kind, url string) (Entity, error)
	FindByNaturalKey(ctx context.Context, kind Kind, name, brand, city string) (Entity, error)
	GetByID(ctx context.Context, kind Kind, id int64) (Entity, error)
	Count(ctx context.Context, kind Kind) (int, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Fetcher retrieves the raw body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type ShoppingClient interface {
	AmazonProduct(ctx context.Context, productURL string) (map[string]any, error)
	Shopping(ctx context.Context, query string) ([]Offer, error)
}

// Offer is a single shopping search result.
type Offer struct {
	Title     string   `json:"title"`
	Price     *float64 `json:"price,omitempty"`
	PriceRaw  string   `json:"price_raw,omitempty"`
	Source    string   `json:"source,omitempty"`
	Link      string   `json:"link,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}
