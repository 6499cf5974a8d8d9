package domain

import (
	"strings"
	"time"
)

type Kind string

const (
	KindGym     Kind = "gym"
	KindProduct Kind = "product"
)

const (
	DefaultCountry  = "France"
	DefaultCurrency = "EUR"
)

// Listing is the canonical, source-agnostic record produced by a source adapter.
// Nil pointers, nil slices and nil maps mean "absent".
type Listing struct {
	Kind        Kind    `json:"kind"`
	Source      string  `json:"source"`
	URL         string  `json:"url,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Brand       *string `json:"brand,omitempty"`

	// product
	Price       *float64 `json:"price,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Images      []string `json:"images,omitempty"`
	Nutrition   *string  `json:"nutrition,omitempty"`

	// gym
	Address      *string           `json:"address,omitempty"`
	City         *string           `json:"city,omitempty"`
	Country      *string           `json:"country,omitempty"`
	Lat          *float64          `json:"latitude,omitempty"`
	Lon          *float64          `json:"longitude,omitempty"`
	OpeningHours map[string]string `json:"opening_hours,omitempty"`
	Equipment    []string          `json:"equipment,omitempty"`
	Photos       []string          `json:"photos,omitempty"`
	Phone        *string           `json:"phone,omitempty"`
	Website      *string           `json:"website,omitempty"`
	PriceRange   *string           `json:"price_range,omitempty"`
	LogoURL      *string           `json:"logo_url,omitempty"`
	Opened247    *bool             `json:"opened_24_7,omitempty"`

	LastSynced *time.Time `json:"last_synced,omitempty"`
}

// IdentityKey returns the natural key used for deduplication: the URL when
// present, otherwise name|brand|city. Empty means the record cannot be persisted.
func (l Listing) IdentityKey() string {
	if u := strings.TrimSpace(l.URL); u != "" {
		return u
	}
	if l.Name == nil || strings.TrimSpace(*l.Name) == "" {
		return ""
	}
	return strings.Join([]string{*l.Name, deref(l.Brand), deref(l.City)}, "|")
}

// Entity is a persisted listing row.
type Entity struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Listing
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
