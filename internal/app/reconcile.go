package app

import (
	"context"
	"errors"
	"time"

	"fitidea/internal/domain"
)

// Reconciler owns entity mutation: it matches an incoming listing against what is
// stored and either creates a row or merges into the existing one.
type Reconciler struct {
	repo domain.ListingRepository
	now  func() time.Time
}

func NewReconciler(r domain.ListingRepository, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{repo: r, now: now}
}

// Upsert persists l and reports whether a new entity was created.
// Records without an identity key are rejected with a ParseError wrapping ErrNoIdentity.
func (r *Reconciler) Upsert(ctx context.Context, l domain.Listing) (domain.Entity, bool, error) {
	if l.IdentityKey() == "" {
		return domain.Entity{}, false, &domain.ParseError{Source: l.Source, URL: l.URL, Err: domain.ErrNoIdentity}
	}

	existing, err := r.Lookup(ctx, l)
	switch {
	case err == nil:
		return r.update(ctx, existing, l)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Entity{}, false, err
	}

	if l.Name == nil {
		return domain.Entity{}, false, &domain.ParseError{Source: l.Source, URL: l.URL, Err: domain.ErrMissingName}
	}
	if l.Kind == domain.KindGym && l.Country == nil {
		c := domain.DefaultCountry
		l.Country = &c
	}
	ts := r.now().UTC()
	l.LastSynced = &ts

	e, err := r.repo.Insert(ctx, l)
	if errors.Is(err, domain.ErrDuplicate) {
		// lost a race against a concurrent ingest of the same item
		existing, lerr := r.Lookup(ctx, l)
		if lerr != nil {
			return domain.Entity{}, false, lerr
		}
		return r.update(ctx, existing, l)
	}
	if err != nil {
		return domain.Entity{}, false, err
	}
	return e, true, nil
}

// Lookup finds the stored entity for l: by URL when l has one, otherwise by
// (name, brand, city).
func (r *Reconciler) Lookup(ctx context.Context, l domain.Listing) (domain.Entity, error) {
	if l.URL != "" {
		return r.repo.FindByURL(ctx, l.Kind, l.URL)
	}
	if l.Name == nil {
		return domain.Entity{}, domain.ErrNotFound
	}
	return r.repo.FindByNaturalKey(ctx, l.Kind, *l.Name, str(l.Brand), str(l.City))
}

func (r *Reconciler) update(ctx context.Context, e domain.Entity, in domain.Listing) (domain.Entity, bool, error) {
	merge(&e.Listing, in)
	ts := r.now().UTC()
	e.LastSynced = &ts
	if err := r.repo.Update(ctx, e); err != nil {
		return domain.Entity{}, false, err
	}
	return e, false, nil
}

// merge overwrites every field present in src. Coordinates are only filled when the
// stored value is absent: the first known position wins.
func merge(dst *domain.Listing, src domain.Listing) {
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
	setStr(&dst.Name, src.Name)
	setStr(&dst.Description, src.Description)
	setStr(&dst.Brand, src.Brand)

	setFloat(&dst.Price, src.Price)
	setStr(&dst.Currency, src.Currency)
	setStr(&dst.Category, src.Category)
	setFloat(&dst.Rating, src.Rating)
	if src.ReviewCount != nil {
		dst.ReviewCount = src.ReviewCount
	}
	if src.Images != nil {
		dst.Images = src.Images
	}
	setStr(&dst.Nutrition, src.Nutrition)

	setStr(&dst.Address, src.Address)
	setStr(&dst.City, src.City)
	setStr(&dst.Country, src.Country)
	if dst.Lat == nil {
		dst.Lat = src.Lat
	}
	if dst.Lon == nil {
		dst.Lon = src.Lon
	}
	if src.OpeningHours != nil {
		dst.OpeningHours = src.OpeningHours
	}
	if src.Equipment != nil {
		dst.Equipment = src.Equipment
	}
	if src.Photos != nil {
		dst.Photos = src.Photos
	}
	setStr(&dst.Phone, src.Phone)
	setStr(&dst.Website, src.Website)
	setStr(&dst.PriceRange, src.PriceRange)
	setStr(&dst.LogoURL, src.LogoURL)
	if src.Opened247 != nil {
		dst.Opened247 = src.Opened247
	}
}

func setStr(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func setFloat(dst **float64, v *float64) {
	if v != nil {
		*dst = v
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
