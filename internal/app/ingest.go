package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"fitidea/internal/adapters/observability"
	"fitidea/internal/domain"
	"fitidea/internal/sources"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusCached  Status = "cached"
	StatusFailed  Status = "failed"
)

// Outcome of a single item ingest. Listing is the normalized record as cached;
// Entity is the persisted row and is nil on a cache hit for an item that was never
// persisted.
type Outcome struct {
	Status  Status         `json:"status"`
	Entity  *domain.Entity `json:"entity,omitempty"`
	Listing domain.Listing `json:"listing"`
}

// Sources is the read side of the source registry.
type Sources interface {
	Get(id string) (sources.Adapter, error)
	All() []sources.Adapter
}

// LogoResolver is satisfied by *LogoService.
type LogoResolver interface {
	ResolveLogo(ctx context.Context, brand string) string
}

type IngestOptions struct {
	GymTTL     time.Duration
	ProductTTL time.Duration
	// Workers bounds concurrent item ingests during SyncAll.
	Workers int
	// Attempts is the number of tries for a transient fetch failure (5xx, 429, network).
	Attempts int
	Backoff  time.Duration
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.GymTTL <= 0 {
		o.GymTTL = 24 * time.Hour
	}
	if o.ProductTTL <= 0 {
		o.ProductTTL = 24 * time.Hour
	}
	if o.Workers <= 0 {
		o.Workers = 10
	}
	if o.Attempts <= 0 {
		o.Attempts = 1
	}
	return o
}

type IngestionService struct {
	sources Sources
	fetcher domain.Fetcher
	cache   domain.Cache
	repo    domain.ListingRepository
	rec     *Reconciler
	logos   LogoResolver
	now     func() time.Time
	opt     IngestOptions
}

// NewIngestionService wires the orchestrator. logos may be nil (no logo enrichment);
// now defaults to time.Now.
func NewIngestionService(src Sources, f domain.Fetcher, c domain.Cache, r domain.ListingRepository,
	logos LogoResolver, now func() time.Time, opt IngestOptions) *IngestionService {
	if now == nil {
		now = time.Now
	}
	return &IngestionService{
		sources: src,
		fetcher: f,
		cache:   c,
		repo:    r,
		rec:     NewReconciler(r, now),
		logos:   logos,
		now:     now,
		opt:     opt.withDefaults(),
	}
}

// Ingest fetches, parses, caches and persists one item. A cached record is returned
// as-is without touching the network or the database row.
func (s *IngestionService) Ingest(ctx context.Context, itemURL, source string) (Outcome, error) {
	a, err := s.sources.Get(source)
	if err != nil {
		return Outcome{}, err
	}
	info := a.Info()
	key := cacheKey(info, itemURL)

	var cached domain.Listing
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		out := Outcome{Status: StatusCached, Listing: cached}
		if e, err := s.rec.Lookup(ctx, cached); err == nil {
			out.Entity = &e
		}
		observability.ObserveIngest(info.ID, string(StatusCached))
		return out, nil
	}

	raw, err := s.fetchItem(ctx, a, itemURL)
	if err != nil {
		observability.ObserveIngest(info.ID, string(StatusFailed))
		return Outcome{}, err
	}
	l, err := a.ParseItem(raw, itemURL)
	if err != nil {
		observability.ObserveIngest(info.ID, string(StatusFailed))
		return Outcome{}, err
	}
	l = s.withProvenance(ctx, info, l, itemURL)

	_ = s.cache.Set(ctx, key, l, s.ttl(info.Kind))

	e, created, err := s.rec.Upsert(ctx, l)
	if err != nil {
		// a record that cannot be persisted must not be served as a cache hit later
		_ = s.cache.Expire(ctx, key, 0)
		observability.ObserveIngest(info.ID, string(StatusFailed))
		return Outcome{}, err
	}
	st := StatusUpdated
	if created {
		st = StatusCreated
	} else {
		// drop the read-side snapshot so GET /v1/{kind}s/{id} sees the merge
		_ = s.cache.Expire(ctx, entityKey(e.Kind, e.ID), 0)
	}
	observability.ObserveIngest(info.ID, string(st))
	// Listing is the normalized record as cached, so a later cache hit returns the same bytes.
	return Outcome{Status: st, Entity: &e, Listing: l}, nil
}

// withProvenance stamps what the orchestrator knows and the page may not: source id,
// kind, URL, chain brand and logo for gyms.
func (s *IngestionService) withProvenance(ctx context.Context, info sources.Info, l domain.Listing, itemURL string) domain.Listing {
	l.Source = info.ID
	l.Kind = info.Kind
	if l.URL == "" {
		l.URL = itemURL
	}
	if info.Kind == domain.KindGym {
		if l.Brand == nil && info.Brand != "" {
			b := info.Brand
			l.Brand = &b
		}
		if l.LogoURL == nil && s.logos != nil && l.Brand != nil {
			logo := s.logos.ResolveLogo(ctx, *l.Brand)
			l.LogoURL = &logo
		}
	}
	return l
}

func (s *IngestionService) fetchItem(ctx context.Context, a sources.Adapter, itemURL string) ([]byte, error) {
	get := s.fetcher.Fetch
	if f, ok := a.(sources.ItemFetcher); ok {
		get = f.FetchItem
	}

	var err error
	for i := 0; i < s.opt.Attempts; i++ {
		var raw []byte
		if raw, err = get(ctx, itemURL); err == nil {
			return raw, nil
		}
		if !transient(err) || i == s.opt.Attempts-1 {
			break
		}
		log.Debug().Str("url", itemURL).Int("attempt", i+1).Err(err).Msg("fetch retry")
		if !sleepCtx(ctx, time.Duration(i+1)*s.opt.Backoff) {
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func (s *IngestionService) ttl(k domain.Kind) time.Duration {
	if k == domain.KindGym {
		return s.opt.GymTTL
	}
	return s.opt.ProductTTL
}

func cacheKey(info sources.Info, itemURL string) string {
	if info.Kind == domain.KindGym {
		return "gym_details:" + info.ID + ":" + itemURL
	}
	return "product:" + info.ID + ":" + itemURL
}

// transient reports whether retrying a fetch could succeed.
func transient(err error) bool {
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status == 0 || fe.Status == 429 || fe.Status >= 500
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
