package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fitidea/internal/domain"
	"fitidea/internal/sources"
)

// ---- repository ----

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Entity
	writes int
}

func newMemRepo() *memRepo { return &memRepo{rows: map[int64]domain.Entity{}} }

func (r *memRepo) Insert(_ context.Context, l domain.Listing) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.Kind == l.Kind && l.URL != "" && e.URL == l.URL {
			return domain.Entity{}, domain.ErrDuplicate
		}
	}
	r.nextID++
	e := domain.Entity{ID: r.nextID, CreatedAt: time.Unix(0, 0).UTC(), Listing: l}
	r.rows[e.ID] = e
	r.writes++
	return e, nil
}

func (r *memRepo) Update(_ context.Context, e domain.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.ID]; !ok {
		return domain.ErrNotFound
	}
	r.rows[e.ID] = e
	r.writes++
	return nil
}

func (r *memRepo) FindByURL(_ context.Context, kind domain.Kind, url string) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.Kind == kind && e.URL == url {
			return e, nil
		}
	}
	return domain.Entity{}, domain.ErrNotFound
}

func (r *memRepo) FindByNaturalKey(_ context.Context, kind domain.Kind, name, brand, city string) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.Kind == kind && deref(e.Name) == name && deref(e.Brand) == brand && deref(e.City) == city {
			return e, nil
		}
	}
	return domain.Entity{}, domain.ErrNotFound
}

func (r *memRepo) GetByID(_ context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.Kind != kind {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, nil
}

func (r *memRepo) Count(_ context.Context, kind domain.Kind) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.rows {
		if e.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// ---- cache (JSON round-trip like the Redis gateway) ----

type memCache struct {
	mu    sync.Mutex
	store map[string][]byte
	ttls  map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{store: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		delete(c.store, key)
		delete(c.ttls, key)
		return nil
	}
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

// ---- fetcher ----

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration

	inflight    int32
	maxInflight int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInflight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInflight, m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if b, ok := f.bodies[url]; ok {
		return []byte(b), nil
	}
	return nil, &domain.FetchError{URL: url, Status: 404}
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// ---- sources ----

// fakeAdapter lists one URL per line of the listing body and parses an item body of
// the form "name" or "name|lat|lon".
type fakeAdapter struct {
	info sources.Info
}

func (a *fakeAdapter) Info() sources.Info { return a.info }

func (a *fakeAdapter) DiscoverListing(raw []byte, _ string) ([]string, error) {
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func (a *fakeAdapter) ParseItem(raw []byte, itemURL string) (domain.Listing, error) {
	parts := strings.Split(string(raw), "|")
	l := domain.Listing{Kind: a.info.Kind, Source: a.info.ID, URL: itemURL}
	if name := strings.TrimSpace(parts[0]); name != "" {
		l.Name = &name
	}
	if len(parts) == 3 {
		var lat, lon float64
		_ = json.Unmarshal([]byte(parts[1]), &lat)
		_ = json.Unmarshal([]byte(parts[2]), &lon)
		l.Lat, l.Lon = &lat, &lon
	}
	return l, nil
}

type fakeSources struct {
	adapters []sources.Adapter
}

func (s *fakeSources) Get(id string) (sources.Adapter, error) {
	for _, a := range s.adapters {
		if a.Info().ID == strings.ToLower(id) {
			return a, nil
		}
	}
	return nil, &domain.UnsupportedSourceError{Source: id}
}

func (s *fakeSources) All() []sources.Adapter { return s.adapters }

func gymSource(id string) *fakeAdapter {
	return &fakeAdapter{info: sources.Info{
		ID: id, Kind: domain.KindGym, Brand: id,
		ListingURL: "https://" + id + ".example/clubs",
		Homepage:   "https://" + id + ".example/",
	}}
}

type fixedLogo string

func (f fixedLogo) ResolveLogo(context.Context, string) string { return string(f) }

func fixedClock() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
