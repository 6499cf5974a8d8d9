package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"fitidea/internal/adapters/observability"
	"fitidea/internal/domain"
	"fitidea/internal/sources"
)

// Result is the per-item record of a sync run.
type Result struct {
	Source   string `json:"source"`
	URL      string `json:"url"`
	Status   Status `json:"status"`
	EntityID int64  `json:"entity_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SyncReport aggregates one SyncAll run. Total is the number of persisted
// entities (gyms and products) once the batch is done.
type SyncReport struct {
	RunID    string    `json:"run_id"`
	Total    int       `json:"total"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Cached   int       `json:"cached"`
	Failed   int       `json:"failed"`
	SyncedAt time.Time `json:"synced_at"`
	Failures []Result  `json:"failures,omitempty"`
}

type job struct {
	source string
	url    string
}

// SyncAll discovers item URLs on every source that has a listing page and ingests
// them with at most Workers items in flight. It always returns a report: discovery
// and item failures are logged and counted, never propagated. Cancelling ctx stops
// scheduling new items; items already running finish.
func (s *IngestionService) SyncAll(ctx context.Context) SyncReport {
	start := time.Now()
	rep := SyncReport{RunID: uuid.NewString()}
	lg := log.With().Str("run_id", rep.RunID).Logger()

	jobs := s.discoverAll(ctx, lg)
	lg.Info().Int("items", len(jobs)).Msg("discovery done")

	results := make([]Result, len(jobs))
	sem := semaphore.NewWeighted(int64(s.opt.Workers))
	var wg sync.WaitGroup

	scheduled := 0
	for i, j := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			lg.Warn().Err(err).Int("remaining", len(jobs)-i).Msg("sync cancelled, not scheduling remaining items")
			break
		}
		scheduled++

		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			defer sem.Release(1)

			// in-flight items are not cut short by the run being cancelled
			results[i] = s.ingestOne(context.WithoutCancel(ctx), lg, j)
		}(i, j)
	}
	wg.Wait()

	for _, r := range results[:scheduled] {
		switch r.Status {
		case StatusCreated:
			rep.Created++
		case StatusUpdated:
			rep.Updated++
		case StatusCached:
			rep.Cached++
		default:
			rep.Failed++
			rep.Failures = append(rep.Failures, r)
		}
	}

	rep.Total = s.countAll(context.WithoutCancel(ctx), lg)
	rep.SyncedAt = s.now().UTC()
	observability.ObserveSync(time.Since(start))

	lg.Info().
		Int("total", rep.Total).
		Int("created", rep.Created).
		Int("updated", rep.Updated).
		Int("cached", rep.Cached).
		Int("failed", rep.Failed).
		Dur("took", time.Since(start)).
		Msg("sync completed")
	return rep
}

// discoverAll fetches every listing page concurrently. A failing source is logged
// and contributes no items. Order follows the registry, then page order.
func (s *IngestionService) discoverAll(ctx context.Context, lg zerolog.Logger) []job {
	var adapters []sources.Adapter
	for _, a := range s.sources.All() {
		if a.Info().ListingURL != "" {
			adapters = append(adapters, a)
		}
	}

	found := make([][]string, len(adapters))
	var g errgroup.Group
	g.SetLimit(s.opt.Workers)
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			info := a.Info()
			raw, err := s.fetcher.Fetch(ctx, info.ListingURL)
			if err != nil {
				lg.Warn().Str("source", info.ID).Err(err).Msg("listing fetch failed")
				return nil
			}
			urls, err := a.DiscoverListing(raw, info.ListingURL)
			if err != nil {
				lg.Warn().Str("source", info.ID).Err(err).Msg("listing parse failed")
				return nil
			}
			lg.Debug().Str("source", info.ID).Int("items", len(urls)).Msg("listing discovered")
			found[i] = urls
			return nil
		})
	}
	_ = g.Wait()

	var jobs []job
	for i, urls := range found {
		for _, u := range urls {
			jobs = append(jobs, job{source: adapters[i].Info().ID, url: u})
		}
	}
	return jobs
}

func (s *IngestionService) ingestOne(ctx context.Context, lg zerolog.Logger, j job) Result {
	r := Result{Source: j.source, URL: j.url}
	out, err := s.Ingest(ctx, j.url, j.source)
	if err != nil {
		lg.Warn().Str("source", j.source).Str("url", j.url).Str("kind", observability.LabelErr(err)).Err(err).Msg("ingest failed")
		r.Status = StatusFailed
		r.Error = err.Error()
		return r
	}
	r.Status = out.Status
	if out.Entity != nil {
		r.EntityID = out.Entity.ID
	}
	return r
}

func (s *IngestionService) countAll(ctx context.Context, lg zerolog.Logger) int {
	total := 0
	for _, k := range []domain.Kind{domain.KindGym, domain.KindProduct} {
		n, err := s.repo.Count(ctx, k)
		if err != nil {
			lg.Warn().Str("kind", string(k)).Err(err).Msg("count failed")
			continue
		}
		total += n
	}
	return total
}
