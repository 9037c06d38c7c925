// Package aggregate orchestrates one aggregation run: source selection,
// cached or parallel fetches, normalization, dedup and the run summary.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
	"tenderwatch/internal/normalize"
	"tenderwatch/internal/observability"
	"tenderwatch/internal/registry"
)

// Default run configuration values.
const (
	DefaultWorkers      = 5
	DefaultFetchTimeout = 60 * time.Second
	DefaultCacheTTL     = 30 * time.Minute
)

// ErrUnknownMode is returned for an unrecognized aggregation mode.
var ErrUnknownMode = errors.New("unknown aggregation mode")

// Request describes one aggregation run.
type Request struct {
	Mode domain.Mode
	// Sources is the explicit key list for ModeSelective.
	Sources []string
	// Country filters sources for ModeCountry.
	Country string
	Query   fetch.Query

	UseCache bool
	// CacheTTL bounds cache entry age. Zero uses DefaultCacheTTL.
	CacheTTL time.Duration
}

// Aggregator coordinates fetches across many sources. Runs may be issued
// concurrently; the registry and cache are concurrency-safe. The design
// assumes at most one run per process at a time is typical and does not
// serialize overlapping runs.
type Aggregator struct {
	registry   *registry.Registry
	normalizer *normalize.Normalizer
	cache      *Cache
	metrics    *observability.Metrics
	logger     *log.Logger

	workers      int
	fetchTimeout time.Duration
	mappings     map[string]normalize.FieldMapping
	now          func() time.Time
}

// Options contains configuration for creating an Aggregator.
type Options struct {
	Registry   *registry.Registry
	Normalizer *normalize.Normalizer
	Cache      *Cache
	Metrics    *observability.Metrics
	Logger     *log.Logger

	// Workers bounds the fetch pool width. Zero uses DefaultWorkers.
	Workers int
	// FetchTimeout is the orchestration-layer guard around each fetch.
	// Zero uses DefaultFetchTimeout.
	FetchTimeout time.Duration
	// FieldMappings holds per-source alias overrides, keyed by source key.
	FieldMappings map[string]normalize.FieldMapping
}

// New creates an Aggregator with the provided options.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(logger)
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.New(nil)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Aggregator{
		registry:     opts.Registry,
		normalizer:   normalizer,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		workers:      workers,
		fetchTimeout: fetchTimeout,
		mappings:     opts.FieldMappings,
		now:          time.Now,
	}
}

// fetchResult is one source's outcome, passed from worker to collector.
type fetchResult struct {
	desc      domain.SourceDescriptor
	contracts []domain.NormalizedContract
	err       error
	duration  time.Duration
}

// Run executes one aggregation run and returns its summary. Source
// failures degrade the summary; the only error returned is an invalid
// request.
func (a *Aggregator) Run(ctx context.Context, req Request) (*domain.RunSummary, error) {
	start := a.now()

	candidates, err := a.selectSources(req)
	if err != nil {
		return nil, err
	}

	ttl := req.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	summary := &domain.RunSummary{
		Mode:         req.Mode,
		StartedAt:    start,
		SourcesTotal: len(candidates),
	}

	// Cache pass on the calling goroutine: fresh entries short-circuit
	// their source entirely.
	var batches [][]domain.NormalizedContract
	var toFetch []domain.SourceDescriptor
	for _, d := range candidates {
		if req.UseCache {
			if cached, ok := a.cache.Get(d.Key, a.now(), ttl); ok {
				a.metrics.CacheHits.Inc()
				a.metrics.ObserveFetch(d.Key, string(domain.OutcomeCached), 0)
				summary.Results = append(summary.Results, domain.SourceResult{
					Source:    d.Key,
					Outcome:   domain.OutcomeCached,
					Contracts: len(cached),
				})
				summary.SourcesCached++
				batches = append(batches, cached)
				continue
			}
			a.metrics.CacheMisses.Inc()
		}
		toFetch = append(toFetch, d)
	}

	// Parallel fetch pass. Workers only compute; all shared mutation
	// (registry status, cache writes) happens below on this goroutine.
	results := make(chan fetchResult, len(toFetch))
	g := &errgroup.Group{}
	g.SetLimit(a.workers)
	for _, d := range toFetch {
		d := d
		g.Go(func() error {
			results <- a.fetchOne(ctx, d, req.Query)
			return nil
		})
	}
	g.Wait()
	close(results)

	for res := range results {
		outcome := domain.OutcomeSuccess
		errMsg := ""
		if res.err != nil {
			outcome = domain.OutcomeError
			errMsg = res.err.Error()
		}

		summary.Results = append(summary.Results, domain.SourceResult{
			Source:    res.desc.Key,
			Outcome:   outcome,
			Contracts: len(res.contracts),
			Duration:  res.duration,
			Err:       errMsg,
		})
		a.metrics.ObserveFetch(res.desc.Key, string(outcome), res.duration)

		if res.err != nil {
			summary.SourcesFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", res.desc.Key, res.err))
			a.registry.RecordStatus(res.desc.Key, statusForError(res.err), errMsg)
			a.logger.Printf("aggregate: source %s failed: %v", res.desc.Key, res.err)
			continue
		}

		summary.SourcesSucceeded++
		a.registry.RecordFetch(res.desc.Key, len(res.contracts))
		a.cache.Put(res.desc.Key, res.contracts, a.now())
		batches = append(batches, res.contracts)
	}

	summary.Contracts, summary.Duplicates = dedup(batches)
	summary.FinishedAt = a.now()

	a.metrics.ObserveRun(string(req.Mode), summary.Duration(), len(summary.Contracts), summary.Duplicates)
	a.logger.Printf("aggregate: %s run finished: %d contracts from %d/%d sources (%d cached, %d failed, %d duplicates) in %s",
		req.Mode, len(summary.Contracts), summary.SourcesSucceeded, summary.SourcesTotal,
		summary.SourcesCached, summary.SourcesFailed, summary.Duplicates, summary.Duration())

	return summary, nil
}

// fetchOne runs a single source fetch under the orchestration-layer
// timeout guard. A fetch that outlives the guard is abandoned, not
// killed: the goroutine drains into a buffered channel and the result is
// discarded.
func (a *Aggregator) fetchOne(ctx context.Context, d domain.SourceDescriptor, q fetch.Query) fetchResult {
	start := time.Now()

	fetcher := a.registry.ResolveFetcher(d.Key)
	if fetcher == nil {
		return fetchResult{
			desc:     d,
			err:      errors.New("no adapter available"),
			duration: time.Since(start),
		}
	}

	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		raws, err := fetcher.Fetch(fctx, q)
		if err != nil {
			done <- fetchResult{err: err}
			return
		}
		done <- fetchResult{contracts: a.normalizer.NormalizeBatch(raws, d, a.mappings[d.Key])}
	}()

	select {
	case res := <-done:
		res.desc = d
		res.duration = time.Since(start)
		return res
	case <-fctx.Done():
		err := fctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("fetch timed out after %s", a.fetchTimeout)
		}
		return fetchResult{desc: d, err: err, duration: time.Since(start)}
	}
}

// selectSources resolves the candidate set for the request mode.
func (a *Aggregator) selectSources(req Request) ([]domain.SourceDescriptor, error) {
	switch req.Mode {
	case domain.ModeFull, "":
		return a.registry.SelectEnabled(), nil
	case domain.ModePriority:
		out := a.registry.SelectByPriority(domain.TierCritical)
		return append(out, a.registry.SelectByPriority(domain.TierHigh)...), nil
	case domain.ModeCountry:
		return a.registry.SelectByCountry(req.Country), nil
	case domain.ModeSelective:
		var out []domain.SourceDescriptor
		for _, key := range req.Sources {
			d, ok := a.registry.Get(key)
			if !ok {
				a.logger.Printf("aggregate: selective run skips unknown source %s", key)
				continue
			}
			if !d.Enabled {
				continue
			}
			out = append(out, d)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

// statusForError maps a fetch error to the source status it should leave
// behind. Rate limiting is kept distinct so cooldowns are observable.
func statusForError(err error) domain.SourceStatus {
	var se *fetch.StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		return domain.StatusRateLimited
	}
	return domain.StatusError
}

// dedup concatenates batches and drops duplicate (source, externalID)
// pairs, first occurrence wins.
func dedup(batches [][]domain.NormalizedContract) ([]domain.NormalizedContract, int) {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	seen := make(map[string]struct{}, total)
	out := make([]domain.NormalizedContract, 0, total)
	duplicates := 0
	for _, batch := range batches {
		for _, c := range batch {
			key := c.DedupKey()
			if _, dup := seen[key]; dup {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	return out, duplicates
}
