// Package registry holds configuration and live status for every source
// and resolves source keys to fetch-capable adapters.
package registry

import (
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
)

// Cooldown parameters for sources in error or rate_limited status.
// The per-error growth is linear; DefaultCooldownCap bounds it so a
// chronically failing source is still re-attempted within a few hours.
const (
	cooldownFloor      = 30 * time.Minute
	cooldownPerError   = 10 * time.Minute
	DefaultCooldownCap = 4 * time.Hour
)

// Registry is the concurrency-safe source registry. All status and
// counter updates are atomic per source key.
type Registry struct {
	mu        sync.RWMutex
	sources   map[string]*domain.SourceDescriptor
	fetchers  map[string]fetch.Fetcher
	factories map[string]AdapterFactory

	cooldownCap time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// Options contains configuration for creating a Registry.
type Options struct {
	// Factories maps adapter identifiers to constructors.
	// Nil uses DefaultFactories().
	Factories map[string]AdapterFactory
	// CooldownCap bounds the per-source error cooldown. Zero uses
	// DefaultCooldownCap.
	CooldownCap time.Duration
	Logger      *log.Logger
}

// New creates a Registry with the provided options.
func New(opts Options) *Registry {
	factories := opts.Factories
	if factories == nil {
		factories = DefaultFactories()
	}
	cooldownCap := opts.CooldownCap
	if cooldownCap <= 0 {
		cooldownCap = DefaultCooldownCap
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		sources:     make(map[string]*domain.SourceDescriptor),
		fetchers:    make(map[string]fetch.Fetcher),
		factories:   factories,
		cooldownCap: cooldownCap,
		logger:      logger,
		now:         time.Now,
	}
}

// Register upserts a descriptor. Overwrites are logged, never rejected;
// an unknown adapter identifier is logged at registration time and the
// source will be skipped when a fetcher is resolved.
func (r *Registry) Register(d domain.SourceDescriptor) {
	if d.Status == "" {
		d.Status = domain.StatusActive
	}
	if !d.Tier.IsValid() {
		r.logger.Printf("registry: source %s has unknown tier %q, using %s", d.Key, d.Tier, domain.TierNormal)
		d.Tier = domain.TierNormal
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[d.Adapter]; !ok {
		r.logger.Printf("registry: source %s uses unknown adapter %q", d.Key, d.Adapter)
	}
	if _, exists := r.sources[d.Key]; exists {
		r.logger.Printf("registry: overwriting source %s", d.Key)
		delete(r.fetchers, d.Key)
	}

	cp := d
	r.sources[d.Key] = &cp
}

// Unregister removes a source and its cached fetcher.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, key)
	delete(r.fetchers, key)
}

// Get returns a copy of the descriptor for key.
func (r *Registry) Get(key string) (domain.SourceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.sources[key]
	if !ok {
		return domain.SourceDescriptor{}, false
	}
	return *d, true
}

// SelectEnabled returns all enabled sources, ordered by priority tier
// (critical first) then key.
func (r *Registry) SelectEnabled() []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectLocked(func(d *domain.SourceDescriptor) bool {
		return d.Enabled
	})
}

// SelectByCountry returns enabled sources for the given country code.
func (r *Registry) SelectByCountry(country string) []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectLocked(func(d *domain.SourceDescriptor) bool {
		return d.Enabled && strings.EqualFold(d.Country, country)
	})
}

// SelectByPriority returns enabled sources of the given tier.
func (r *Registry) SelectByPriority(tier domain.PriorityTier) []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectLocked(func(d *domain.SourceDescriptor) bool {
		return d.Enabled && d.Tier == tier
	})
}

// SelectDueForUpdate returns enabled sources due for a refresh at now:
// never fetched, or past their update interval. Sources in error or
// rate_limited status are excluded until their cooldown elapses;
// administrator-controlled states (inactive, maintenance) are always
// excluded. Ordered by priority tier, critical first.
func (r *Registry) SelectDueForUpdate(now time.Time) []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectLocked(func(d *domain.SourceDescriptor) bool {
		if !d.Enabled {
			return false
		}
		switch d.Status {
		case domain.StatusInactive, domain.StatusMaintenance:
			return false
		case domain.StatusError, domain.StatusRateLimited:
			if now.Sub(d.LastFetchAt) < r.cooldown(d.ErrorCount) {
				return false
			}
		}
		if d.LastFetchAt.IsZero() {
			return true
		}
		return now.Sub(d.LastFetchAt) >= d.UpdateInterval()
	})
}

// cooldown computes the enforced waiting period before re-attempting a
// failing source: max(30min, errorCount × 10min), capped.
func (r *Registry) cooldown(errorCount int) time.Duration {
	d := time.Duration(errorCount) * cooldownPerError
	if d < cooldownFloor {
		d = cooldownFloor
	}
	if d > r.cooldownCap {
		d = r.cooldownCap
	}
	return d
}

// selectLocked filters and orders sources. Caller must hold at least a
// read lock.
func (r *Registry) selectLocked(keep func(*domain.SourceDescriptor) bool) []domain.SourceDescriptor {
	var out []domain.SourceDescriptor
	for _, d := range r.sources {
		if keep(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier.Rank() != out[j].Tier.Rank() {
			return out[i].Tier.Rank() < out[j].Tier.Rank()
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ResolveFetcher returns (and caches) the live adapter for key. A missing
// source, unknown adapter or construction failure is logged and yields
// nil: callers must treat nil as "skip this source for this run", never
// as fatal.
func (r *Registry) ResolveFetcher(key string) fetch.Fetcher {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.fetchers[key]; ok {
		return f
	}

	d, ok := r.sources[key]
	if !ok {
		r.logger.Printf("registry: resolve %s: unknown source", key)
		return nil
	}
	factory, ok := r.factories[d.Adapter]
	if !ok {
		r.logger.Printf("registry: resolve %s: unknown adapter %q", key, d.Adapter)
		return nil
	}
	f, err := factory(*d)
	if err != nil {
		r.logger.Printf("registry: resolve %s: %v", key, err)
		return nil
	}
	r.fetchers[key] = f
	return f
}

// RecordFetch records a successful fetch of count contracts: the source
// becomes active, its error count resets and lastFetchAt is stamped.
func (r *Registry) RecordFetch(key string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.sources[key]
	if !ok {
		return
	}
	d.Status = domain.StatusActive
	d.ErrorCount = 0
	d.LastError = ""
	d.LastFetchAt = r.now()
	d.TotalFetched += int64(count)
}

// RecordStatus records a fetch outcome or administrative state change.
// error and rate_limited increment the error count and stamp the attempt
// time; active resets the error count.
func (r *Registry) RecordStatus(key string, status domain.SourceStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.sources[key]
	if !ok {
		return
	}
	d.Status = status
	switch status {
	case domain.StatusError, domain.StatusRateLimited:
		d.ErrorCount++
		d.LastError = message
		d.LastFetchAt = r.now()
	case domain.StatusActive:
		d.ErrorCount = 0
		d.LastError = ""
	}
}

// Statistics is a read-only operational snapshot of the registry.
type Statistics struct {
	Total        int
	Enabled      int
	ByStatus     map[domain.SourceStatus]int
	ByType       map[domain.SourceType]int
	ByTier       map[domain.PriorityTier]int
	ByCountry    map[string]int
	TotalErrors  int
	TotalFetched int64
}

// GetStatistics returns aggregate counts for monitoring surfaces.
func (r *Registry) GetStatistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		ByStatus:  make(map[domain.SourceStatus]int),
		ByType:    make(map[domain.SourceType]int),
		ByTier:    make(map[domain.PriorityTier]int),
		ByCountry: make(map[string]int),
	}
	for _, d := range r.sources {
		stats.Total++
		if d.Enabled {
			stats.Enabled++
		}
		stats.ByStatus[d.Status]++
		stats.ByType[d.Type]++
		stats.ByTier[d.Tier]++
		if d.Country != "" {
			stats.ByCountry[d.Country]++
		}
		stats.TotalErrors += d.ErrorCount
		stats.TotalFetched += d.TotalFetched
	}
	return stats
}
