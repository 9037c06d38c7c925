// Package schedule drives periodic, priority-tiered aggregation runs and
// reports newly seen contracts to a callback.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tenderwatch/internal/aggregate"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
	"tenderwatch/internal/observability"
	"tenderwatch/internal/registry"
)

// DefaultTick is how often the scheduler checks tiers for due work.
const DefaultTick = 60 * time.Second

// maxErrHistory bounds the retained per-tier error log.
const maxErrHistory = 50

// Callback receives the previously unseen contracts of one tier run.
// It is invoked from the scheduler loop goroutine; long work should be
// handed off by the callback itself.
type Callback func(tier domain.PriorityTier, contracts []domain.NormalizedContract)

// TierError is one recorded scheduler failure.
type TierError struct {
	Tier domain.PriorityTier
	At   time.Time
	Err  string
}

// Scheduler runs each priority tier at its own interval on top of the
// aggregator. One tier run executes at a time.
type Scheduler struct {
	agg      *aggregate.Aggregator
	registry *registry.Registry
	metrics  *observability.Metrics
	logger   *log.Logger
	callback Callback
	query    fetch.Query
	tick     time.Duration
	seen     *SeenSet
	now      func() time.Time

	mu         sync.Mutex
	lastRun    map[domain.PriorityTier]time.Time
	errHistory []TierError
	running    bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Options contains configuration for creating a Scheduler.
type Options struct {
	Aggregator *aggregate.Aggregator
	Registry   *registry.Registry
	Metrics    *observability.Metrics
	Logger     *log.Logger
	// Callback receives new contracts per tier run. Nil means runs still
	// happen and only metrics and status observe the results.
	Callback Callback
	// Query is applied to every scheduled run.
	Query fetch.Query
	// Tick overrides the due-check interval. Zero uses DefaultTick.
	Tick time.Duration
}

// New creates a Scheduler with the provided options.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.New(nil)
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		agg:      opts.Aggregator,
		registry: opts.Registry,
		metrics:  metrics,
		logger:   logger,
		callback: opts.Callback,
		query:    opts.Query,
		tick:     tick,
		seen:     NewSeenSet(),
		now:      time.Now,
		lastRun:  make(map[domain.PriorityTier]time.Time),
	}
}

// Start launches the scheduling loop. It returns immediately; the loop
// stops when ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Printf("schedule: started, tick %s", s.tick)
	go s.loop(ctx)
}

// Stop halts the loop and waits for an in-flight tier run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Printf("schedule: stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTiers(ctx)
		}
	}
}

// checkTiers runs every tier whose interval has elapsed since its last
// run. Tiers run sequentially, most frequent first.
func (s *Scheduler) checkTiers(ctx context.Context) {
	now := s.now()
	for _, tier := range domain.Tiers {
		s.mu.Lock()
		last, ran := s.lastRun[tier]
		s.mu.Unlock()

		if ran && now.Sub(last) < tier.Interval() {
			continue
		}
		s.runTier(ctx, tier)
	}
}

// RunNow executes one tier immediately, outside the regular cadence, and
// returns the previously unseen contracts.
func (s *Scheduler) RunNow(ctx context.Context, tier domain.PriorityTier) ([]domain.NormalizedContract, error) {
	if !tier.IsValid() {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	return s.runTier(ctx, tier), nil
}

// runTier executes one tier's sources through the aggregator and pushes
// new contracts to the callback. A panic anywhere below is contained so
// a bad source or callback cannot take down the loop.
func (s *Scheduler) runTier(ctx context.Context, tier domain.PriorityTier) (fresh []domain.NormalizedContract) {
	defer func() {
		if r := recover(); r != nil {
			s.recordError(tier, fmt.Errorf("panic: %v", r))
		}
	}()

	s.mu.Lock()
	s.lastRun[tier] = s.now()
	s.mu.Unlock()

	sources := s.registry.SelectByPriority(tier)
	if len(sources) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sources))
	for _, d := range sources {
		keys = append(keys, d.Key)
	}

	s.metrics.TierRunsTotal.WithLabelValues(string(tier)).Inc()

	summary, err := s.agg.Run(ctx, aggregate.Request{
		Mode:    domain.ModeSelective,
		Sources: keys,
		Query:   s.query,
	})
	if err != nil {
		s.recordError(tier, err)
		return nil
	}
	for _, e := range summary.Errors {
		s.recordError(tier, fmt.Errorf("%s", e))
	}

	for _, c := range summary.Contracts {
		if s.seen.Add(c.ID) {
			fresh = append(fresh, c)
		}
	}
	s.metrics.NewContracts.Add(float64(len(fresh)))
	s.logger.Printf("schedule: tier %s ran %d sources, %d contracts (%d new)",
		tier, len(keys), len(summary.Contracts), len(fresh))

	if s.callback != nil && len(fresh) > 0 {
		s.callback(tier, fresh)
	}
	return fresh
}

func (s *Scheduler) recordError(tier domain.PriorityTier, err error) {
	s.metrics.SchedulerError.WithLabelValues(string(tier)).Inc()
	s.logger.Printf("schedule: tier %s: %v", tier, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.errHistory = append(s.errHistory, TierError{Tier: tier, At: s.now(), Err: err.Error()})
	if len(s.errHistory) > maxErrHistory {
		s.errHistory = append([]TierError(nil), s.errHistory[len(s.errHistory)-maxErrHistory:]...)
	}
}

// TierStatus describes one tier's scheduling state.
type TierStatus struct {
	Tier      domain.PriorityTier `json:"tier"`
	Interval  string              `json:"interval"`
	LastRunAt time.Time           `json:"last_run_at"`
	NextRunAt time.Time           `json:"next_run_at"`
	Sources   int                 `json:"sources"`
}

// Status is an operational snapshot of the scheduler.
type Status struct {
	Running bool         `json:"running"`
	Seen    int          `json:"seen_contracts"`
	Tiers   []TierStatus `json:"tiers"`
	Errors  []TierError  `json:"recent_errors,omitempty"`
}

// GetStatus returns the current scheduling state for monitoring surfaces.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	running := s.running
	lastRun := make(map[domain.PriorityTier]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		lastRun[k] = v
	}
	errs := append([]TierError(nil), s.errHistory...)
	s.mu.Unlock()

	st := Status{
		Running: running,
		Seen:    s.seen.Len(),
		Errors:  errs,
	}
	for _, tier := range domain.Tiers {
		ts := TierStatus{
			Tier:     tier,
			Interval: tier.Interval().String(),
			Sources:  len(s.registry.SelectByPriority(tier)),
		}
		if last, ok := lastRun[tier]; ok {
			ts.LastRunAt = last
			ts.NextRunAt = last.Add(tier.Interval())
		}
		st.Tiers = append(st.Tiers, ts)
	}
	return st
}
