package registry

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func stubFactories() map[string]AdapterFactory {
	return map[string]AdapterFactory{
		"stub": func(domain.SourceDescriptor) (fetch.Fetcher, error) {
			return fetch.FetcherFunc(func(context.Context, fetch.Query) ([]domain.RawRecord, error) {
				return nil, nil
			}), nil
		},
		"broken": func(domain.SourceDescriptor) (fetch.Fetcher, error) {
			return nil, errors.New("construction failed")
		},
	}
}

func newTestRegistry() *Registry {
	return New(Options{Factories: stubFactories(), Logger: quietLogger()})
}

func descriptor(key string, tier domain.PriorityTier) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Key:         key,
		DisplayName: key,
		Type:        domain.SourceTypeAPI,
		Adapter:     "stub",
		Tier:        tier,
		Country:     "MX",
		Enabled:     true,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("a", domain.TierNormal))

	d, ok := r.Get("a")
	if !ok {
		t.Fatal("source not found")
	}
	if d.Status != domain.StatusActive {
		t.Errorf("Status = %s, want active default", d.Status)
	}

	// Upsert never fails, unknown tier is normalized.
	bad := descriptor("a", "weird")
	r.Register(bad)
	d, _ = r.Get("a")
	if d.Tier != domain.TierNormal {
		t.Errorf("Tier = %s, want normal fallback", d.Tier)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("a", domain.TierNormal))

	d, _ := r.Get("a")
	d.ErrorCount = 99

	d2, _ := r.Get("a")
	if d2.ErrorCount != 0 {
		t.Error("Get must return a copy, not shared state")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("a", domain.TierNormal))
	r.Unregister("a")
	if _, ok := r.Get("a"); ok {
		t.Error("source should be gone")
	}
}

func TestRegistry_SelectEnabled(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("b_daily", domain.TierDaily))
	r.Register(descriptor("a_critical", domain.TierCritical))
	disabled := descriptor("c_off", domain.TierHigh)
	disabled.Enabled = false
	r.Register(disabled)

	got := r.SelectEnabled()
	if len(got) != 2 {
		t.Fatalf("got %d sources, want 2", len(got))
	}
	// Ordered by tier, critical first.
	if got[0].Key != "a_critical" || got[1].Key != "b_daily" {
		t.Errorf("order = [%s %s]", got[0].Key, got[1].Key)
	}
}

func TestRegistry_SelectByCountry(t *testing.T) {
	r := newTestRegistry()
	mx := descriptor("mx1", domain.TierNormal)
	pe := descriptor("pe1", domain.TierNormal)
	pe.Country = "PE"
	r.Register(mx)
	r.Register(pe)

	got := r.SelectByCountry("pe")
	if len(got) != 1 || got[0].Key != "pe1" {
		t.Errorf("SelectByCountry = %v", got)
	}
}

func TestRegistry_SelectByPriority(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("c1", domain.TierCritical))
	r.Register(descriptor("n1", domain.TierNormal))

	got := r.SelectByPriority(domain.TierCritical)
	if len(got) != 1 || got[0].Key != "c1" {
		t.Errorf("SelectByPriority = %v", got)
	}
}

// Scenario from the design review: A (critical, interval 5, never
// fetched) is due; B (daily, fetched 10 minutes ago) is not.
func TestRegistry_SelectDueForUpdate_Scenario(t *testing.T) {
	r := newTestRegistry()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	a := descriptor("A", domain.TierCritical)
	a.UpdateIntervalMinutes = 5
	r.Register(a)

	b := descriptor("B", domain.TierDaily)
	b.UpdateIntervalMinutes = 1440
	b.LastFetchAt = now.Add(-10 * time.Minute)
	r.Register(b)

	got := r.SelectDueForUpdate(now)
	if len(got) != 1 {
		t.Fatalf("got %d sources, want 1", len(got))
	}
	if got[0].Key != "A" {
		t.Errorf("due source = %s, want A", got[0].Key)
	}
}

func TestRegistry_SelectDueForUpdate_IntervalElapsed(t *testing.T) {
	r := newTestRegistry()
	now := time.Now()

	d := descriptor("x", domain.TierNormal)
	d.UpdateIntervalMinutes = 30
	d.LastFetchAt = now.Add(-30 * time.Minute)
	r.Register(d)

	if got := r.SelectDueForUpdate(now); len(got) != 1 {
		t.Errorf("exactly-elapsed interval must be due, got %d", len(got))
	}

	d.LastFetchAt = now.Add(-29 * time.Minute)
	r.Register(d)
	if got := r.SelectDueForUpdate(now); len(got) != 0 {
		t.Errorf("not-yet-elapsed interval must not be due, got %d", len(got))
	}
}

// Cooldown boundary: errorCount=3 gives max(30min, 30min) = 30min. The
// source is excluded strictly inside the window and included once the
// window has elapsed.
func TestRegistry_SelectDueForUpdate_CooldownBoundary(t *testing.T) {
	r := newTestRegistry()
	t0 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	d := descriptor("X", domain.TierNormal)
	d.UpdateIntervalMinutes = 5
	d.Status = domain.StatusError
	d.ErrorCount = 3
	d.LastFetchAt = t0
	r.Register(d)

	if got := r.SelectDueForUpdate(t0.Add(29 * time.Minute)); len(got) != 0 {
		t.Error("source inside cooldown must be excluded")
	}
	if got := r.SelectDueForUpdate(t0.Add(30 * time.Minute)); len(got) != 1 {
		t.Error("source at cooldown boundary must be included")
	}
	if got := r.SelectDueForUpdate(t0.Add(35 * time.Minute)); len(got) != 1 {
		t.Error("source past cooldown must be included")
	}
}

func TestRegistry_SelectDueForUpdate_CooldownGrowsWithErrors(t *testing.T) {
	r := newTestRegistry()
	t0 := time.Now()

	d := descriptor("X", domain.TierNormal)
	d.UpdateIntervalMinutes = 5
	d.Status = domain.StatusError
	d.ErrorCount = 6 // 60min cooldown
	d.LastFetchAt = t0
	r.Register(d)

	if got := r.SelectDueForUpdate(t0.Add(45 * time.Minute)); len(got) != 0 {
		t.Error("6 errors must extend the cooldown past 45min")
	}
	if got := r.SelectDueForUpdate(t0.Add(61 * time.Minute)); len(got) != 1 {
		t.Error("source must be due after 60min cooldown")
	}
}

func TestRegistry_SelectDueForUpdate_CooldownCapped(t *testing.T) {
	r := New(Options{Factories: stubFactories(), Logger: quietLogger(), CooldownCap: time.Hour})
	t0 := time.Now()

	d := descriptor("X", domain.TierNormal)
	d.UpdateIntervalMinutes = 5
	d.Status = domain.StatusError
	d.ErrorCount = 1000 // uncapped this would be ~7 days
	d.LastFetchAt = t0
	r.Register(d)

	if got := r.SelectDueForUpdate(t0.Add(61 * time.Minute)); len(got) != 1 {
		t.Error("cooldown must be capped at the configured maximum")
	}
}

func TestRegistry_SelectDueForUpdate_AdminStatesExcluded(t *testing.T) {
	r := newTestRegistry()

	for _, status := range []domain.SourceStatus{domain.StatusInactive, domain.StatusMaintenance} {
		d := descriptor("x_"+string(status), domain.TierNormal)
		d.Status = status
		r.Register(d)
	}

	if got := r.SelectDueForUpdate(time.Now()); len(got) != 0 {
		t.Errorf("admin-controlled states must never be selected, got %d", len(got))
	}
}

func TestRegistry_RecordFetch(t *testing.T) {
	r := newTestRegistry()
	d := descriptor("a", domain.TierNormal)
	d.Status = domain.StatusError
	d.ErrorCount = 4
	d.LastError = "boom"
	r.Register(d)

	r.RecordFetch("a", 12)

	got, _ := r.Get("a")
	if got.Status != domain.StatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
	if got.ErrorCount != 0 || got.LastError != "" {
		t.Errorf("error state not reset: count=%d err=%q", got.ErrorCount, got.LastError)
	}
	if got.TotalFetched != 12 {
		t.Errorf("TotalFetched = %d, want 12", got.TotalFetched)
	}
	if got.LastFetchAt.IsZero() {
		t.Error("LastFetchAt not stamped")
	}
}

func TestRegistry_RecordStatus_ErrorTransitions(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("a", domain.TierNormal))

	r.RecordStatus("a", domain.StatusError, "timeout")
	r.RecordStatus("a", domain.StatusError, "again")

	got, _ := r.Get("a")
	if got.Status != domain.StatusError {
		t.Errorf("Status = %s", got.Status)
	}
	if got.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", got.ErrorCount)
	}
	if got.LastError != "again" {
		t.Errorf("LastError = %q", got.LastError)
	}

	// Recovery resets the error state.
	r.RecordStatus("a", domain.StatusActive, "")
	got, _ = r.Get("a")
	if got.ErrorCount != 0 || got.LastError != "" {
		t.Errorf("error state not cleared: count=%d err=%q", got.ErrorCount, got.LastError)
	}
}

func TestRegistry_RecordStatus_RateLimited(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("a", domain.TierNormal))

	r.RecordStatus("a", domain.StatusRateLimited, "429")
	got, _ := r.Get("a")
	if got.Status != domain.StatusRateLimited || got.ErrorCount != 1 {
		t.Errorf("got status=%s count=%d", got.Status, got.ErrorCount)
	}
}

func TestRegistry_ResolveFetcher(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("good", domain.TierNormal))

	f := r.ResolveFetcher("good")
	if f == nil {
		t.Fatal("expected fetcher")
	}
	// Resolved adapters are cached.
	if f2 := r.ResolveFetcher("good"); f2 == nil {
		t.Fatal("cached resolve failed")
	}
}

func TestRegistry_ResolveFetcher_Failures(t *testing.T) {
	r := newTestRegistry()

	if f := r.ResolveFetcher("missing"); f != nil {
		t.Error("unknown source must resolve to nil")
	}

	unknown := descriptor("u", domain.TierNormal)
	unknown.Adapter = "nope"
	r.Register(unknown)
	if f := r.ResolveFetcher("u"); f != nil {
		t.Error("unknown adapter must resolve to nil")
	}

	broken := descriptor("b", domain.TierNormal)
	broken.Adapter = "broken"
	r.Register(broken)
	if f := r.ResolveFetcher("b"); f != nil {
		t.Error("construction failure must resolve to nil")
	}
}

func TestRegistry_GetStatistics(t *testing.T) {
	r := newTestRegistry()
	r.Register(descriptor("a", domain.TierCritical))
	r.Register(descriptor("b", domain.TierNormal))
	off := descriptor("c", domain.TierNormal)
	off.Enabled = false
	off.Country = "PE"
	r.Register(off)

	r.RecordFetch("a", 5)
	r.RecordStatus("b", domain.StatusError, "x")

	stats := r.GetStatistics()
	if stats.Total != 3 || stats.Enabled != 2 {
		t.Errorf("Total/Enabled = %d/%d", stats.Total, stats.Enabled)
	}
	if stats.ByStatus[domain.StatusError] != 1 {
		t.Errorf("ByStatus[error] = %d", stats.ByStatus[domain.StatusError])
	}
	if stats.ByTier[domain.TierCritical] != 1 {
		t.Errorf("ByTier[critical] = %d", stats.ByTier[domain.TierCritical])
	}
	if stats.ByCountry["MX"] != 2 || stats.ByCountry["PE"] != 1 {
		t.Errorf("ByCountry = %v", stats.ByCountry)
	}
	if stats.TotalErrors != 1 || stats.TotalFetched != 5 {
		t.Errorf("TotalErrors/TotalFetched = %d/%d", stats.TotalErrors, stats.TotalFetched)
	}
}

func TestDefaultFactories(t *testing.T) {
	factories := DefaultFactories()

	for _, adapter := range []string{AdapterHTTPJSON, AdapterWSFeed} {
		factory, ok := factories[adapter]
		if !ok {
			t.Fatalf("missing factory %s", adapter)
		}

		// No base url is a construction error.
		if _, err := factory(domain.SourceDescriptor{Key: "k"}); err == nil {
			t.Errorf("%s: expected error without base url", adapter)
		}

		f, err := factory(domain.SourceDescriptor{Key: "k", BaseURL: "https://example.org/api"})
		if err != nil {
			t.Errorf("%s: construction failed: %v", adapter, err)
		}
		if f == nil {
			t.Errorf("%s: nil fetcher", adapter)
		}
	}
}
