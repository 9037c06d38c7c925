package domain

import "time"

// SourceType classifies how a source's listings are obtained.
type SourceType string

const (
	SourceTypeAPI     SourceType = "api"
	SourceTypeScraper SourceType = "scraper"
	SourceTypeRSS     SourceType = "rss"
	SourceTypeFile    SourceType = "file"
	SourceTypeStream  SourceType = "stream"
)

// IsValid checks if the source type is a known value.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeAPI, SourceTypeScraper, SourceTypeRSS, SourceTypeFile, SourceTypeStream:
		return true
	}
	return false
}

// PriorityTier is the refresh-frequency class of a source.
type PriorityTier string

const (
	TierCritical PriorityTier = "critical"
	TierHigh     PriorityTier = "high"
	TierNormal   PriorityTier = "normal"
	TierLow      PriorityTier = "low"
	TierDaily    PriorityTier = "daily"
)

// Tiers lists all priority tiers in refresh order, most frequent first.
var Tiers = []PriorityTier{TierCritical, TierHigh, TierNormal, TierLow, TierDaily}

// Interval returns the scheduled refresh interval for the tier.
// Unknown tiers fall back to the normal interval.
func (t PriorityTier) Interval() time.Duration {
	switch t {
	case TierCritical:
		return 5 * time.Minute
	case TierHigh:
		return 15 * time.Minute
	case TierNormal:
		return 60 * time.Minute
	case TierLow:
		return 360 * time.Minute
	case TierDaily:
		return 1440 * time.Minute
	default:
		return 60 * time.Minute
	}
}

// Rank returns the sort order of the tier, critical first.
func (t PriorityTier) Rank() int {
	switch t {
	case TierCritical:
		return 0
	case TierHigh:
		return 1
	case TierNormal:
		return 2
	case TierLow:
		return 3
	case TierDaily:
		return 4
	default:
		return 5
	}
}

// IsValid checks if the tier is a known value.
func (t PriorityTier) IsValid() bool {
	return t.Rank() < 5
}

// SourceStatus is the live operational state of a source.
// active, error and rate_limited are driven by fetch outcomes;
// inactive and maintenance are administrator-controlled and suppress
// selection entirely.
type SourceStatus string

const (
	StatusActive      SourceStatus = "active"
	StatusError       SourceStatus = "error"
	StatusRateLimited SourceStatus = "rate_limited"
	StatusInactive    SourceStatus = "inactive"
	StatusMaintenance SourceStatus = "maintenance"
)

// SourceDescriptor holds configuration and live status for one source.
type SourceDescriptor struct {
	Key         string
	DisplayName string
	Type        SourceType
	// Adapter identifies the factory that constructs the live fetcher.
	Adapter         string
	Tier            PriorityTier
	Country         string
	DefaultCurrency string
	BaseURL         string
	APIKey          string
	Enabled         bool

	// UpdateIntervalMinutes overrides the tier interval when > 0.
	UpdateIntervalMinutes int

	// Live status, mutated only by the registry after fetch outcomes.
	Status       SourceStatus
	ErrorCount   int
	LastError    string
	LastFetchAt  time.Time // zero = never fetched
	TotalFetched int64
}

// UpdateInterval returns the effective refresh interval for the source.
func (d SourceDescriptor) UpdateInterval() time.Duration {
	if d.UpdateIntervalMinutes > 0 {
		return time.Duration(d.UpdateIntervalMinutes) * time.Minute
	}
	return d.Tier.Interval()
}
