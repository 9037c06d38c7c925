package domain

import "time"

// RawRecord is one unparsed listing exactly as a source adapter returned it.
type RawRecord map[string]any

// QualityTier classifies a contract's completeness score.
type QualityTier string

const (
	QualityHigh       QualityTier = "HIGH"
	QualityMedium     QualityTier = "MEDIUM"
	QualityLow        QualityTier = "LOW"
	QualityIncomplete QualityTier = "INCOMPLETE"
)

// NormalizedContract is the canonical, source-agnostic representation of
// one procurement listing. Instances are immutable after normalization.
type NormalizedContract struct {
	// ID is a deterministic hash of (source, external id, title).
	ID         string
	ExternalID string
	Source     string
	SourceName string

	Title       string
	Description string
	Entity      string

	// Amount is nil when the source published no usable value.
	Amount   *float64
	Currency string
	// AmountUSD is the amount converted to US dollars via the static
	// rate table. Nil when Amount is nil or the currency is unknown.
	AmountUSD *float64

	Country         string
	PublicationDate *time.Time
	Deadline        *time.Time
	URL             string

	// Raw is the opaque source payload, passed through untouched.
	Raw RawRecord

	QualityScore int
	QualityTier  QualityTier

	FetchedAt    time.Time
	NormalizedAt time.Time
}

// DedupKey returns the uniqueness boundary for contracts: (source, external id).
func (c NormalizedContract) DedupKey() string {
	return c.Source + "|" + c.ExternalID
}
