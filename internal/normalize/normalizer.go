// Package normalize converts raw source records into the canonical
// contract shape: field aliasing, amount and date parsing, currency
// conversion and quality scoring.
package normalize

import (
	"errors"
	"log"
	"time"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/idhash"
)

// ErrNoTitle is returned when no usable title can be derived from a record.
var ErrNoTitle = errors.New("record has no usable title")

// FieldMapping overrides the default alias order for a source: keys are
// logical field names, values are raw keys tried before the built-in
// aliases.
type FieldMapping map[string][]string

// Normalizer converts raw records into canonical contracts.
type Normalizer struct {
	logger *log.Logger
	now    func() time.Time
}

// New creates a Normalizer. A nil logger falls back to log.Default().
func New(logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{
		logger: logger,
		now:    time.Now,
	}
}

// aliases returns the alias order for field, with mapping overrides first.
func (n *Normalizer) aliases(field string, mapping FieldMapping) []string {
	base := fieldAliases[field]
	if mapping == nil {
		return base
	}
	extra, ok := mapping[field]
	if !ok {
		return base
	}
	merged := make([]string, 0, len(extra)+len(base))
	merged = append(merged, extra...)
	merged = append(merged, base...)
	return merged
}

// Normalize converts one raw record from src into a canonical contract.
// The contract id is a pure function of (source key, external id, title),
// so re-normalizing identical input yields the identical id. Records with
// no derivable title are rejected; records with no external id get a
// stable surrogate derived from title and url.
func (n *Normalizer) Normalize(raw domain.RawRecord, src domain.SourceDescriptor, mapping FieldMapping) (*domain.NormalizedContract, error) {
	title := stringField(raw, n.aliases("title", mapping))
	if title == "" {
		return nil, ErrNoTitle
	}

	urlStr := stringField(raw, n.aliases("url", mapping))

	externalID := stringField(raw, n.aliases("external_id", mapping))
	if externalID == "" {
		externalID = idhash.DeriveExternalID(title, urlStr)
	}

	currency := stringField(raw, n.aliases("currency", mapping))
	if currency == "" {
		currency = src.DefaultCurrency
	}

	country := stringField(raw, n.aliases("country", mapping))
	if country == "" {
		country = src.Country
	}

	amount := amountField(raw, n.aliases("amount", mapping))

	now := n.now().UTC()
	c := &domain.NormalizedContract{
		ID:              idhash.ComputeContractID(src.Key, externalID, title),
		ExternalID:      externalID,
		Source:          src.Key,
		SourceName:      src.DisplayName,
		Title:           title,
		Description:     stringField(raw, n.aliases("description", mapping)),
		Entity:          stringField(raw, n.aliases("entity", mapping)),
		Amount:          amount,
		Currency:        currency,
		AmountUSD:       ToUSD(amount, currency),
		Country:         country,
		PublicationDate: dateField(raw, n.aliases("publication", mapping)),
		Deadline:        dateField(raw, n.aliases("deadline", mapping)),
		URL:             urlStr,
		Raw:             raw,
		FetchedAt:       now,
		NormalizedAt:    now,
	}

	c.QualityScore = Score(c)
	c.QualityTier = Classify(c.QualityScore)

	return c, nil
}

// NormalizeBatch converts a batch of raw records. A record that fails to
// normalize is logged and skipped; it never aborts the batch.
func (n *Normalizer) NormalizeBatch(raws []domain.RawRecord, src domain.SourceDescriptor, mapping FieldMapping) []domain.NormalizedContract {
	out := make([]domain.NormalizedContract, 0, len(raws))
	for i, raw := range raws {
		c, err := n.Normalize(raw, src, mapping)
		if err != nil {
			n.logger.Printf("normalize %s record %d: %v", src.Key, i, err)
			continue
		}
		out = append(out, *c)
	}
	return out
}
