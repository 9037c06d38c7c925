package normalize

import "tenderwatch/internal/domain"

// Field weights for the completeness score. Primary fields carry most of
// the weight; the total over all fields is 100.
const (
	weightTitle       = 20
	weightDescription = 15
	weightEntity      = 15
	weightAmount      = 15
	weightDeadline    = 15
	weightPublication = 5
	weightCountry     = 5
	weightURL         = 5
	weightCurrency    = 5
)

// Score computes the 0-100 completeness score for a contract. Adding any
// previously-absent field never decreases the score.
func Score(c *domain.NormalizedContract) int {
	score := 0
	if c.Title != "" {
		score += weightTitle
	}
	if c.Description != "" {
		score += weightDescription
	}
	if c.Entity != "" {
		score += weightEntity
	}
	if c.Amount != nil {
		score += weightAmount
	}
	if c.Deadline != nil {
		score += weightDeadline
	}
	if c.PublicationDate != nil {
		score += weightPublication
	}
	if c.Country != "" {
		score += weightCountry
	}
	if c.URL != "" {
		score += weightURL
	}
	if c.Currency != "" {
		score += weightCurrency
	}
	return score
}

// Classify maps a completeness score to its quality tier.
func Classify(score int) domain.QualityTier {
	switch {
	case score >= 80:
		return domain.QualityHigh
	case score >= 50:
		return domain.QualityMedium
	case score >= 25:
		return domain.QualityLow
	default:
		return domain.QualityIncomplete
	}
}
