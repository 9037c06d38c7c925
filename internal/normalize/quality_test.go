package normalize

import (
	"testing"
	"time"

	"tenderwatch/internal/domain"
)

func TestScore_Classification(t *testing.T) {
	amount := 1000.0
	deadline := time.Now()

	tests := []struct {
		name     string
		contract domain.NormalizedContract
		want     int
		wantTier domain.QualityTier
	}{
		{
			name:     "empty record",
			contract: domain.NormalizedContract{},
			want:     0,
			wantTier: domain.QualityIncomplete,
		},
		{
			name:     "title only",
			contract: domain.NormalizedContract{Title: "t"},
			want:     20,
			wantTier: domain.QualityIncomplete,
		},
		{
			name: "low",
			contract: domain.NormalizedContract{
				Title:       "t",
				Description: "d",
			},
			want:     35,
			wantTier: domain.QualityLow,
		},
		{
			name: "medium",
			contract: domain.NormalizedContract{
				Title:       "t",
				Description: "d",
				Entity:      "e",
			},
			want:     50,
			wantTier: domain.QualityMedium,
		},
		{
			name: "high at boundary",
			contract: domain.NormalizedContract{
				Title:       "t",
				Description: "d",
				Entity:      "e",
				Amount:      &amount,
				Deadline:    &deadline,
			},
			want:     80,
			wantTier: domain.QualityHigh,
		},
		{
			name: "all fields",
			contract: domain.NormalizedContract{
				Title:           "t",
				Description:     "d",
				Entity:          "e",
				Amount:          &amount,
				Deadline:        &deadline,
				PublicationDate: &deadline,
				Country:         "MX",
				URL:             "https://x",
				Currency:        "USD",
			},
			want:     100,
			wantTier: domain.QualityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(&tt.contract)
			if got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
			if tier := Classify(got); tier != tt.wantTier {
				t.Errorf("Classify(%d) = %s, want %s", got, tier, tt.wantTier)
			}
		})
	}
}

// Adding any previously-absent primary field must never decrease the score.
func TestScore_MonotonicOverPrimaryFields(t *testing.T) {
	amount := 500.0
	deadline := time.Now()

	base := domain.NormalizedContract{Title: "t"}
	baseScore := Score(&base)

	additions := []struct {
		name  string
		apply func(c *domain.NormalizedContract)
	}{
		{"description", func(c *domain.NormalizedContract) { c.Description = "d" }},
		{"entity", func(c *domain.NormalizedContract) { c.Entity = "e" }},
		{"amount", func(c *domain.NormalizedContract) { c.Amount = &amount }},
		{"deadline", func(c *domain.NormalizedContract) { c.Deadline = &deadline }},
	}

	for _, add := range additions {
		t.Run(add.name, func(t *testing.T) {
			c := base
			add.apply(&c)
			if got := Score(&c); got < baseScore {
				t.Errorf("adding %s decreased score: %d < %d", add.name, got, baseScore)
			}
		})
	}
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  domain.QualityTier
	}{
		{100, domain.QualityHigh},
		{80, domain.QualityHigh},
		{79, domain.QualityMedium},
		{50, domain.QualityMedium},
		{49, domain.QualityLow},
		{25, domain.QualityLow},
		{24, domain.QualityIncomplete},
		{0, domain.QualityIncomplete},
	}

	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestToUSD(t *testing.T) {
	amount := 1000.0

	if got := ToUSD(nil, "USD"); got != nil {
		t.Errorf("ToUSD(nil) = %v, want nil", got)
	}
	if got := ToUSD(&amount, "usd"); got == nil || *got != 1000 {
		t.Errorf("ToUSD case-insensitive failed: %v", got)
	}
	if got := ToUSD(&amount, "EUR"); got == nil || *got != 1080 {
		t.Errorf("ToUSD EUR = %v, want 1080", got)
	}
	if got := ToUSD(&amount, "???"); got != nil {
		t.Errorf("ToUSD unknown currency = %v, want nil", got)
	}
}
