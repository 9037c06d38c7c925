// Package fetch defines the capability every source adapter implements
// and the shared retry, backoff and rate-limit discipline adapters use
// for their outbound IO.
package fetch

import (
	"context"

	"tenderwatch/internal/domain"
)

// Query carries the filter parameters passed to every source adapter.
// Zero values mean "unbounded".
type Query struct {
	Keywords  []string
	MinAmount float64
	MaxAmount float64
	DaysBack  int
}

// Fetcher is implemented by every source adapter. Fetch performs the
// adapter's own HTTP/IO including retries and rate limiting, and returns
// the raw listings. A failed fetch returns an error; it must never panic
// across this boundary, and a failure is always local to the source.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]domain.RawRecord, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, q Query) ([]domain.RawRecord, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, q Query) ([]domain.RawRecord, error) {
	return f(ctx, q)
}
