// Package stub provides scriptable fetchers for tests.
package stub

import (
	"context"
	"sync"
	"time"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
)

// Source is a scriptable in-memory fetcher.
// Implements fetch.Fetcher.
type Source struct {
	mu      sync.Mutex
	records []domain.RawRecord
	err     error
	delay   time.Duration
	block   chan struct{}
	calls   int
}

// NewSource creates a stub returning the given records.
func NewSource(records []domain.RawRecord) *Source {
	return &Source{records: records}
}

// NewFailingSource creates a stub that always returns err.
func NewFailingSource(err error) *Source {
	return &Source{err: err}
}

// NewBlockingSource creates a stub whose Fetch does not return until
// Release is called, regardless of context. Used to exercise the
// orchestration-layer timeout guard.
func NewBlockingSource() *Source {
	return &Source{block: make(chan struct{})}
}

// SetDelay makes each Fetch sleep for d before returning.
func (s *Source) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetRecords replaces the records returned by subsequent fetches.
func (s *Source) SetRecords(records []domain.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// SetError makes subsequent fetches fail with err.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Release unblocks a blocking stub.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.block != nil {
		close(s.block)
		s.block = nil
	}
}

// Calls returns how many times Fetch was invoked.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Fetch returns the scripted records or error. Record copies are returned
// to prevent mutation by callers.
func (s *Source) Fetch(_ context.Context, _ fetch.Query) ([]domain.RawRecord, error) {
	s.mu.Lock()
	s.calls++
	records := s.records
	err := s.err
	delay := s.delay
	block := s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
		cp := make(domain.RawRecord, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out, nil
}

// Verify interface compliance at compile time.
var _ fetch.Fetcher = (*Source)(nil)
