package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tenderwatch/internal/domain"
)

// DefaultHTTPTimeout bounds a single outbound request; the retry policy
// governs the overall call.
const DefaultHTTPTimeout = 30 * time.Second

// maxErrorBody limits how much of an upstream error response is carried
// into error messages and logs.
const maxErrorBody = 256

// HTTPSource fetches listings from a JSON-over-HTTP endpoint. The query
// parameters follow the common portal convention (q, min_amount,
// max_amount, days_back); the response is either a top-level JSON array
// or an envelope object with the records under a configurable key.
type HTTPSource struct {
	endpoint   string
	client     *http.Client
	policy     *Policy
	headers    map[string]string
	resultsKey string
}

// HTTPOption configures HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.client.Timeout = d
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(p *Policy) HTTPOption {
	return func(s *HTTPSource) {
		s.policy = p
	}
}

// WithHeader adds a header to every outbound request.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) {
		s.headers[key] = value
	}
}

// WithResultsKey sets the envelope key holding the record array.
// Empty means the response body is the array itself.
func WithResultsKey(key string) HTTPOption {
	return func(s *HTTPSource) {
		s.resultsKey = key
	}
}

// NewHTTPSource creates a JSON API adapter for the given endpoint.
func NewHTTPSource(endpoint string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
		policy:   DefaultPolicy(),
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch performs the query with retries and returns the raw listings.
func (s *HTTPSource) Fetch(ctx context.Context, q Query) ([]domain.RawRecord, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	vals := u.Query()
	if len(q.Keywords) > 0 {
		vals.Set("q", strings.Join(q.Keywords, " "))
	}
	if q.MinAmount > 0 {
		vals.Set("min_amount", strconv.FormatFloat(q.MinAmount, 'f', -1, 64))
	}
	if q.MaxAmount > 0 {
		vals.Set("max_amount", strconv.FormatFloat(q.MaxAmount, 'f', -1, 64))
	}
	if q.DaysBack > 0 {
		vals.Set("days_back", strconv.Itoa(q.DaysBack))
	}
	u.RawQuery = vals.Encode()

	var records []domain.RawRecord
	err = s.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: truncate(body, maxErrorBody)}
		}

		recs, err := decodeRecords(body, s.resultsKey)
		if err != nil {
			return err
		}
		records = recs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// decodeRecords extracts the record array from a response body, honoring
// an optional envelope key. A missing envelope key yields an empty result.
func decodeRecords(body []byte, resultsKey string) ([]domain.RawRecord, error) {
	if resultsKey != "" {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		inner, ok := env[resultsKey]
		if !ok {
			return nil, nil
		}
		body = inner
	}

	var records []domain.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	return records, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Verify interface compliance at compile time.
var _ Fetcher = (*HTTPSource)(nil)
