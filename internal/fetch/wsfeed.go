package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tenderwatch/internal/domain"
)

// DefaultReadTimeout bounds the wait for each feed frame.
const DefaultReadTimeout = 30 * time.Second

// WSFeedSource fetches listings from a push feed speaking JSON over
// WebSocket. Fetch sends one query frame and collects record frames until
// the server signals completion or the read deadline expires.
type WSFeedSource struct {
	url         string
	dialer      *websocket.Dialer
	policy      *Policy
	header      http.Header
	readTimeout time.Duration
}

// WSOption configures WSFeedSource.
type WSOption func(*WSFeedSource)

// WithWSPolicy sets the retry policy.
func WithWSPolicy(p *Policy) WSOption {
	return func(s *WSFeedSource) {
		s.policy = p
	}
}

// WithWSHeader adds a header to the connection handshake.
func WithWSHeader(key, value string) WSOption {
	return func(s *WSFeedSource) {
		s.header.Set(key, value)
	}
}

// WithReadTimeout sets the per-frame read deadline.
func WithReadTimeout(d time.Duration) WSOption {
	return func(s *WSFeedSource) {
		s.readTimeout = d
	}
}

// NewWSFeedSource creates a WebSocket feed adapter for the given url
// (ws:// or wss://).
func NewWSFeedSource(url string, opts ...WSOption) *WSFeedSource {
	s := &WSFeedSource{
		url:         url,
		dialer:      websocket.DefaultDialer,
		policy:      DefaultPolicy(),
		header:      make(http.Header),
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queryFrame is the single request frame sent after connecting.
type queryFrame struct {
	Action    string   `json:"action"`
	Keywords  []string `json:"keywords,omitempty"`
	MinAmount float64  `json:"min_amount,omitempty"`
	MaxAmount float64  `json:"max_amount,omitempty"`
	DaysBack  int      `json:"days_back,omitempty"`
}

// feedFrame is one server message: a record or a completion marker.
type feedFrame struct {
	Type   string           `json:"type"`
	Record domain.RawRecord `json:"record,omitempty"`
}

// Fetch connects, queries, and drains the feed with retries.
func (s *WSFeedSource) Fetch(ctx context.Context, q Query) ([]domain.RawRecord, error) {
	var records []domain.RawRecord

	err := s.policy.Do(ctx, func() error {
		records = records[:0]

		conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			if resp != nil {
				return &StatusError{Code: resp.StatusCode}
			}
			return fmt.Errorf("dial feed: %w", err)
		}
		defer conn.Close()

		frame := queryFrame{
			Action:    "query",
			Keywords:  q.Keywords,
			MinAmount: q.MinAmount,
			MaxAmount: q.MaxAmount,
			DaysBack:  q.DaysBack,
		}
		if err := conn.WriteJSON(frame); err != nil {
			return fmt.Errorf("write query: %w", err)
		}

		for {
			if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
				return err
			}

			var f feedFrame
			if err := conn.ReadJSON(&f); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("read frame: %w", err)
			}

			switch f.Type {
			case "record":
				if f.Record != nil {
					records = append(records, f.Record)
				}
			case "done":
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Verify interface compliance at compile time.
var _ Fetcher = (*WSFeedSource)(nil)
