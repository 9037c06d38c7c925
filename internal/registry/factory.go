package registry

import (
	"fmt"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/fetch"
)

// AdapterFactory constructs a live fetcher for a source descriptor.
// Factories are looked up by the descriptor's Adapter identifier at
// registration time; there is no lazy resolution by reflection.
type AdapterFactory func(domain.SourceDescriptor) (fetch.Fetcher, error)

// Built-in adapter identifiers.
const (
	AdapterHTTPJSON = "httpjson"
	AdapterWSFeed   = "wsfeed"
)

// DefaultFactories returns the built-in adapter set. Both adapters carry
// the shared retry, backoff and rate-limit discipline.
func DefaultFactories() map[string]AdapterFactory {
	return map[string]AdapterFactory{
		AdapterHTTPJSON: func(d domain.SourceDescriptor) (fetch.Fetcher, error) {
			if d.BaseURL == "" {
				return nil, fmt.Errorf("source %s: httpjson adapter requires a base url", d.Key)
			}
			opts := []fetch.HTTPOption{}
			if d.APIKey != "" {
				opts = append(opts, fetch.WithHeader("Authorization", "Bearer "+d.APIKey))
			}
			return fetch.NewHTTPSource(d.BaseURL, opts...), nil
		},
		AdapterWSFeed: func(d domain.SourceDescriptor) (fetch.Fetcher, error) {
			if d.BaseURL == "" {
				return nil, fmt.Errorf("source %s: wsfeed adapter requires a feed url", d.Key)
			}
			opts := []fetch.WSOption{}
			if d.APIKey != "" {
				opts = append(opts, fetch.WithWSHeader("Authorization", "Bearer "+d.APIKey))
			}
			return fetch.NewWSFeedSource(d.BaseURL, opts...), nil
		},
	}
}
