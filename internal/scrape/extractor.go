// Package scrape holds the per-store price extractors and the registry that
// dispatches a URL to the first extractor claiming it.
package scrape

import "context"

// SourceUnknown tags results for URLs no extractor claims.
const SourceUnknown = "unknown"

// Result is one extraction outcome. A nil Price means the page layout was
// not recognized or the store is unsupported; that is a degraded result,
// not an error.
type Result struct {
	Price  *float64 `json:"price"`
	Title  *string  `json:"title"`
	Source string   `json:"source"`
}

// Extractor fetches one store's product page and pulls out price and title.
//
// CanHandle must be a cheap, pure pattern match on the URL. Extract returns
// an error only for network-level failures (non-2xx, timeout, DNS); malformed
// or unrecognized page content degrades to a Result with a nil Price.
type Extractor interface {
	CanHandle(url string) bool
	Extract(ctx context.Context, url string) (Result, error)
}
