package scrape

import (
	"context"

	"go.uber.org/zap"
)

// Registry dispatches URLs to extractors in registration order; the first
// CanHandle match wins, so order is significant and fixed at construction.
type Registry struct {
	extractors []Extractor
	log        *zap.Logger
}

func NewRegistry(log *zap.Logger, extractors ...Extractor) *Registry {
	return &Registry{
		extractors: extractors,
		log:        log.With(zap.String("component", "scrape.registry")),
	}
}

// Resolve returns the first extractor claiming the URL, or nil.
func (r *Registry) Resolve(url string) Extractor {
	for _, e := range r.extractors {
		if e.CanHandle(url) {
			return e
		}
	}
	return nil
}

// Extract runs the matching extractor. An unsupported URL yields the
// "unknown" sentinel result and no error.
func (r *Registry) Extract(ctx context.Context, url string) (Result, error) {
	e := r.Resolve(url)
	if e == nil {
		r.log.Warn("unsupported store", zap.String("url", url))
		return Result{Source: SourceUnknown}, nil
	}
	return e.Extract(ctx, url)
}
