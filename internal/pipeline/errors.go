package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/scrape"
)

// ErrorKind buckets adapter failures for operators and metrics labels.
type ErrorKind string

const (
	// KindTransient covers timeouts and connection-level failures; a later
	// run will usually succeed without intervention.
	KindTransient ErrorKind = "transient_network"
	// KindRateLimited means the fetcher exhausted its 429 retry budget.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUpstreamFormat means the provider answered with an unexpected
	// payload shape; logged as a data-quality issue, never retried.
	KindUpstreamFormat ErrorKind = "upstream_format"
	// KindScrapeStructure means the table-discovery heuristic came up
	// empty; the source page layout changed and needs operator attention.
	KindScrapeStructure ErrorKind = "scrape_structure_not_found"
	// KindStorage is a persistence failure at the end of a run.
	KindStorage ErrorKind = "storage"
)

// SourceError is an adapter failure as a value. These are collected per
// run and surfaced in the response; they never propagate as panics.
type SourceError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// classify wraps an adapter error with its taxonomy bucket.
func classify(source string, err error) *SourceError {
	kind := KindUpstreamFormat
	switch {
	case fetch.IsRateLimited(err):
		kind = KindRateLimited
	// Browser navigation deadlines surface as a bare context error, not a
	// fetch.Error; they are just as retryable as a fetch timeout.
	case fetch.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	case errors.Is(err, scrape.ErrTableNotFound), errors.Is(err, scrape.ErrNoDateRows):
		kind = KindScrapeStructure
	}
	return &SourceError{Source: source, Kind: kind, Err: err}
}
