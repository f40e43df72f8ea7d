/*
Package jobs contains batch workers that fan out to external services.

PURPOSE:
  Comparable-property evidence arrives with an address but no coordinates;
  distance to the subject property is part of the evidence packet, so
  comparables are enriched through a geocoding service. Upstream rate limits
  cap how hard we may hit that service: items are processed in fixed-size
  batches with one in-flight request per item, and results come back in
  input order regardless of completion order.

SEE ALSO:
  - api/handlers.go: EnrichComparables endpoint driving this worker
*/
package jobs

import (
	"context"
	"sync"

	"github.com/overtaxed/appeal-engine/appeal"
)

// enrichBatchSize caps in-flight geocoding calls per batch, respecting the
// upstream rate limit.
const enrichBatchSize = 5

// Location is a geocoded coordinate pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, address string) (Location, error)
}

// EnrichResult is the per-comparable outcome, positionally aligned with the
// input slice.
type EnrichResult struct {
	ComparableID string
	Location     Location
	Err          error
}

// EnrichComparables geocodes comparables in batches of enrichBatchSize,
// preserving input order in the output. Per-item failures are recorded in
// the result and never abort the remaining items.
func EnrichComparables(ctx context.Context, g Geocoder, comps []appeal.Comparable) []EnrichResult {
	results := make([]EnrichResult, len(comps))

	for start := 0; start < len(comps); start += enrichBatchSize {
		end := start + enrichBatchSize
		if end > len(comps) {
			end = len(comps)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				loc, err := g.Locate(ctx, comps[i].Address)
				results[i] = EnrichResult{ComparableID: comps[i].ID, Location: loc, Err: err}
			}(i)
		}
		wg.Wait()
	}

	return results
}
