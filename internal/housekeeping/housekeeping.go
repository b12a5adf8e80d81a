// Package housekeeping implements the Housekeeping Scorer: it runs a fixed
// set of semantic queries against the library looking for low-value media
// (screenshots, blurry shots, scanned documents) and stages the matches for
// user review.
package housekeeping

import (
	"context"
	"time"

	"turbopix/internal/logging"
	"turbopix/internal/search"
	"turbopix/internal/store"
)

// queryTerms is the fixed semantic query set spec 4.11 names; order has no
// effect on results (PK is photo_hash+reason) but is kept stable for
// predictable logging.
var queryTerms = []string{
	"screenshot",
	"blurry image",
	"scanned document",
	"receipt",
	"invoice",
	"meme",
	"whiteboard",
	"qr code",
	"text message screenshot",
	"low quality image",
	"out of focus",
}

// resultsPerTerm is how many top matches each term contributes (spec:
// "top 100").
const resultsPerTerm = 100

// Scorer runs the fixed query set and stages candidates for review. It
// satisfies pipeline.HousekeepRunner.
type Scorer struct {
	store  *store.Store
	search *search.Engine
}

// New creates a Scorer backed by engine's semantic search path.
func New(st *store.Store, engine *search.Engine) *Scorer {
	return &Scorer{store: st, search: engine}
}

// Run executes every fixed query term, resolves each hit's path to its
// current content hash, and atomically replaces the review-candidate table
// with the fresh results. It returns how many candidates were staged.
func (sc *Scorer) Run(ctx context.Context) (int, error) {
	now := time.Now()
	var candidates []store.HousekeepingCandidate

	for _, term := range queryTerms {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		hits, err := sc.search.Semantic(ctx, term, resultsPerTerm)
		if err != nil {
			logging.Warn("housekeeping: query %q failed: %v", term, err)
			continue
		}

		for _, hit := range hits {
			if hit.Hash == "" {
				// The vector index can outlive the photo row it was
				// pointing at by one pipeline pass; skip rather than
				// stage a candidate with no media item behind it.
				continue
			}
			candidates = append(candidates, store.HousekeepingCandidate{
				PhotoHash: hit.Hash,
				Reason:    term,
				Score:     hit.Score,
				CreatedAt: now,
			})
		}
	}

	if err := sc.store.ReplaceHousekeepingCandidates(ctx, candidates); err != nil {
		return 0, err
	}
	return len(candidates), nil
}
