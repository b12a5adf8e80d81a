// Package search implements the Search Engine: it dispatches a query string
// either to the Store's structured SQL filters or to a semantic KNN lookup
// over the vector index, fusing both into the same [(path, score)] result
// shape.
package search

import (
	"context"
	"strconv"
	"strings"

	"turbopix/internal/logging"
	"turbopix/internal/store"
)

// minQueryLength is the shortest text a caller can submit before it's
// treated as a semantic query; anything shorter returns empty results
// without spending an encode call, per the "empty or very short queries"
// contract.
const minQueryLength = 2

// Result is one match returned by Search, its score expressed on a 0-100
// scale regardless of which path (structured or semantic) produced it.
type Result struct {
	Path  string
	Hash  string
	Score float64
}

// TextEncoder is the subset of *semantic.Encoder the search engine needs,
// declared locally so this package doesn't need semantic's full ONNX/
// tokenizer dependency surface for callers that only want structured search.
type TextEncoder interface {
	EncodeText(text string) ([]float32, error)
}

// Engine answers search queries against a Store, optionally backed by a
// TextEncoder for the semantic path.
type Engine struct {
	store   *store.Store
	encoder TextEncoder
}

// New creates an Engine. encoder may be nil, in which case a query that
// would otherwise go to the semantic path returns an empty result set
// rather than failing.
func New(st *store.Store, encoder TextEncoder) *Engine {
	return &Engine{store: st, encoder: encoder}
}

// structuredPrefixes are the recognized "key:value" predicates that route a
// query to the Store's SQL filters instead of semantic encoding.
var structuredPrefixes = []string{"type:", "is_favorite:", "year:", "month:"}

// isStructured reports whether query consists entirely of recognized
// key:value predicates (whitespace-separated), the same filter vocabulary
// the Store's Search exposes.
func isStructured(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		matched := false
		for _, p := range structuredPrefixes {
			if strings.HasPrefix(f, p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// parseFilters turns a structured query's key:value tokens into store.Filters.
func parseFilters(query string) store.Filters {
	var f store.Filters
	for _, tok := range strings.Fields(query) {
		key, val, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		switch key {
		case "type":
			mt := store.MediaType(val)
			f.Type = &mt
		case "is_favorite":
			b := val == "true"
			f.IsFavorite = &b
		case "year":
			if y, err := strconv.Atoi(val); err == nil {
				f.Year = &y
			}
		case "month":
			if m, err := strconv.Atoi(val); err == nil {
				f.Month = &m
			}
		}
	}
	return f
}

// Search answers query, dispatching to structured filters or semantic KNN
// retrieval depending on its shape (spec 4.10).
func (e *Engine) Search(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	query = strings.TrimSpace(query)

	if isStructured(query) {
		return e.searchStructured(ctx, query, limit, offset)
	}

	if len(query) < minQueryLength {
		return nil, nil
	}
	return e.searchSemantic(ctx, query, limit, offset)
}

// Semantic runs the semantic KNN path directly for a single term, bypassing
// the structured/semantic dispatch in Search. The Housekeeping Scorer uses
// this to run its fixed query set (spec 4.11: "run a limited semantic
// search (top 100)" per term) without those terms being mistaken for
// structured key:value predicates.
func (e *Engine) Semantic(ctx context.Context, query string, limit int) ([]Result, error) {
	return e.searchSemantic(ctx, query, limit, 0)
}

func (e *Engine) searchStructured(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	filters := parseFilters(query)
	photos, _, err := e.store.Search(ctx, filters, store.ListOptions{
		Sort:   store.SortByTakenAt,
		Order:  store.SortDesc,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(photos))
	for i, p := range photos {
		results[i] = Result{Path: p.Path, Hash: p.Hash, Score: 100}
	}
	return results, nil
}

// searchSemantic encodes query to a unit vector and runs a KNN cosine
// search, scoring and cutting off exactly as spec 4.10 prescribes: distance
// in [0,2] maps to score in [1,0], results below MinSimilarityScore are
// dropped, and the remainder is paginated client-side since sqlite-vec's
// MATCH clause has no OFFSET of its own.
func (e *Engine) searchSemantic(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	if e.encoder == nil {
		logging.Debug("search: semantic query %q received with no encoder configured, returning empty", query)
		return nil, nil
	}

	vec, err := e.encoder.EncodeText(query)
	if err != nil {
		return nil, err
	}

	matches, err := e.store.SearchByVector(ctx, vec, limit+offset, store.MinSimilarityScore)
	if err != nil {
		return nil, err
	}
	if offset >= len(matches) {
		return nil, nil
	}
	matches = matches[offset:]
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{Path: m.Path, Hash: m.Hash, Score: m.Score * 100}
	}
	return results, nil
}
