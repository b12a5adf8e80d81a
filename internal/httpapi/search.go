package httpapi

import (
	"net/http"
	"strconv"

	"turbopix/internal/logging"
)

// searchHit is the wire shape of one semantic/structured search result,
// per the spec's "[{path, hash, score}] sorted by score desc" contract.
type searchHit struct {
	Path  string  `json:"path"`
	Hash  string  `json:"hash"`
	Score float64 `json:"score"`
}

// Search answers ?q=&limit=&offset=, dispatching through the Search Engine
// to either the structured SQL path or the semantic KNN path depending on
// the query's shape.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")

	limit := 50
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	results, err := s.search.Search(r.Context(), query, limit, offset)
	if err != nil {
		logging.Error("httpapi: search %q failed: %v", query, err)
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}

	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{Path: res.Path, Hash: res.Hash, Score: res.Score}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, hits)
}
