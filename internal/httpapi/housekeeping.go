package httpapi

import (
	"net/http"
	"time"

	"turbopix/internal/logging"
	"turbopix/internal/store"
)

type housekeepingCandidateView struct {
	PhotoHash string    `json:"photoHash"`
	Path      string    `json:"path"`
	Reason    string    `json:"reason"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

func toHousekeepingCandidateView(c *store.HousekeepingCandidateView) housekeepingCandidateView {
	return housekeepingCandidateView{
		PhotoHash: c.PhotoHash,
		Path:      c.Path,
		Reason:    c.Reason,
		Score:     c.Score,
		CreatedAt: c.CreatedAt,
	}
}

// ListHousekeeping returns every pending review candidate, highest score
// first.
func (s *Server) ListHousekeeping(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.store.ListHousekeepingCandidates(r.Context())
	if err != nil {
		logging.Error("httpapi: listing housekeeping candidates failed: %v", err)
		writeJSONError(w, "failed to list housekeeping candidates", http.StatusInternalServerError)
		return
	}

	views := make([]housekeepingCandidateView, len(candidates))
	for i, c := range candidates {
		views[i] = toHousekeepingCandidateView(c)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, views)
}

// RemoveHousekeeping dismisses one (photo, reason) candidate from the
// review list without acting on it.
func (s *Server) RemoveHousekeeping(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hash := q.Get("photoHash")
	reason := q.Get("reason")
	if hash == "" || reason == "" {
		writeJSONError(w, "photoHash and reason are required", http.StatusBadRequest)
		return
	}

	if err := s.store.RemoveHousekeepingCandidate(r.Context(), hash, reason); err != nil {
		logging.Error("httpapi: removing housekeeping candidate %s/%s failed: %v", hash, reason, err)
		writeJSONError(w, "failed to remove housekeeping candidate", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
