package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"turbopix/internal/logging"
	"turbopix/internal/store"
)

// collageSourceWindow is how far back GenerateCollages clusters photos,
// matching the Collage Builder's background run window.
const collageSourceWindow = 365 * 24 * time.Hour

type collageView struct {
	ID          int64      `json:"id"`
	Day         string     `json:"day"`
	FilePath    string     `json:"filePath"`
	PhotoCount  int        `json:"photoCount"`
	PhotoHashes []string   `json:"photoHashes"`
	CreatedAt   time.Time  `json:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
}

func toCollageView(c *store.Collage) collageView {
	return collageView{
		ID:          c.ID,
		Day:         c.Day,
		FilePath:    c.FilePath,
		PhotoCount:  c.PhotoCount,
		PhotoHashes: c.PhotoHashes,
		CreatedAt:   c.CreatedAt,
		AcceptedAt:  c.AcceptedAt,
	}
}

// ListCollages returns every staged collage awaiting an accept/reject
// decision.
func (s *Server) ListCollages(w http.ResponseWriter, r *http.Request) {
	pending, err := s.store.ListPendingCollages(r.Context())
	if err != nil {
		logging.Error("httpapi: listing collages failed: %v", err)
		writeJSONError(w, "failed to list collages", http.StatusInternalServerError)
		return
	}

	views := make([]collageView, len(pending))
	for i, c := range pending {
		views[i] = toCollageView(c)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, views)
}

// GenerateCollages triggers an on-demand Collage Builder run over the last
// year of photos, the same window the background Derive phase uses.
func (s *Server) GenerateCollages(w http.ResponseWriter, r *http.Request) {
	if s.collages == nil {
		writeJSONError(w, "collage generation is not enabled", http.StatusServiceUnavailable)
		return
	}

	since := time.Now().Add(-collageSourceWindow)
	n, err := s.collages.Run(r.Context(), since)
	if err != nil {
		logging.Error("httpapi: generating collages failed: %v", err)
		writeJSONError(w, "failed to generate collages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"generated": n})
}

func collageIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// AcceptCollage moves a staged collage's JPEG into the configured accept
// directory, a watched root, so it flows back through Discover/Metadata
// like any other new file, then marks the collage row accepted.
func (s *Server) AcceptCollage(w http.ResponseWriter, r *http.Request) {
	id, err := collageIDFromRequest(r)
	if err != nil {
		writeJSONError(w, "invalid collage id", http.StatusBadRequest)
		return
	}

	pending, err := s.store.ListPendingCollages(r.Context())
	if err != nil {
		logging.Error("httpapi: listing collages failed: %v", err)
		writeJSONError(w, "failed to look up collage", http.StatusInternalServerError)
		return
	}
	var staged *store.Collage
	for _, c := range pending {
		if c.ID == id {
			staged = c
			break
		}
	}
	if staged == nil {
		writeJSONError(w, "collage not found", http.StatusNotFound)
		return
	}

	if err := os.MkdirAll(s.collageAcceptDir, 0o755); err != nil {
		logging.Error("httpapi: creating collage accept dir failed: %v", err)
		writeJSONError(w, "failed to accept collage", http.StatusInternalServerError)
		return
	}
	acceptedPath := filepath.Join(s.collageAcceptDir, filepath.Base(staged.FilePath))
	if err := os.Rename(staged.FilePath, acceptedPath); err != nil {
		logging.Error("httpapi: moving collage %d to %s failed: %v", id, acceptedPath, err)
		writeJSONError(w, "failed to accept collage", http.StatusInternalServerError)
		return
	}

	if err := s.store.AcceptCollage(r.Context(), id, acceptedPath); err != nil {
		if err == store.ErrNotFound {
			writeJSONError(w, "collage not found", http.StatusNotFound)
			return
		}
		logging.Error("httpapi: accepting collage %d failed: %v", id, err)
		writeJSONError(w, "failed to accept collage", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RejectCollage discards a staged collage: its row is deleted and the
// staged JPEG removed from disk.
func (s *Server) RejectCollage(w http.ResponseWriter, r *http.Request) {
	id, err := collageIDFromRequest(r)
	if err != nil {
		writeJSONError(w, "invalid collage id", http.StatusBadRequest)
		return
	}

	path, err := s.store.RejectCollage(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeJSONError(w, "collage not found", http.StatusNotFound)
			return
		}
		logging.Error("httpapi: rejecting collage %d failed: %v", id, err)
		writeJSONError(w, "failed to reject collage", http.StatusInternalServerError)
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Error("httpapi: removing staged collage file %s failed: %v", path, err)
	}

	w.WriteHeader(http.StatusNoContent)
}
