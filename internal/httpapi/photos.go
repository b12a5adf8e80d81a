package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/jpeg"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"turbopix/internal/logging"
	"turbopix/internal/rawdecode"
	"turbopix/internal/store"
)

// photoView is the JSON shape a photo is rendered as: the envelope's hot
// fields promoted alongside identity and timestamps, mirroring the columns
// the store itself promotes out of metadata_json.
type photoView struct {
	Hash         string         `json:"hash"`
	Path         string         `json:"path"`
	FileSize     int64          `json:"fileSize"`
	MediaType    store.MediaType `json:"mediaType"`
	CameraMake   string         `json:"cameraMake,omitempty"`
	CameraModel  string         `json:"cameraModel,omitempty"`
	TakenAt      *time.Time     `json:"takenAt,omitempty"`
	IsFavorite   bool           `json:"isFavorite"`
	Metadata     store.Envelope `json:"metadata"`
	IndexedAt    time.Time      `json:"indexedAt"`
}

func toPhotoView(p *store.Photo) photoView {
	return photoView{
		Hash:        p.Hash,
		Path:        p.Path,
		FileSize:    p.FileSize,
		MediaType:   p.MediaType,
		CameraMake:  p.CameraMake,
		CameraModel: p.CameraModel,
		TakenAt:     p.TakenAt,
		IsFavorite:  p.IsFavorite,
		Metadata:    p.Metadata,
		IndexedAt:   p.IndexedAt,
	}
}

// pageView wraps a page of results with the total count a paginated list
// needs to render "page N of M".
type pageView struct {
	Items []photoView `json:"items"`
	Total int64       `json:"total"`
}

func parseListOptions(r *http.Request) store.ListOptions {
	q := r.URL.Query()
	opts := store.ListOptions{
		Sort:  store.SortField(q.Get("sort")),
		Order: store.SortOrder(q.Get("order")),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = offset
	}
	return opts
}

// ListPhotos answers a plain paginated browse of the library, optionally
// narrowed by the same structured filters the Search Engine recognizes
// (type, is_favorite, year, month), each given as its own query parameter
// rather than packed into a single query string.
func (s *Server) ListPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var filters store.Filters
	if v := q.Get("type"); v != "" {
		mt := store.MediaType(v)
		filters.Type = &mt
	}
	if v := q.Get("is_favorite"); v != "" {
		b := v == "true"
		filters.IsFavorite = &b
	}
	if v := q.Get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			filters.Year = &y
		}
	}
	if v := q.Get("month"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			filters.Month = &m
		}
	}

	photos, total, err := s.store.Search(ctx, filters, parseListOptions(r))
	if err != nil {
		logging.Error("httpapi: ListPhotos failed: %v", err)
		writeJSONError(w, "failed to list photos", http.StatusInternalServerError)
		return
	}

	views := make([]photoView, len(photos))
	for i, p := range photos {
		views[i] = toPhotoView(p)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, pageView{Items: views, Total: total})
}

func (s *Server) photoByHash(w http.ResponseWriter, r *http.Request) *store.Photo {
	hash := mux.Vars(r)["hash"]
	photo, err := s.store.GetPhotoByHash(r.Context(), hash)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "photo not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		logging.Error("httpapi: looking up %s failed: %v", hash, err)
		writeJSONError(w, "failed to look up photo", http.StatusInternalServerError)
		return nil
	}
	return photo
}

// GetPhoto returns a single photo's metadata record by hash.
func (s *Server) GetPhoto(w http.ResponseWriter, r *http.Request) {
	photo := s.photoByHash(w, r)
	if photo == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, toPhotoView(photo))
}

// GetPhotoFile serves the media item's bytes: the original file as-is for
// images and browser-compatible video, a RAW file decoded to full-size JPEG
// on the fly, or, for video, JSON metadata instead of bytes when
// ?metadata=true is given.
func (s *Server) GetPhotoFile(w http.ResponseWriter, r *http.Request) {
	photo := s.photoByHash(w, r)
	if photo == nil {
		return
	}
	if !s.withinPhotoRoots(photo.Path) {
		logging.Error("httpapi: photo %s path %s is outside configured roots", photo.Hash, photo.Path)
		writeJSONError(w, "photo path is no longer valid", http.StatusInternalServerError)
		return
	}

	if photo.MediaType == store.MediaTypeVideo && r.URL.Query().Get("metadata") == "true" {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, photo.Metadata.Video)
		return
	}

	if photo.MediaType == store.MediaTypeRaw {
		img, err := rawdecode.Decode(photo.Path)
		if err != nil {
			logging.Error("httpapi: decoding RAW %s failed: %v", photo.Path, err)
			writeJSONError(w, "failed to decode RAW file", http.StatusInternalServerError)
			return
		}
		if photo.Metadata.Image != nil {
			img = applyOrientation(img, photo.Metadata.Image.Orientation)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
			writeJSONError(w, "failed to encode RAW preview", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(buf.Bytes())
		return
	}

	if photo.MediaType == store.MediaTypeVideo && s.cache != nil && s.video != nil {
		if info, err := s.video.Probe(r.Context(), photo.Path); err == nil && info.NeedsTranscode {
			cachePath, err := s.cache.GetOrCreateTranscode(r.Context(), photo.Hash, photo.Path, info.Width)
			if err != nil {
				logging.Error("httpapi: transcoding %s failed: %v", photo.Path, err)
				writeJSONError(w, "failed to transcode video", http.StatusInternalServerError)
				return
			}
			http.ServeFile(w, r, cachePath)
			return
		}
	}

	http.ServeFile(w, r, photo.Path)
}

// GetThumbnail returns a JPEG thumbnail for the photo that fits inside a
// size x size box with its aspect ratio preserved, content-addressed by hash so a stale thumbnail can never be served after a
// mutation changes identity.
func (s *Server) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	photo := s.photoByHash(w, r)
	if photo == nil {
		return
	}

	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = n
		}
	}

	data, err := s.cache.GetOrCreateThumbnail(r.Context(), photo.Hash, photo.Path, size,
		photo.MediaType == store.MediaTypeVideo, photo.MediaType == store.MediaTypeRaw)
	if err != nil {
		logging.Error("httpapi: thumbnail for %s failed: %v", photo.Hash, err)
		writeJSONError(w, "failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}

// ToggleFavorite sets or clears a photo's favourite flag. The new value is
// read from the JSON body {"favorite": bool}.
func (s *Server) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	var body struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.SetFavorite(r.Context(), hash, body.Favorite); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		logging.Error("httpapi: setting favorite for %s failed: %v", hash, err)
		writeJSONError(w, "failed to update favorite", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"favorite": body.Favorite})
}

// UpdateCapture rewrites a photo's capture time and/or GPS location via the
// Image Mutator, which splices the change into the file's EXIF segment and
// cascades the resulting hash change to the cache and vector index.
func (s *Server) UpdateCapture(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	var body struct {
		TakenAt   *time.Time `json:"takenAt"`
		Latitude  *float64   `json:"latitude"`
		Longitude *float64   `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if (body.Latitude == nil) != (body.Longitude == nil) {
		writeJSONError(w, "latitude and longitude must be given together", http.StatusBadRequest)
		return
	}

	var location *store.LocationInfo
	if body.Latitude != nil {
		location = &store.LocationInfo{Latitude: *body.Latitude, Longitude: *body.Longitude}
	}

	if err := s.mutator.UpdateCapture(r.Context(), hash, body.TakenAt, location); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		logging.Error("httpapi: updating capture info for %s failed: %v", hash, err)
		writeJSONError(w, "failed to update capture info", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "updated"})
}

// RotatePhoto applies a lossless rotation via the Image Mutator.
func (s *Server) RotatePhoto(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	var body struct {
		Angle int `json:"angle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.mutator.Rotate(r.Context(), hash, body.Angle); err != nil {
		logging.Error("httpapi: rotating %s failed: %v", hash, err)
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "rotated"})
}

// DeletePhoto removes the photo, its file, and its cached derivatives via
// the Image Mutator.
func (s *Server) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	if err := s.mutator.Delete(r.Context(), hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		logging.Error("httpapi: deleting %s failed: %v", hash, err)
		writeJSONError(w, "failed to delete photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "deleted"})
}

// isSubPath reports whether child lies under parent, the same containment
// check the teacher's handlers package applies before serving a path a
// caller supplied.
func isSubPath(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	return child == parent || strings.HasPrefix(child, parent+string(filepath.Separator))
}

// withinPhotoRoots guards against serving a path that no longer lives
// under any configured photo root, e.g. after a root was reconfigured out
// from under a still-indexed row.
func (s *Server) withinPhotoRoots(path string) bool {
	for _, root := range s.photoRoots {
		if isSubPath(root, path) {
			return true
		}
	}
	return false
}
