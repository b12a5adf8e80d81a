package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"turbopix/internal/logging"
)

// ErrNotFound is returned when a lookup by hash or path matches no row.
var ErrNotFound = errors.New("store: not found")

func encodeEnvelope(e Envelope) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEnvelope(raw string) (Envelope, error) {
	var e Envelope
	if raw == "" {
		return e, nil
	}
	err := json.Unmarshal([]byte(raw), &e)
	return e, err
}

// UpsertPhoto inserts or updates a photo row keyed by content hash, within a
// caller-managed batch transaction. Re-running the same content hash is
// idempotent: the row's identity never changes, only its columns refresh.
//
// A file edited in place keeps its path but changes its hash, so the stale
// row sharing that path (if any) is deleted first: path is UNIQUE NOT NULL,
// and ON CONFLICT(hash) alone does not catch a path collision against a
// different hash.
func (s *Store) UpsertPhoto(ctx context.Context, tx *sql.Tx, p *Photo) error {
	done := observeQuery("upsert_photo")

	metaJSON, err := encodeEnvelope(p.Metadata)
	if err != nil {
		done(err)
		return fmt.Errorf("encoding metadata envelope: %w", err)
	}

	var takenAt sql.NullInt64
	if p.TakenAt != nil {
		takenAt = sql.NullInt64{Int64: p.TakenAt.Unix(), Valid: true}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM photos WHERE path = ? AND hash != ?`, p.Path, p.Hash); err != nil {
		done(err)
		return fmt.Errorf("clearing stale path row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO photos (hash, path, file_size, file_modified, media_type,
			camera_make, camera_model, taken_at, is_favorite, metadata_json, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			path          = excluded.path,
			file_size     = excluded.file_size,
			file_modified = excluded.file_modified,
			media_type    = excluded.media_type,
			camera_make   = excluded.camera_make,
			camera_model  = excluded.camera_model,
			taken_at      = excluded.taken_at,
			metadata_json = excluded.metadata_json,
			indexed_at    = excluded.indexed_at
	`,
		p.Hash, p.Path, p.FileSize, p.FileModified.Unix(), string(p.MediaType),
		p.CameraMake, p.CameraModel, takenAt, p.IsFavorite, metaJSON, time.Now().Unix(),
	)
	done(err)
	return err
}

// GetPhotoByHash fetches a single photo by its content hash.
func (s *Store) GetPhotoByHash(ctx context.Context, hash string) (*Photo, error) {
	done := observeQuery("get_photo_by_hash")
	row := s.db.QueryRowContext(ctx, photoSelectColumns+" WHERE hash = ?", hash)
	p, err := scanPhoto(row)
	done(err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetPhotoByPath fetches a single photo by its current filesystem path.
func (s *Store) GetPhotoByPath(ctx context.Context, path string) (*Photo, error) {
	done := observeQuery("get_photo_by_path")
	row := s.db.QueryRowContext(ctx, photoSelectColumns+" WHERE path = ?", path)
	p, err := scanPhoto(row)
	done(err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

const photoSelectColumns = `
SELECT hash, path, file_size, file_modified, media_type, camera_make, camera_model,
       taken_at, is_favorite, metadata_json, indexed_at, semantic_at, derived_at
FROM photos
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var (
		p            Photo
		fileModified int64
		mediaType    string
		cameraMake   sql.NullString
		cameraModel  sql.NullString
		takenAt      sql.NullInt64
		metaJSON     string
		indexedAt    int64
		semanticAt   sql.NullInt64
		derivedAt    sql.NullInt64
	)

	if err := row.Scan(&p.Hash, &p.Path, &p.FileSize, &fileModified, &mediaType,
		&cameraMake, &cameraModel, &takenAt, &p.IsFavorite, &metaJSON,
		&indexedAt, &semanticAt, &derivedAt); err != nil {
		return nil, err
	}

	p.FileModified = time.Unix(fileModified, 0).UTC()
	p.MediaType = MediaType(mediaType)
	p.CameraMake = cameraMake.String
	p.CameraModel = cameraModel.String
	p.IndexedAt = time.Unix(indexedAt, 0).UTC()

	if takenAt.Valid {
		t := time.Unix(takenAt.Int64, 0).UTC()
		p.TakenAt = &t
	}
	if semanticAt.Valid {
		t := time.Unix(semanticAt.Int64, 0).UTC()
		p.SemanticAt = &t
	}
	if derivedAt.Valid {
		t := time.Unix(derivedAt.Int64, 0).UTC()
		p.DerivedAt = &t
	}

	env, err := decodeEnvelope(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata envelope: %w", err)
	}
	p.Metadata = env

	return &p, nil
}

// MarkSemanticComplete stamps a photo's semantic_at timestamp after its
// vector has been computed and committed.
func (s *Store) MarkSemanticComplete(ctx context.Context, hash string, at time.Time) error {
	done := observeQuery("mark_semantic_complete")
	_, err := s.db.ExecContext(ctx, "UPDATE photos SET semantic_at = ? WHERE hash = ?", at.Unix(), hash)
	done(err)
	return err
}

// MarkDerivedComplete stamps a photo's derived_at timestamp after its
// thumbnail/transcode derivatives have been generated.
func (s *Store) MarkDerivedComplete(ctx context.Context, hash string, at time.Time) error {
	done := observeQuery("mark_derived_complete")
	_, err := s.db.ExecContext(ctx, "UPDATE photos SET derived_at = ? WHERE hash = ?", at.Unix(), hash)
	done(err)
	return err
}

// ListPendingSemantic returns every photo whose semantic vector has not yet
// been computed (semantic_at IS NULL), oldest indexed_at first so a resumed
// pipeline run makes steady forward progress instead of re-scanning the
// same head of the table.
func (s *Store) ListPendingSemantic(ctx context.Context) ([]*Photo, error) {
	done := observeQuery("list_pending_semantic")
	rows, err := s.db.QueryContext(ctx, photoSelectColumns+" WHERE semantic_at IS NULL ORDER BY indexed_at ASC")
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		photos = append(photos, p)
	}
	err = rows.Err()
	done(err)
	return photos, err
}

// PhotosTakenSince returns every photo whose capture time is at or after
// since, ordered by capture time, the candidate pool the Collage Builder
// clusters into dense-day buckets.
func (s *Store) PhotosTakenSince(ctx context.Context, since time.Time) ([]*Photo, error) {
	done := observeQuery("photos_taken_since")
	rows, err := s.db.QueryContext(ctx,
		photoSelectColumns+" WHERE taken_at IS NOT NULL AND taken_at >= ? ORDER BY taken_at ASC",
		since.Unix(),
	)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		photos = append(photos, p)
	}
	err = rows.Err()
	done(err)
	return photos, err
}

// SetFavorite toggles a photo's favourite flag.
func (s *Store) SetFavorite(ctx context.Context, hash string, favorite bool) error {
	done := observeQuery("set_favorite")
	res, err := s.db.ExecContext(ctx, "UPDATE photos SET is_favorite = ? WHERE hash = ?", favorite, hash)
	if err != nil {
		done(err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		done(err)
		return err
	}
	if n == 0 {
		done(ErrNotFound)
		return ErrNotFound
	}
	done(nil)
	return nil
}

// UpdateCapture implements the row-level half of a capture-info rewrite
// that went through the Metadata Writer: like RotatePhoto, the photo keyed
// by oldHash moves to newHash (the EXIF rewrite changed the file's bytes
// even though its path did not), taken_at and the envelope's Location are
// updated, and derived/semantic completion stamps plus any existing
// semantic vector for the path are cleared so the pipeline regenerates
// them against the new content hash.
func (s *Store) UpdateCapture(ctx context.Context, tx *sql.Tx, oldHash, newHash, path string, takenAt *time.Time, location *LocationInfo) error {
	done := observeQuery("update_capture")

	var existingJSON string
	if err := tx.QueryRowContext(ctx, "SELECT metadata_json FROM photos WHERE hash = ?", oldHash).Scan(&existingJSON); err != nil {
		done(err)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("loading existing envelope for %s: %w", oldHash, err)
	}
	env, err := decodeEnvelope(existingJSON)
	if err != nil {
		done(err)
		return fmt.Errorf("decoding existing envelope for %s: %w", oldHash, err)
	}
	if location != nil {
		env.Location = location
	}
	metaJSON, err := encodeEnvelope(env)
	if err != nil {
		done(err)
		return err
	}

	var takenAtVal sql.NullInt64
	if takenAt != nil {
		takenAtVal = sql.NullInt64{Int64: takenAt.Unix(), Valid: true}
	}

	if takenAt != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE photos
			SET hash = ?, taken_at = ?, metadata_json = ?, semantic_at = NULL, derived_at = NULL, indexed_at = ?
			WHERE hash = ?
		`, newHash, takenAtVal, metaJSON, time.Now().Unix(), oldHash)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE photos
			SET hash = ?, metadata_json = ?, semantic_at = NULL, derived_at = NULL, indexed_at = ?
			WHERE hash = ?
		`, newHash, metaJSON, time.Now().Unix(), oldHash)
	}
	if err != nil {
		done(err)
		return err
	}

	err = deleteVectorForPath(ctx, tx, path)
	done(err)
	return err
}

// RotatePhoto implements the row-level half of a rotation: the photo keyed
// by oldHash is renamed to newHash (its content hash changed since the
// rotated bytes were written back to the same path), its image dimensions
// are swapped/updated and orientation reset to identity, and its
// derived/semantic completion stamps are cleared so the next pipeline pass
// regenerates a thumbnail and re-embeds it. Any existing semantic vector for
// the (unchanged) path is also dropped, since it now describes stale pixels.
func (s *Store) RotatePhoto(ctx context.Context, tx *sql.Tx, oldHash, newHash, path string, width, height int) error {
	done := observeQuery("rotate_photo")

	var existingJSON string
	if err := tx.QueryRowContext(ctx, "SELECT metadata_json FROM photos WHERE hash = ?", oldHash).Scan(&existingJSON); err != nil {
		done(err)
		return fmt.Errorf("loading existing envelope for %s: %w", oldHash, err)
	}
	env, err := decodeEnvelope(existingJSON)
	if err != nil {
		done(err)
		return fmt.Errorf("decoding existing envelope for %s: %w", oldHash, err)
	}
	env.Image = &ImageInfo{Width: width, Height: height, Orientation: 1}
	metaJSON, err := encodeEnvelope(env)
	if err != nil {
		done(err)
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE photos
		SET hash = ?, metadata_json = ?, semantic_at = NULL, derived_at = NULL, indexed_at = ?
		WHERE hash = ?
	`, newHash, metaJSON, time.Now().Unix(), oldHash)
	if err != nil {
		done(err)
		return err
	}

	err = deleteVectorForPath(ctx, tx, path)
	done(err)
	return err
}

// DeletePhoto removes hash's row and every dependent vector/video/
// housekeeping row, returning the path it used to live at so the caller can
// remove the file and its cached derivatives.
func (s *Store) DeletePhoto(ctx context.Context, hash string) (string, error) {
	done := observeQuery("delete_photo")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return "", err
	}

	var path string
	if err := tx.QueryRowContext(ctx, "SELECT path FROM photos WHERE hash = ?", hash).Scan(&path); err != nil {
		tx.Rollback()
		done(err)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE hash = ?", hash); err != nil {
		tx.Rollback()
		done(err)
		return "", err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM housekeeping_candidates WHERE photo_hash = ?", hash); err != nil {
		tx.Rollback()
		done(err)
		return "", err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM video_semantic_metadata WHERE path = ?", path); err != nil {
		tx.Rollback()
		done(err)
		return "", err
	}
	if err := deleteVectorForPath(ctx, tx, path); err != nil {
		tx.Rollback()
		done(err)
		return "", err
	}

	err = tx.Commit()
	done(err)
	return path, err
}

// deleteVectorForPath removes path's semantic_vector_path_mapping row and
// any media_semantic_vectors row left pointing at a rowid no longer
// referenced by it, the same orphan-sweep condition DeleteOrphans uses.
func deleteVectorForPath(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM semantic_vector_path_mapping WHERE path = ?", path); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM media_semantic_vectors
		WHERE rowid NOT IN (SELECT id FROM semantic_vector_path_mapping)
	`)
	return err
}

// AllPaths returns the set of every currently-indexed path, used by the
// discovery phase to diff against what the filesystem walk actually saw.
func (s *Store) AllPaths(ctx context.Context) (map[string]struct{}, error) {
	done := observeQuery("all_paths")
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM photos")
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			done(err)
			return nil, err
		}
		paths[p] = struct{}{}
	}
	done(rows.Err())
	return paths, rows.Err()
}

// DeleteOrphans removes every photo row (and its dependent vector/video/
// housekeeping rows) whose path is absent from existingPaths; collages
// rows listing the removed hashes are left as they are. Mirrors delete_orphaned_photos: an empty existingPaths set
// is treated as "nothing observed this walk" and short-circuits to a no-op,
// since wiping the whole library on a failed or empty scan would be a much
// worse outcome than leaving stale rows for the next run.
func (s *Store) DeleteOrphans(ctx context.Context, existingPaths map[string]struct{}) (int64, error) {
	if len(existingPaths) == 0 {
		logging.Warn("store: DeleteOrphans called with an empty existing-paths set, skipping")
		return 0, nil
	}

	done := observeQuery("delete_orphans")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return 0, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT hash, path FROM photos")
	if err != nil {
		tx.Rollback()
		done(err)
		return 0, err
	}
	var orphanHashes, orphanPaths []string
	for rows.Next() {
		var hash, path string
		if err := rows.Scan(&hash, &path); err != nil {
			rows.Close()
			tx.Rollback()
			done(err)
			return 0, err
		}
		if _, ok := existingPaths[path]; !ok {
			orphanHashes = append(orphanHashes, hash)
			orphanPaths = append(orphanPaths, path)
		}
	}
	rows.Close()

	var removed int64
	for i, hash := range orphanHashes {
		path := orphanPaths[i]

		if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE hash = ?", hash); err != nil {
			tx.Rollback()
			done(err)
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM semantic_vector_path_mapping WHERE path = ?", path); err != nil {
			tx.Rollback()
			done(err)
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM video_semantic_metadata WHERE path = ?", path); err != nil {
			tx.Rollback()
			done(err)
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM housekeeping_candidates WHERE photo_hash = ?", hash); err != nil {
			tx.Rollback()
			done(err)
			return 0, err
		}
		removed++
	}

	// media_semantic_vectors is rowid-keyed through the mapping table;
	// any rowid no longer referenced by semantic_vector_path_mapping is orphaned.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM media_semantic_vectors
		WHERE rowid NOT IN (SELECT id FROM semantic_vector_path_mapping)
	`); err != nil {
		tx.Rollback()
		done(err)
		return 0, err
	}

	err = tx.Commit()
	done(err)
	if err != nil {
		return 0, err
	}

	logging.Info("store: removed %d orphaned photos", removed)
	return removed, nil
}
