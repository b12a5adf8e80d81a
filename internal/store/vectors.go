package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// defaultMinSimilarityScore is the cosine-similarity cutoff below which a
// KNN match is not considered relevant, matching the canonical constant from
// the reference semantic search implementation.
const defaultMinSimilarityScore = 0.615

// MinSimilarityScore is overridable via SEMANTIC_MIN_SCORE, following the
// teacher's general pattern of env-var-overridable tunables.
var MinSimilarityScore = loadMinSimilarityScore()

func loadMinSimilarityScore() float64 {
	if v := os.Getenv("SEMANTIC_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultMinSimilarityScore
}

// VectorMatch is one row of a KNN search result.
type VectorMatch struct {
	Path  string
	Hash  string
	Score float64
}

// UpsertVector implements the two-phase race-discipline protocol used by the
// semantic encoder: callers are expected to have already done the cheap
// existence check and the expensive encode outside of any transaction, then
// call this inside a short transaction to perform the final idempotent
// write (insert the path mapping if missing, then the vector row keyed by
// that mapping's rowid).
func (s *Store) UpsertVector(ctx context.Context, path string, embedding []float32) error {
	done := observeQuery("upsert_vector")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM semantic_vector_path_mapping WHERE path = ?", path).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, insErr := tx.ExecContext(ctx, "INSERT INTO semantic_vector_path_mapping (path) VALUES (?)", path)
		if insErr != nil {
			tx.Rollback()
			done(insErr)
			return insErr
		}
		id, _ = res.LastInsertId()
	case err != nil:
		tx.Rollback()
		done(err)
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		tx.Rollback()
		done(err)
		return fmt.Errorf("serializing embedding: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM media_semantic_vectors WHERE rowid = ?", id); err != nil {
		tx.Rollback()
		done(err)
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO media_semantic_vectors(rowid, embedding) VALUES (?, ?)",
		id, blob,
	); err != nil {
		tx.Rollback()
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}

// HasVector performs the fast non-transactional existence check the
// semantic encoder uses before doing the expensive inference work.
func (s *Store) HasVector(ctx context.Context, path string) (bool, error) {
	done := observeQuery("has_vector")
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM semantic_vector_path_mapping m
		JOIN media_semantic_vectors v ON v.rowid = m.id
		WHERE m.path = ?
	`, path).Scan(&n)
	done(err)
	return n > 0, err
}

// SearchByVector runs a KNN cosine-distance search against the vector
// index and returns matches at or above minScore, ordered by descending
// score. This is the Go equivalent of the reference vec_distance_cosine
// query, translated to the sqlite-vec MATCH syntax.
func (s *Store) SearchByVector(ctx context.Context, query []float32, limit int, minScore float64) ([]VectorMatch, error) {
	done := observeQuery("search_by_vector")

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.path, COALESCE(p.hash, ''), 1.0 - (v.distance / 2.0) AS score
		FROM (
			SELECT rowid, distance
			FROM media_semantic_vectors
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		) v
		JOIN semantic_vector_path_mapping m ON m.id = v.rowid
		LEFT JOIN photos p ON p.path = m.path
		WHERE 1.0 - (v.distance / 2.0) >= ?
		ORDER BY score DESC
	`, blob, limit, minScore)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.Path, &m.Hash, &m.Score); err != nil {
			done(err)
			return nil, err
		}
		out = append(out, m)
	}
	done(rows.Err())
	return out, rows.Err()
}

// UpsertVideoSemanticMetadata records which frame timestamps a video's
// pooled embedding was sampled from.
func (s *Store) UpsertVideoSemanticMetadata(ctx context.Context, path string, numFrames int, frameTimesJSON, modelVersion string) error {
	done := observeQuery("upsert_video_semantic_metadata")
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO video_semantic_metadata (path, num_frames_sampled, frame_times_json, model_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			num_frames_sampled = excluded.num_frames_sampled,
			frame_times_json   = excluded.frame_times_json,
			model_version      = excluded.model_version
	`, path, numFrames, frameTimesJSON, modelVersion)
	done(err)
	return err
}
