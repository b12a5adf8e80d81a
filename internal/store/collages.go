package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Collage is one staged or accepted 2x2 grid composite.
type Collage struct {
	ID          int64
	Day         string // YYYY-MM-DD, UTC
	FilePath    string
	PhotoCount  int
	PhotoHashes []string
	CreatedAt   time.Time
	AcceptedAt  *time.Time
}

// InsertCollage records a freshly staged collage, accepted_at left NULL
// until a user reviews it.
func (s *Store) InsertCollage(ctx context.Context, day, filePath string, photoHashes []string) (int64, error) {
	done := observeQuery("insert_collage")

	hashesJSON, err := json.Marshal(photoHashes)
	if err != nil {
		done(err)
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO collages (day, file_path, photo_count, photo_hashes, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, day, filePath, len(photoHashes), string(hashesJSON), time.Now().Unix())
	if err != nil {
		done(err)
		return 0, err
	}
	id, err := res.LastInsertId()
	done(err)
	return id, err
}

// ListPendingCollages returns every staged collage awaiting accept/reject,
// most recently created first.
func (s *Store) ListPendingCollages(ctx context.Context) ([]*Collage, error) {
	done := observeQuery("list_pending_collages")
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, day, file_path, photo_count, photo_hashes, created_at, accepted_at
		FROM collages WHERE accepted_at IS NULL ORDER BY created_at DESC
	`)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var out []*Collage
	for rows.Next() {
		c, err := scanCollage(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		out = append(out, c)
	}
	err = rows.Err()
	done(err)
	return out, err
}

func scanCollage(row rowScanner) (*Collage, error) {
	var (
		c          Collage
		hashesJSON string
		createdAt  int64
		acceptedAt sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Day, &c.FilePath, &c.PhotoCount, &hashesJSON, &createdAt, &acceptedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	if acceptedAt.Valid {
		t := time.Unix(acceptedAt.Int64, 0).UTC()
		c.AcceptedAt = &t
	}
	if err := json.Unmarshal([]byte(hashesJSON), &c.PhotoHashes); err != nil {
		return nil, err
	}
	return &c, nil
}

// AcceptCollage marks a staged collage accepted and updates its file_path to
// wherever the caller moved the staged JPEG (the accepted directory, which
// is expected to be one of the scheduler's watched roots so the collage
// flows back through Discover/Metadata like any other new file).
func (s *Store) AcceptCollage(ctx context.Context, id int64, acceptedPath string) error {
	done := observeQuery("accept_collage")
	res, err := s.db.ExecContext(ctx,
		"UPDATE collages SET accepted_at = ?, file_path = ? WHERE id = ?",
		time.Now().Unix(), acceptedPath, id)
	if err != nil {
		done(err)
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		err = ErrNotFound
	}
	done(err)
	return err
}

// RejectCollage deletes a staged collage's row and returns the staging path
// it used to live at, so the caller can remove the file from disk.
func (s *Store) RejectCollage(ctx context.Context, id int64) (string, error) {
	done := observeQuery("reject_collage")

	var path string
	if err := s.db.QueryRowContext(ctx, "SELECT file_path FROM collages WHERE id = ?", id).Scan(&path); err != nil {
		done(err)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM collages WHERE id = ?", id)
	done(err)
	return path, err
}
