package store

import (
	"context"
	"time"
)

// HousekeepingCandidate is one (photo, reason) row the Housekeeping Scorer
// flagged for user review.
type HousekeepingCandidate struct {
	PhotoHash string
	Reason    string
	Score     float64
	CreatedAt time.Time
}

// HousekeepingCandidateView joins a candidate with the path its hash
// currently resolves to, for presenting a review list.
type HousekeepingCandidateView struct {
	HousekeepingCandidate
	Path string
}

// ReplaceHousekeepingCandidates atomically swaps the entire review-candidate
// table for a fresh run's results, matching spec 4.11's "within one
// transaction, delete all prior candidates and insert fresh ones" contract:
// a review list always reflects exactly one run, never a stale mix of two.
func (s *Store) ReplaceHousekeepingCandidates(ctx context.Context, candidates []HousekeepingCandidate) error {
	done := observeQuery("replace_housekeeping_candidates")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM housekeeping_candidates"); err != nil {
		tx.Rollback()
		done(err)
		return err
	}

	for _, c := range candidates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO housekeeping_candidates (photo_hash, reason, score, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(photo_hash, reason) DO UPDATE SET score = excluded.score, created_at = excluded.created_at
		`, c.PhotoHash, c.Reason, c.Score, c.CreatedAt.Unix()); err != nil {
			tx.Rollback()
			done(err)
			return err
		}
	}

	err = tx.Commit()
	done(err)
	return err
}

// ListHousekeepingCandidates returns every pending review candidate joined
// with its photo's current path, highest score first.
func (s *Store) ListHousekeepingCandidates(ctx context.Context) ([]*HousekeepingCandidateView, error) {
	done := observeQuery("list_housekeeping_candidates")
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.photo_hash, h.reason, h.score, h.created_at, p.path
		FROM housekeeping_candidates h
		JOIN photos p ON p.hash = h.photo_hash
		ORDER BY h.score DESC
	`)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var out []*HousekeepingCandidateView
	for rows.Next() {
		var (
			v         HousekeepingCandidateView
			createdAt int64
		)
		if err := rows.Scan(&v.PhotoHash, &v.Reason, &v.Score, &createdAt, &v.Path); err != nil {
			done(err)
			return nil, err
		}
		v.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &v)
	}
	err = rows.Err()
	done(err)
	return out, err
}

// RemoveHousekeepingCandidate deletes a single reviewed (photo, reason) row,
// e.g. after a user dismisses it without acting on it.
func (s *Store) RemoveHousekeepingCandidate(ctx context.Context, photoHash, reason string) error {
	done := observeQuery("remove_housekeeping_candidate")
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM housekeeping_candidates WHERE photo_hash = ? AND reason = ?", photoHash, reason)
	done(err)
	return err
}
