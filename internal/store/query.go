package store

import (
	"context"
	"fmt"
	"time"
)

// SortField enumerates the columns List/Search may order by.
type SortField string

const (
	SortByFilename  SortField = "filename"
	SortByFileSize  SortField = "file_size"
	SortByCreatedAt SortField = "created_at"
	SortByTakenAt   SortField = "taken_at"
)

// SortOrder is the direction of a List/Search ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// sortColumns maps the public sort vocabulary to real columns, following the
// teacher's allowlist pattern (queries.go's getSortColumn/allowedColumns)
// rather than interpolating caller input directly into ORDER BY. There is no
// dedicated filename column; path sorts case-insensitively in its place,
// which agrees with filename ordering for the common one-photo-per-directory
// layout this library targets.
var sortColumns = map[SortField]string{
	SortByFilename:  "path COLLATE NOCASE",
	SortByFileSize:  "file_size",
	SortByCreatedAt: "indexed_at",
	SortByTakenAt:   "taken_at",
}

// ListOptions controls pagination and ordering for List and Search.
type ListOptions struct {
	Sort   SortField
	Order  SortOrder
	Limit  int
	Offset int
}

func normalizeListOptions(opts ListOptions) ListOptions {
	if _, ok := sortColumns[opts.Sort]; !ok {
		opts.Sort = SortByTakenAt
	}
	if opts.Order != SortAsc && opts.Order != SortDesc {
		opts.Order = SortDesc
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

func orderClause(opts ListOptions) string {
	dir := "DESC"
	if opts.Order == SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", sortColumns[opts.Sort], dir)
}

// Filters narrows a structured Search beyond plain pagination/ordering.
// A zero Filters matches every photo, equivalent to List.
type Filters struct {
	Text       string     // matched against path and camera make/model
	Year       *int       // taken_at calendar year, local to the stored UTC timestamp
	Month      *int       // taken_at calendar month (1-12), requires Year
	Type       *MediaType // "image", "raw", or "video" ("type:video" predicate)
	IsFavorite *bool      // "is_favorite:true" predicate
}

func (f Filters) whereClause() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Text != "" {
		like := "%" + f.Text + "%"
		clauses = append(clauses, "(path LIKE ? OR camera_make LIKE ? OR camera_model LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Year != nil {
		clauses = append(clauses, "CAST(strftime('%Y', taken_at, 'unixepoch') AS INTEGER) = ?")
		args = append(args, *f.Year)
	}
	if f.Month != nil {
		clauses = append(clauses, "CAST(strftime('%m', taken_at, 'unixepoch') AS INTEGER) = ?")
		args = append(args, *f.Month)
	}
	if f.Type != nil {
		clauses = append(clauses, "media_type = ?")
		args = append(args, string(*f.Type))
	}
	if f.IsFavorite != nil {
		clauses = append(clauses, "is_favorite = ?")
		args = append(args, *f.IsFavorite)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

// List returns a page of photos in the requested order alongside the total
// row count, the primary fast path for a plain (unfiltered) browse.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Photo, int64, error) {
	return s.Search(ctx, Filters{}, opts)
}

// Search returns a page of photos matching filters, in the requested order,
// alongside the total match count. An empty Filters behaves exactly like
// List: this is the Store half of the Search Engine's structured-filter
// dispatch path (spec 4.10), the counterpart to SearchByVector for the
// semantic path.
func (s *Store) Search(ctx context.Context, filters Filters, opts ListOptions) ([]*Photo, int64, error) {
	done := observeQuery("search")
	opts = normalizeListOptions(opts)
	where, args := filters.whereClause()

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos"+where, args...).Scan(&total); err != nil {
		done(err)
		return nil, 0, err
	}

	query := photoSelectColumns + where + orderClause(opts) + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(append([]interface{}{}, args...), opts.Limit, opts.Offset)...)
	if err != nil {
		done(err)
		return nil, 0, err
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			done(err)
			return nil, 0, err
		}
		photos = append(photos, p)
	}
	err = rows.Err()
	done(err)
	return photos, total, err
}

// TimelineBucket is one calendar month's photo count.
type TimelineBucket struct {
	Year  int
	Month int
	Count int
}

// TimelineDensity summarizes the library's capture-date distribution: one
// count per (year, month) bucket plus the overall min/max capture time,
// matching the reference timeline_density() operation used to render a
// scrubbable date histogram in the UI.
func (s *Store) TimelineDensity(ctx context.Context) ([]TimelineBucket, *time.Time, *time.Time, error) {
	done := observeQuery("timeline_density")

	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(strftime('%Y', taken_at, 'unixepoch') AS INTEGER) AS y,
		       CAST(strftime('%m', taken_at, 'unixepoch') AS INTEGER) AS m,
		       COUNT(*)
		FROM photos
		WHERE taken_at IS NOT NULL
		GROUP BY y, m
		ORDER BY y, m
	`)
	if err != nil {
		done(err)
		return nil, nil, nil, err
	}
	var buckets []TimelineBucket
	for rows.Next() {
		var b TimelineBucket
		if err := rows.Scan(&b.Year, &b.Month, &b.Count); err != nil {
			rows.Close()
			done(err)
			return nil, nil, nil, err
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		done(err)
		return nil, nil, nil, err
	}
	rows.Close()

	var minUnix, maxUnix *int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(taken_at), MAX(taken_at) FROM photos WHERE taken_at IS NOT NULL",
	).Scan(&minUnix, &maxUnix); err != nil {
		done(err)
		return nil, nil, nil, err
	}

	var minT, maxT *time.Time
	if minUnix != nil {
		t := time.Unix(*minUnix, 0).UTC()
		minT = &t
	}
	if maxUnix != nil {
		t := time.Unix(*maxUnix, 0).UTC()
		maxT = &t
	}

	done(nil)
	return buckets, minT, maxT, nil
}
