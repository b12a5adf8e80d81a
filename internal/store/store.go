// Package store is the single embedded database for the photo/video library:
// relational metadata, the content-addressed photo table, and the fused
// vector index used by semantic search all live in one SQLite file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	sqlite3 "github.com/mattn/go-sqlite3"

	"turbopix/internal/logging"
	"turbopix/internal/metrics"
)

const defaultTimeout = 5 * time.Second

const driverName = "sqlite3_with_vec"

var registerOnce sync.Once

// registerDriver registers the sqlite3 driver with the sqlite-vec extension
// auto-loaded on every new connection, mirroring the teacher's pattern of a
// custom driver registered through a ConnectHook.
func registerDriver() {
	registerOnce.Do(func() {
		sqlite_vec.Auto()
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				_, err := conn.Exec("PRAGMA busy_timeout = 5000", nil)
				return err
			},
		})
	})
}

func init() {
	registerDriver()
}

func getSlowQueryThreshold() float64 {
	if s := os.Getenv("SLOW_QUERY_THRESHOLD_MS"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v / 1000.0
		}
	}
	return 0.1
}

// Store manages all database access for the library: structured metadata,
// semantic vectors and derivative bookkeeping.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates (or reuses) the database file at dbPath, applies the
// WAL/pragma set from spec §4.1 and runs migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; SQLite + WAL serializes writers anyway
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logging.Info("store: opened %s (WAL, sqlite-vec loaded)", dbPath)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// observeQuery times a single logical operation and records it to metrics,
// logging a warning if it exceeds the configured slow-query threshold.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		duration := time.Since(start).Seconds()
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
		metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)

		if duration > getSlowQueryThreshold() {
			logging.Warn("store: slow query operation=%s duration=%.3fs status=%s error=%v",
				operation, duration, status, err)
		}
	}
}

// BeginBatch starts a transaction for a batch of upserts, matching the
// teacher's batched-indexing discipline (continue past per-item errors,
// commit once per batch rather than once per row).
func (s *Store) BeginBatch(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// EndBatch commits the transaction, or rolls it back if err is non-nil.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error("store: rollback failed: %v (original error: %v)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

const schema = `
CREATE TABLE IF NOT EXISTS photos (
	hash            TEXT PRIMARY KEY,
	path            TEXT NOT NULL UNIQUE,
	file_size       INTEGER NOT NULL,
	file_modified   INTEGER NOT NULL,
	media_type      TEXT NOT NULL,
	camera_make     TEXT,
	camera_model    TEXT,
	taken_at        INTEGER,
	is_favorite     INTEGER NOT NULL DEFAULT 0,
	metadata_json   TEXT NOT NULL DEFAULT '{}',
	indexed_at      INTEGER NOT NULL,
	semantic_at     INTEGER,
	derived_at      INTEGER
);

CREATE INDEX IF NOT EXISTS idx_photos_taken_at ON photos(taken_at);
CREATE INDEX IF NOT EXISTS idx_photos_camera ON photos(camera_make, camera_model);
CREATE INDEX IF NOT EXISTS idx_photos_favorite ON photos(is_favorite) WHERE is_favorite = 1;
CREATE INDEX IF NOT EXISTS idx_photos_iso ON photos(json_extract(metadata_json, '$.settings.iso'));
CREATE INDEX IF NOT EXISTS idx_photos_geo ON photos(
	json_extract(metadata_json, '$.location.latitude'),
	json_extract(metadata_json, '$.location.longitude')
);

CREATE TABLE IF NOT EXISTS semantic_vector_path_mapping (
	id   INTEGER PRIMARY KEY,
	path TEXT NOT NULL UNIQUE
);

CREATE VIRTUAL TABLE IF NOT EXISTS media_semantic_vectors USING vec0(
	embedding float[512] distance_metric=cosine
);

CREATE TABLE IF NOT EXISTS video_semantic_metadata (
	path               TEXT PRIMARY KEY,
	num_frames_sampled INTEGER NOT NULL,
	frame_times_json   TEXT NOT NULL,
	model_version      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS housekeeping_candidates (
	photo_hash TEXT NOT NULL,
	reason     TEXT NOT NULL,
	score      REAL NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (photo_hash, reason)
);

CREATE TABLE IF NOT EXISTS collages (
	id           INTEGER PRIMARY KEY,
	day          TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	photo_count  INTEGER NOT NULL,
	photo_hashes TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	accepted_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_collages_day ON collages(day);
CREATE INDEX IF NOT EXISTS idx_collages_pending ON collages(accepted_at) WHERE accepted_at IS NULL;
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Vacuum reclaims space after bulk deletes, mirroring the original
// vacuum_database maintenance step.
func (s *Store) Vacuum(ctx context.Context) error {
	done := observeQuery("vacuum")
	_, err := s.db.ExecContext(ctx, "VACUUM")
	done(err)
	return err
}
