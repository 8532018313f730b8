package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

const DefaultTTL = time.Hour

const schemaVersion = 2

type SQLiteDB struct {
	db    *sql.DB
	ttl   time.Duration
	clock clockwork.Clock
}

type Option func(*SQLiteDB)

// WithTTL sets how long saved rows stay readable.
func WithTTL(ttl time.Duration) Option {
	return func(s *SQLiteDB) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *SQLiteDB) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewSQLiteDB(path string, opts ...Option) (*SQLiteDB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("error executing %s: %w", pragma, err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db:    db,
		ttl:   DefaultTTL,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

// Times are stored as unix milliseconds.
func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			catalog_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			depth_km REAL NOT NULL,
			magnitude REAL,
			magnitude_type TEXT,
			origin_time INTEGER NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			description TEXT,
			icon TEXT,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS rankings (
			event_id TEXT NOT NULL,
			ranking TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (event_id, ranking)
		);

		CREATE TABLE IF NOT EXISTS stations (
			event_id TEXT NOT NULL,
			ranking TEXT NOT NULL,
			seed_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			network TEXT NOT NULL,
			station TEXT NOT NULL,
			location TEXT NOT NULL,
			channel TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			elevation_m REAL,
			depth_m REAL,
			sensor TEXT,
			sample_rate REAL,
			start_time INTEGER,
			end_time INTEGER,
			distance_km REAL NOT NULL,
			icon TEXT,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (event_id, ranking, seed_id)
		);

		CREATE TABLE IF NOT EXISTS waveforms (
			seed_id TEXT NOT NULL,
			window_start INTEGER NOT NULL,
			window_end INTEGER NOT NULL,
			segment INTEGER NOT NULL,
			start_time INTEGER NOT NULL,
			sample_rate REAL NOT NULL,
			samples BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (seed_id, window_start, window_end, segment)
		);

		CREATE TABLE IF NOT EXISTS searches (
			key TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_origin_time ON events(origin_time);
		CREATE INDEX IF NOT EXISTS idx_events_expires_at ON events(expires_at);
		CREATE INDEX IF NOT EXISTS idx_rankings_expires_at ON rankings(expires_at);
		CREATE INDEX IF NOT EXISTS idx_stations_expires_at ON stations(expires_at);
		CREATE INDEX IF NOT EXISTS idx_waveforms_expires_at ON waveforms(expires_at);
		CREATE INDEX IF NOT EXISTS idx_searches_expires_at ON searches(expires_at);
	`

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version < schemaVersion {
		// Only cached rows live here, so older layouts are dropped
		for _, table := range []string{"stations", "rankings"} {
			if _, err := s.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return err
			}
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *SQLiteDB) expiry() int64 {
	return toMillis(s.now().Add(s.ttl))
}

// PurgeExpired deletes every expired row and returns how many went.
func (s *SQLiteDB) PurgeExpired(ctx context.Context) (int64, error) {
	now := toMillis(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning purge: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"events", "rankings", "stations", "waveforms", "searches"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE expires_at <= ?", now)
		if err != nil {
			return 0, fmt.Errorf("error purging %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("error purging %s: %w", table, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing purge: %w", err)
	}
	return total, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timeFromNullable(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
