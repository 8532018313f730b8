package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mr1hm/go-quake-search/internal/models"
)

const eventColumns = `id, catalog_id, provider, latitude, longitude, depth_km, magnitude, magnitude_type,
	origin_time, start_time, end_time, description, icon`

// SaveEvents upserts events and pushes their expiry forward.
func (s *SQLiteDB) SaveEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (`+eventColumns+`, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			catalog_id = excluded.catalog_id,
			provider = excluded.provider,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			depth_km = excluded.depth_km,
			magnitude = excluded.magnitude,
			magnitude_type = excluded.magnitude_type,
			origin_time = excluded.origin_time,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			description = excluded.description,
			icon = excluded.icon,
			expires_at = excluded.expires_at`)
	if err != nil {
		return fmt.Errorf("error preparing event insert: %w", err)
	}
	defer stmt.Close()

	now, expires := toMillis(s.now()), s.expiry()
	for i := range events {
		e := &events[i]
		var mag sql.NullFloat64
		if e.Magnitude != nil {
			mag = sql.NullFloat64{Float64: *e.Magnitude, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			e.ID, e.CatalogID, e.Provider, e.Latitude, e.Longitude, e.DepthKm, mag, e.MagnitudeType,
			toMillis(e.OriginTime), toMillis(e.StartTime), toMillis(e.EndTime), e.Description, e.Icon,
			now, expires,
		)
		if err != nil {
			return fmt.Errorf("error inserting event %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND expires_at > ?`,
		id, toMillis(s.now()),
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting event %s: %w", id, err)
	}
	return e, nil
}

// ListEvents returns unexpired events, newest origin first.
func (s *SQLiteDB) ListEvents(ctx context.Context, opts Filter) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE expires_at > ?`
	args := []any{toMillis(s.now())}

	if opts.Since != nil {
		query += ` AND origin_time >= ?`
		args = append(args, toMillis(*opts.Since))
	}
	if opts.MinMagnitude != nil {
		query += ` AND magnitude >= ?`
		args = append(args, *opts.MinMagnitude)
	}
	if opts.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, opts.Provider)
	}
	query += ` ORDER BY origin_time DESC`

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var (
		e                  models.Event
		mag                sql.NullFloat64
		magType, desc, ico sql.NullString
		origin, start, end int64
	)
	err := row.Scan(&e.ID, &e.CatalogID, &e.Provider, &e.Latitude, &e.Longitude, &e.DepthKm, &mag, &magType,
		&origin, &start, &end, &desc, &ico)
	if err != nil {
		return nil, err
	}
	if mag.Valid {
		m := mag.Float64
		e.Magnitude = &m
	}
	e.MagnitudeType = magType.String
	e.Description = desc.String
	e.Icon = ico.String
	e.OriginTime = fromMillis(origin)
	e.StartTime = fromMillis(start)
	e.EndTime = fromMillis(end)
	return &e, nil
}
