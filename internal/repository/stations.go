package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mr1hm/go-quake-search/internal/models"
)

// SaveStations replaces one ranked station list of an event and marks it as
// the event's latest ranking.
func (s *SQLiteDB) SaveStations(ctx context.Context, eventID, ranking string, stations []models.Station) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stations WHERE event_id = ? AND ranking = ?`, eventID, ranking); err != nil {
		return fmt.Errorf("error clearing stations for %s: %w", eventID, err)
	}

	expires := s.expiry()
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO rankings (event_id, ranking, saved_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		eventID, ranking, toMillis(s.now()), expires,
	)
	if err != nil {
		return fmt.Errorf("error saving ranking for %s: %w", eventID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (event_id, ranking, seed_id, rank, network, station, location, channel,
			latitude, longitude, elevation_m, depth_m, sensor, sample_rate, start_time, end_time,
			distance_km, icon, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing station insert: %w", err)
	}
	defer stmt.Close()

	for rank, st := range stations {
		start := &st.StartTime
		if st.StartTime.IsZero() {
			start = nil
		}
		_, err := stmt.ExecContext(ctx,
			eventID, ranking, st.SeedID, rank, st.Network, st.Station, st.Location, st.Channel,
			st.Latitude, st.Longitude, st.ElevationM, st.DepthM, st.Sensor, st.SampleRate,
			nullableMillis(start), nullableMillis(st.EndTime), st.DistanceKm, st.Icon, expires,
		)
		if err != nil {
			return fmt.Errorf("error inserting station %s for %s: %w", st.SeedID, eventID, err)
		}
	}

	return tx.Commit()
}

// GetStations returns one ranked station list of an event, nearest first.
// An empty ranking selects the most recently saved one. An event that was
// ranked without finding any station yields an empty slice, an event that
// is not cached or a ranking that was never saved yields ErrNotFound.
func (s *SQLiteDB) GetStations(ctx context.Context, eventID, ranking string) ([]models.Station, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	ranking, err := s.resolveRanking(ctx, eventID, ranking)
	if errors.Is(err, ErrNotFound) && ranking == "" {
		return []models.Station{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seed_id, network, station, location, channel, latitude, longitude, elevation_m, depth_m,
			sensor, sample_rate, start_time, end_time, distance_km, icon
		FROM stations
		WHERE event_id = ? AND ranking = ? AND expires_at > ?
		ORDER BY rank`,
		eventID, ranking, toMillis(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("error getting stations for %s: %w", eventID, err)
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		var (
			st           models.Station
			elev, depth  sql.NullFloat64
			rate         sql.NullFloat64
			sensor, icon sql.NullString
			start, end   sql.NullInt64
		)
		err := rows.Scan(&st.SeedID, &st.Network, &st.Station, &st.Location, &st.Channel,
			&st.Latitude, &st.Longitude, &elev, &depth, &sensor, &rate, &start, &end, &st.DistanceKm, &icon)
		if err != nil {
			return nil, fmt.Errorf("error scanning station: %w", err)
		}
		st.ElevationM = elev.Float64
		st.DepthM = depth.Float64
		st.SampleRate = rate.Float64
		st.Sensor = sensor.String
		st.Icon = icon.String
		if t := timeFromNullable(start); t != nil {
			st.StartTime = *t
		}
		st.EndTime = timeFromNullable(end)
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error getting stations for %s: %w", eventID, err)
	}
	return stations, nil
}

// resolveRanking checks that a ranking is cached for the event, picking the
// latest when none is given.
func (s *SQLiteDB) resolveRanking(ctx context.Context, eventID, ranking string) (string, error) {
	now := toMillis(s.now())

	var row *sql.Row
	if ranking == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT ranking FROM rankings
			WHERE event_id = ? AND expires_at > ?
			ORDER BY saved_at DESC, rowid DESC
			LIMIT 1`,
			eventID, now,
		)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT ranking FROM rankings
			WHERE event_id = ? AND ranking = ? AND expires_at > ?`,
			eventID, ranking, now,
		)
	}

	var found string
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ranking, ErrNotFound
		}
		return ranking, fmt.Errorf("error getting ranking for %s: %w", eventID, err)
	}
	return found, nil
}
