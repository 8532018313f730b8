package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mr1hm/go-quake-search/internal/models"
)

// SaveWaveforms replaces the cached segments for a channel window.
func (s *SQLiteDB) SaveWaveforms(ctx context.Context, key WaveformKey, segments []models.Waveform) error {
	seed := key.SeedID.String()
	wStart, wEnd := toMillis(key.Start), toMillis(key.End)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM waveforms WHERE seed_id = ? AND window_start = ? AND window_end = ?`,
		seed, wStart, wEnd,
	)
	if err != nil {
		return fmt.Errorf("error clearing waveforms for %s: %w", seed, err)
	}

	expires := s.expiry()
	for i, w := range segments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO waveforms (seed_id, window_start, window_end, segment, start_time, sample_rate, samples, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			seed, wStart, wEnd, i, toMillis(w.StartTime), w.SampleRate, encodeSamples(w.Samples), expires,
		)
		if err != nil {
			return fmt.Errorf("error inserting waveform %s segment %d: %w", seed, i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) GetWaveforms(ctx context.Context, key WaveformKey) ([]models.Waveform, error) {
	seed := key.SeedID.String()
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, sample_rate, samples FROM waveforms
		WHERE seed_id = ? AND window_start = ? AND window_end = ? AND expires_at > ?
		ORDER BY segment`,
		seed, toMillis(key.Start), toMillis(key.End), toMillis(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("error getting waveforms for %s: %w", seed, err)
	}
	defer rows.Close()

	var segments []models.Waveform
	for rows.Next() {
		var (
			start int64
			rate  float64
			blob  []byte
		)
		if err := rows.Scan(&start, &rate, &blob); err != nil {
			return nil, fmt.Errorf("error scanning waveform: %w", err)
		}
		samples, err := decodeSamples(blob)
		if err != nil {
			return nil, fmt.Errorf("waveform %s: %w", seed, err)
		}
		segments = append(segments, models.Waveform{
			SeedID:     key.SeedID,
			StartTime:  fromMillis(start),
			SampleRate: rate,
			Samples:    samples,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error getting waveforms for %s: %w", seed, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("waveform %s: %w", seed, ErrNotFound)
	}
	return segments, nil
}

// samples are stored as little-endian float64s
func encodeSamples(samples []float64) []byte {
	buf := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeSamples(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("corrupt sample blob of %d bytes", len(buf))
	}
	samples := make([]float64, len(buf)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return samples, nil
}
