package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

func (s *SQLiteDB) GetSearch(ctx context.Context, key string) (*models.SearchResult, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM searches WHERE key = ? AND expires_at > ?`,
		key, toMillis(s.now()),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("search %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting search %s: %w", key, err)
	}

	var result models.SearchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("error decoding search %s: %w", key, err)
	}
	return &result, nil
}

// PutSearch stores a result under key. A non-positive ttl uses the store's
// default.
func (s *SQLiteDB) PutSearch(ctx context.Context, key string, result *models.SearchResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error encoding search %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO searches (key, result, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET result = excluded.result, expires_at = excluded.expires_at`,
		key, string(raw), toMillis(s.now().Add(ttl)),
	)
	if err != nil {
		return fmt.Errorf("error saving search %s: %w", key, err)
	}
	return nil
}
