package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// SettingsStore reads tariff configuration. Writes belong to the
// back-office tooling, so no writer is wired here.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?;`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings Get %s: %w", key, err)
	}
	return value, true, nil
}
