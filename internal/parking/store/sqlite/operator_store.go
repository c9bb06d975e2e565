package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
)

type OperatorStore struct {
	db *sql.DB
}

func NewOperatorStore(db *sql.DB) *OperatorStore {
	return &OperatorStore{db: db}
}

func (s *OperatorStore) GetByUsername(ctx context.Context, username string) (*store.OperatorRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}

	var rec store.OperatorRecord
	err := s.db.QueryRowContext(ctx, `
SELECT username, password_hash, role, status, full_name
FROM operators
WHERE username = ?;`, username).Scan(
		&rec.Username, &rec.PasswordHash, &rec.Role, &rec.Status, &rec.FullName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("operator GetByUsername: %w", err)
	}
	return &rec, nil
}
