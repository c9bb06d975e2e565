package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type SeedDevOptions struct {
	// Password assigned to the seeded operator accounts.
	OperatorPassword string
}

// SeedDev inserts a starter admin account, a security account, and one
// monthly card so a dev instance is usable immediately. Existing rows are
// left alone.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	if opt.OperatorPassword == "" {
		opt.OperatorPassword = "123456"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opt.OperatorPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed operators: hash password: %w", err)
	}

	for _, op := range []struct {
		username, role, fullName string
	}{
		{"admin", "admin", "Administrator"},
		{"guard", "security", "Security Guard"},
	} {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO operators(username, password_hash, role, status, full_name)
VALUES (?, ?, ?, 'active', ?);`,
			op.username, string(hash), op.role, op.fullName,
		); err != nil {
			return fmt.Errorf("seed operator %s: %w", op.username, err)
		}
	}

	now := time.Now().UTC()
	expiry := now.AddDate(0, 1, 0)
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO cards(card_id, holder_name, license_plate, ticket_type, expiry_ms, status, created_at_ms)
VALUES ('DEV-0001', 'Dev Subscriber', '29A-000.01', 'monthly', ?, 'active', ?);`,
		expiry.UnixMilli(), now.UnixMilli(),
	); err != nil {
		return fmt.Errorf("seed card DEV-0001: %w", err)
	}

	return nil
}
