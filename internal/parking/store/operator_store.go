package store

import (
	"context"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

// OperatorRecord is one dashboard account (security guard or admin).
type OperatorRecord struct {
	Username     string
	PasswordHash string
	Role         types.Role
	Status       types.OperatorStatus
	FullName     string
}

type OperatorStore interface {
	// GetByUsername returns the account or nil when unknown.
	GetByUsername(ctx context.Context, username string) (*OperatorRecord, error)
}
