package store

import "context"

// Tariff setting keys. Writes are owned by the back-office tooling; this
// service only reads them.
const (
	SettingFeePerHour = "fee_per_hour"
	SettingMonthlyFee = "monthly_fee"
)

type SettingsStore interface {
	// Get returns the raw value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
}
