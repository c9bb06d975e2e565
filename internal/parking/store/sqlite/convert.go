package sqlite

import (
	"database/sql"
	"time"
)

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMsToTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := msToTime(v.Int64)
	return &t
}

func timeToNullMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
