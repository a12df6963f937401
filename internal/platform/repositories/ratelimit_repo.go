package repositories

import (
	"database/sql"
	"errors"
	"time"
)

// RateLimitRepository implements a fixed-window counter keyed by caller
// identity. Like the quota counter it lives in the database so multiple
// server instances share one window, and the check-and-increment is a
// single conditional upsert.
type RateLimitRepository struct {
	db *sql.DB
}

func NewRateLimitRepository(db *sql.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Allow performs the atomic check-and-increment for one key.
//
// Fresh key or expired window: the counter restarts at 1 with
// resetAt = now + window and the request is allowed. Inside a live
// window the counter increments while count < limit; at the limit the
// upsert's WHERE clause matches nothing, no increment happens, and the
// request is denied. retryAfter reports how long until the window
// resets, for the Retry-After header on denials.
func (r *RateLimitRepository) Allow(key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error) {
	now := time.Now().Unix()
	resetAt := now + int64(window.Seconds())

	query := `
		INSERT INTO rate_limits (key, count, reset_at)
		VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count    = CASE WHEN rate_limits.reset_at <= ? THEN 1 ELSE rate_limits.count + 1 END,
			reset_at = CASE WHEN rate_limits.reset_at <= ? THEN excluded.reset_at ELSE rate_limits.reset_at END
		WHERE rate_limits.reset_at <= ? OR rate_limits.count < ?
		RETURNING count, reset_at
	`
	var count int
	var storedReset int64
	err = r.db.QueryRow(query, key, resetAt, now, now, now, limit).Scan(&count, &storedReset)
	if errors.Is(err, sql.ErrNoRows) {
		// Denied: no increment happened. Read the window end for Retry-After.
		var deniedReset int64
		if lookupErr := r.db.QueryRow(`SELECT reset_at FROM rate_limits WHERE key = ?`, key).Scan(&deniedReset); lookupErr == nil && deniedReset > now {
			return false, time.Duration(deniedReset-now) * time.Second, nil
		}
		return false, window, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
