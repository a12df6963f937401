package repositories

import (
	"database/sql"
	"errors"
	"time"
)

// ErrQuotaExceeded is returned by Increment when the conditional upsert
// finds the period counter already at its ceiling.
var ErrQuotaExceeded = errors.New("monthly quota exceeded")

// QuotaRepository tracks per-user monthly event counts. The counter is
// shared mutable state across requests, so both operations go straight to
// the database; Increment is a single conditional upsert rather than a
// read-then-write from application code.
type QuotaRepository struct {
	db *sql.DB
}

func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Current returns the event count for the given period, 0 when no row
// exists yet.
func (r *QuotaRepository) Current(userID string, month, year int) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT count FROM quotas WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Increment bumps the period counter by one, creating the row on first
// use. The increment only applies while count < ceiling; at the ceiling
// the statement matches no row and ErrQuotaExceeded is returned. The
// whole check-and-increment is one statement, so concurrent ingestions
// cannot over-admit past the ceiling.
func (r *QuotaRepository) Increment(userID string, month, year, ceiling int) error {
	query := `
		INSERT INTO quotas (user_id, month, year, count, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, month, year) DO UPDATE SET
			count = quotas.count + 1,
			updated_at = excluded.updated_at
		WHERE quotas.count < ?
		RETURNING count
	`
	var count int
	err := r.db.QueryRow(query, userID, month, year, time.Now().Unix(), ceiling).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrQuotaExceeded
	}
	return err
}

// CurrentPeriod returns the (month, year) key for now.
func CurrentPeriod() (month, year int) {
	now := time.Now().UTC()
	return int(now.Month()), now.Year()
}
