package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitAllowsUpToLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepository(db)

	const limit = 100

	for i := 0; i < limit; i++ {
		allowed, _, err := repo.Allow("rate_limit:1.2.3.4", limit, time.Hour)
		require.NoError(t, err)
		require.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter, err := repo.Allow("rate_limit:1.2.3.4", limit, time.Hour)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepository(db)

	allowed, _, err := repo.Allow("rate_limit:1.2.3.4", 1, time.Hour)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = repo.Allow("rate_limit:1.2.3.4", 1, time.Hour)
	require.NoError(t, err)
	require.False(t, allowed)

	// A different caller has its own window.
	allowed, _, err = repo.Allow("rate_limit:5.6.7.8", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitWindowReset(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepository(db)

	allowed, _, err := repo.Allow("rate_limit:1.2.3.4", 1, time.Hour)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = repo.Allow("rate_limit:1.2.3.4", 1, time.Hour)
	require.NoError(t, err)
	require.False(t, allowed)

	// Force the window into the past; the next request starts a fresh one.
	_, err = db.Exec(`UPDATE rate_limits SET reset_at = ? WHERE key = ?`,
		time.Now().Add(-time.Minute).Unix(), "rate_limit:1.2.3.4")
	require.NoError(t, err)

	allowed, _, err = repo.Allow("rate_limit:1.2.3.4", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)

	var count int
	require.NoError(t, db.QueryRow(`SELECT count FROM rate_limits WHERE key = ?`, "rate_limit:1.2.3.4").Scan(&count))
	assert.Equal(t, 1, count)
}
