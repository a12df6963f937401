package repositories

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"monitorflow/internal/platform/models"

	"github.com/google/uuid"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// HashAPIKey is the deterministic hash used to look users up by API key.
func HashAPIKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

func newAPIKey() (raw, hash, prefix string) {
	raw = "mf_live_" + uuid.New().String()
	hash = HashAPIKey(raw)
	prefix = raw[:12] + "..."
	return raw, hash, prefix
}

// Create inserts the user and returns the raw API key. The raw key is
// shown exactly once; only its hash is stored.
func (r *UserRepository) Create(user *models.User) (string, error) {
	user.ID = "usr_" + uuid.New().String()
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	user.CreatedAt = time.Now().Unix()
	user.UpdatedAt = user.CreatedAt

	rawKey, keyHash, keyPrefix := newAPIKey()
	user.APIKeyHash = keyHash
	user.APIKeyPrefix = keyPrefix

	query := `
		INSERT INTO users (id, email, api_key_hash, api_key_prefix, plan, discord_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, user.ID, user.Email, user.APIKeyHash, user.APIKeyPrefix, user.Plan,
		nullString(user.DiscordID), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return "", err
	}
	return rawKey, nil
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	row := r.db.QueryRow(userSelect+` WHERE id = ?`, id)
	return scanUser(row)
}

// GetByAPIKey resolves the caller by raw API key.
func (r *UserRepository) GetByAPIKey(rawKey string) (*models.User, error) {
	row := r.db.QueryRow(userSelect+` WHERE api_key_hash = ?`, HashAPIKey(rawKey))
	return scanUser(row)
}

func (r *UserRepository) SetDiscordID(id, discordID string) error {
	_, err := r.db.Exec(`UPDATE users SET discord_id = ?, updated_at = ? WHERE id = ?`,
		nullString(discordID), time.Now().Unix(), id)
	return err
}

// SetPlan is the billing collaborator's entry point; the dispatcher never
// changes a plan tier on its own.
func (r *UserRepository) SetPlan(id, plan string) error {
	_, err := r.db.Exec(`UPDATE users SET plan = ?, updated_at = ? WHERE id = ?`,
		plan, time.Now().Unix(), id)
	return err
}

// RegenerateAPIKey replaces the stored key hash and returns the new raw key.
func (r *UserRepository) RegenerateAPIKey(id string) (string, error) {
	rawKey, keyHash, keyPrefix := newAPIKey()
	_, err := r.db.Exec(`UPDATE users SET api_key_hash = ?, api_key_prefix = ?, updated_at = ? WHERE id = ?`,
		keyHash, keyPrefix, time.Now().Unix(), id)
	if err != nil {
		return "", err
	}
	return rawKey, nil
}

const userSelect = `SELECT id, email, api_key_hash, api_key_prefix, plan, discord_id, created_at, updated_at FROM users`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var discordID sql.NullString

	err := row.Scan(&u.ID, &u.Email, &u.APIKeyHash, &u.APIKeyPrefix, &u.Plan, &discordID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if discordID.Valid {
		u.DiscordID = discordID.String
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
