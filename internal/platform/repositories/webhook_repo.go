package repositories

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"time"

	"monitorflow/internal/platform/models"

	"github.com/google/uuid"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// NewSecret generates a webhook signing secret: 32 random bytes, hex encoded.
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (r *WebhookRepository) Create(webhook *models.Webhook) error {
	webhook.ID = "wh_" + uuid.New().String()
	webhook.CreatedAt = time.Now().Unix()
	webhook.UpdatedAt = webhook.CreatedAt
	if webhook.Status == "" {
		webhook.Status = models.WebhookStatusActive
	}

	categoriesJSON, err := json.Marshal(webhook.EventCategories)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(webhook.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (id, user_id, name, url, description, secret, event_categories, headers, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, webhook.ID, webhook.UserID, webhook.Name, webhook.URL,
		nullString(webhook.Description), webhook.Secret, string(categoriesJSON), string(headersJSON),
		webhook.Status, webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

func (r *WebhookRepository) GetByID(userID, id string) (*models.Webhook, error) {
	query := webhookSelect + ` WHERE id = ? AND user_id = ?`
	row := r.db.QueryRow(query, id, userID)
	return scanWebhook(row.Scan)
}

func (r *WebhookRepository) GetByName(userID, name string) (*models.Webhook, error) {
	query := webhookSelect + ` WHERE user_id = ? AND name = ?`
	row := r.db.QueryRow(query, userID, name)
	return scanWebhook(row.Scan)
}

func (r *WebhookRepository) ListByUser(userID string) ([]*models.Webhook, error) {
	query := webhookSelect + ` WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (r *WebhookRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM webhooks WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

func (r *WebhookRepository) Update(webhook *models.Webhook) error {
	categoriesJSON, err := json.Marshal(webhook.EventCategories)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(webhook.Headers)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhooks
		SET name = ?, url = ?, description = ?, event_categories = ?, headers = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	_, err = r.db.Exec(query, webhook.Name, webhook.URL, nullString(webhook.Description),
		string(categoriesJSON), string(headersJSON), webhook.Status, webhook.UpdatedAt,
		webhook.ID, webhook.UserID)
	return err
}

func (r *WebhookRepository) Delete(userID, id string) error {
	result, err := r.db.Exec(`DELETE FROM webhooks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateSecret rotates the signing secret, invalidating whatever
// verification expectation the receiver held for the old one.
func (r *WebhookRepository) UpdateSecret(userID, id, secret string) error {
	result, err := r.db.Exec(`UPDATE webhooks SET secret = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		secret, time.Now().Unix(), id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ActiveByCategory returns the user's ACTIVE webhooks subscribed to the
// given category name. Subscriptions are name strings, not ids, so the
// match is plain string equality against the stored JSON array.
func (r *WebhookRepository) ActiveByCategory(userID, categoryName string) ([]*models.Webhook, error) {
	query := webhookSelect + ` WHERE user_id = ? AND status = ?`
	rows, err := r.db.Query(query, userID, models.WebhookStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows.Scan)
		if err != nil {
			return nil, err
		}
		for _, name := range w.EventCategories {
			if name == categoryName {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, rows.Err()
}

const webhookSelect = `SELECT id, user_id, name, url, description, secret, event_categories, headers, status, created_at, updated_at FROM webhooks`

func scanWebhook(scan func(dest ...interface{}) error) (*models.Webhook, error) {
	var w models.Webhook
	var description sql.NullString
	var categoriesStr, headersStr string

	err := scan(&w.ID, &w.UserID, &w.Name, &w.URL, &description, &w.Secret,
		&categoriesStr, &headersStr, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		w.Description = description.String
	}
	json.Unmarshal([]byte(categoriesStr), &w.EventCategories)
	json.Unmarshal([]byte(headersStr), &w.Headers)
	return &w, nil
}
