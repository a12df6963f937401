package repositories

import (
	"database/sql"
	"time"

	"monitorflow/internal/platform/models"

	"github.com/google/uuid"
)

// DeliveryRepository is the append-only ledger of webhook delivery
// attempts. Rows are only ever inserted; the pipeline never updates or
// deletes them.
type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// NewDeliveryID mints the id used both as the outbound payload id and as
// the ledger row key for one attempt.
func NewDeliveryID() string {
	return "whd_" + uuid.New().String()
}

func (r *DeliveryRepository) Create(delivery *models.WebhookDelivery) error {
	if delivery.ID == "" {
		delivery.ID = NewDeliveryID()
	}
	delivery.CreatedAt = time.Now().Unix()

	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event_id, request_body, response_body, status_code, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, delivery.ID, delivery.WebhookID, delivery.EventID,
		delivery.RequestBody, nullString(delivery.ResponseBody), nullInt(delivery.StatusCode),
		delivery.Success, nullString(delivery.Error), delivery.CreatedAt)
	return err
}

func (r *DeliveryRepository) ListByWebhook(webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 10
	}
	query := deliverySelect + ` WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.Query(query, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

func (r *DeliveryRepository) ListByEvent(eventID string) ([]*models.WebhookDelivery, error) {
	query := deliverySelect + ` WHERE event_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Query(query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

const deliverySelect = `SELECT id, webhook_id, event_id, request_body, response_body, status_code, success, error, created_at FROM webhook_deliveries`

func collectDeliveries(rows *sql.Rows) ([]*models.WebhookDelivery, error) {
	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		var responseBody, errText sql.NullString
		var statusCode sql.NullInt64

		err := rows.Scan(&d.ID, &d.WebhookID, &d.EventID, &d.RequestBody, &responseBody,
			&statusCode, &d.Success, &errText, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		if responseBody.Valid {
			d.ResponseBody = responseBody.String
		}
		if statusCode.Valid {
			d.StatusCode = int(statusCode.Int64)
		}
		if errText.Valid {
			d.Error = errText.String
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
