package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"monitorflow/internal/platform/models"

	"github.com/google/uuid"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create persists the event row. This is the durability checkpoint of the
// ingestion pipeline: once it succeeds the event exists regardless of how
// delivery turns out.
func (r *EventRepository) Create(event *models.Event) error {
	event.ID = "evt_" + uuid.New().String()
	event.CreatedAt = time.Now().Unix()
	if event.DeliveryStatus == "" {
		event.DeliveryStatus = models.DeliveryStatusPending
	}
	if event.Fields == nil {
		event.Fields = map[string]interface{}{}
	}

	fieldsJSON, err := json.Marshal(event.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (id, user_id, category_id, name, fields, formatted_message, delivery_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, event.ID, event.UserID, event.CategoryID, event.Name,
		string(fieldsJSON), event.FormattedMessage, event.DeliveryStatus, event.CreatedAt)
	return err
}

func (r *EventRepository) GetByID(id string) (*models.Event, error) {
	query := eventSelect + ` WHERE id = ?`
	row := r.db.QueryRow(query, id)
	return scanEvent(row.Scan)
}

func (r *EventRepository) ListByCategory(userID, categoryID string, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := eventSelect + ` WHERE user_id = ? AND category_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.Query(query, userID, categoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateDeliveryStatus records the notification-channel outcome. Delivery
// status and error are the only event fields the pipeline mutates after
// creation.
func (r *EventRepository) UpdateDeliveryStatus(id, status, errText string) error {
	_, err := r.db.Exec(`UPDATE events SET delivery_status = ?, error = ? WHERE id = ?`,
		status, nullString(errText), id)
	return err
}

func (r *EventRepository) Acknowledge(userID, id string) error {
	result, err := r.db.Exec(`UPDATE events SET acknowledged = 1, acknowledged_at = ? WHERE id = ? AND user_id = ?`,
		time.Now().Unix(), id, userID)
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

const eventSelect = `SELECT id, user_id, category_id, name, fields, formatted_message, delivery_status, error, acknowledged, acknowledged_at, created_at FROM events`

func scanEvent(scan func(dest ...interface{}) error) (*models.Event, error) {
	var e models.Event
	var fieldsStr string
	var errText sql.NullString
	var ackedAt sql.NullInt64

	err := scan(&e.ID, &e.UserID, &e.CategoryID, &e.Name, &fieldsStr, &e.FormattedMessage,
		&e.DeliveryStatus, &errText, &e.Acknowledged, &ackedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if errText.Valid {
		e.Error = errText.String
	}
	if ackedAt.Valid {
		e.AcknowledgedAt = &ackedAt.Int64
	}
	if err := json.Unmarshal([]byte(fieldsStr), &e.Fields); err != nil {
		e.Fields = map[string]interface{}{}
	}
	return &e, nil
}
