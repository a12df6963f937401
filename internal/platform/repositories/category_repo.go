package repositories

import (
	"database/sql"
	"time"

	"monitorflow/internal/platform/models"

	"github.com/google/uuid"
)

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(category *models.EventCategory) error {
	category.ID = "cat_" + uuid.New().String()
	category.CreatedAt = time.Now().Unix()
	category.UpdatedAt = category.CreatedAt

	query := `
		INSERT INTO event_categories (id, user_id, name, color, emoji, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, category.ID, category.UserID, category.Name, category.Color,
		nullString(category.Emoji), category.CreatedAt, category.UpdatedAt)
	return err
}

// GetByName looks a category up by its exact (lowercase) name for one user.
func (r *CategoryRepository) GetByName(userID, name string) (*models.EventCategory, error) {
	query := categorySelect + ` WHERE user_id = ? AND name = ?`
	row := r.db.QueryRow(query, userID, name)

	var c models.EventCategory
	var emoji sql.NullString
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &emoji, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if emoji.Valid {
		c.Emoji = emoji.String
	}
	return &c, nil
}

func (r *CategoryRepository) ListByUser(userID string) ([]*models.EventCategory, error) {
	query := categorySelect + ` WHERE user_id = ? ORDER BY name ASC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.EventCategory
	for rows.Next() {
		var c models.EventCategory
		var emoji sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &emoji, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if emoji.Valid {
			c.Emoji = emoji.String
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM event_categories WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

// Delete removes a category by name. Webhook subscriptions reference
// category names, not ids, so a deleted category silently stops matching
// rather than erroring.
func (r *CategoryRepository) Delete(userID, name string) error {
	result, err := r.db.Exec(`DELETE FROM event_categories WHERE user_id = ? AND name = ?`, userID, name)
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

const categorySelect = `SELECT id, user_id, name, color, emoji, created_at, updated_at FROM event_categories`
