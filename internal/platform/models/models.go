package models

const (
	PlanFree = "FREE"
	PlanPro  = "PRO"
)

const (
	DeliveryStatusPending   = "PENDING"
	DeliveryStatusDelivered = "DELIVERED"
	DeliveryStatusFailed    = "FAILED"
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	APIKeyHash   string `json:"-"`
	APIKeyPrefix string `json:"api_key_prefix"`
	Plan         string `json:"plan"` // FREE or PRO
	DiscordID    string `json:"discord_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type EventCategory struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"` // lowercase, unique per user
	Color     int    `json:"color"`
	Emoji     string `json:"emoji,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type Event struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	CategoryID       string                 `json:"category_id"`
	Name             string                 `json:"name"` // copied from category name at creation
	Fields           map[string]interface{} `json:"fields"`
	FormattedMessage string                 `json:"formatted_message"`
	DeliveryStatus   string                 `json:"delivery_status"` // PENDING, DELIVERED, FAILED
	Error            string                 `json:"error,omitempty"`
	Acknowledged     bool                   `json:"acknowledged"`
	AcknowledgedAt   *int64                 `json:"acknowledged_at,omitempty"`
	CreatedAt        int64                  `json:"created_at"`
}

// Quota is one row per (user, month, year) capping monthly ingestion volume.
type Quota struct {
	UserID    string `json:"user_id"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	Count     int    `json:"count"`
	UpdatedAt int64  `json:"updated_at"`
}

// RateLimit is a fixed-window counter row keyed by caller identity.
type RateLimit struct {
	Key     string `json:"key"`
	Count   int    `json:"count"`
	ResetAt int64  `json:"reset_at"`
}
