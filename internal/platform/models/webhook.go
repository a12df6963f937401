package models

const (
	WebhookStatusActive   = "ACTIVE"
	WebhookStatusInactive = "INACTIVE"
)

type Webhook struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Name            string            `json:"name"` // unique per user
	URL             string            `json:"url"`
	Description     string            `json:"description,omitempty"`
	Secret          string            `json:"secret"`
	EventCategories []string          `json:"event_categories"` // category names, JSON array in DB
	Headers         map[string]string `json:"headers,omitempty"` // JSON object in DB
	Status          string            `json:"status"`            // ACTIVE, INACTIVE
	CreatedAt       int64             `json:"created_at"`
	UpdatedAt       int64             `json:"updated_at"`
}

// WebhookDelivery is an append-only ledger entry for one delivery attempt.
// Rows are never updated or deleted.
type WebhookDelivery struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	EventID      string `json:"event_id"`
	RequestBody  string `json:"request_body"`
	ResponseBody string `json:"response_body,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"` // 0 when no response was received
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// WebhookPayload is the body POSTed to a webhook endpoint.
type WebhookPayload struct {
	ID        string              `json:"id"` // delivery id, fresh per attempt
	Event     WebhookPayloadEvent `json:"event"`
	Timestamp string              `json:"timestamp"`
	Account   WebhookPayloadAccount `json:"account"`
}

type WebhookPayloadEvent struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields"`
	CreatedAt string                 `json:"createdAt"`
}

type WebhookPayloadAccount struct {
	ID string `json:"id"`
}
