package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"monitorflow/internal/engine/notify"
	"monitorflow/internal/engine/webhooks"
	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/pkg/metrics"
	"monitorflow/internal/platform/config"
	"monitorflow/internal/platform/models"
	"monitorflow/internal/platform/repositories"
)

// Notifier delivers the per-user notification for an ingested event.
type Notifier interface {
	SendEventAlert(ctx context.Context, recipientID string, embed notify.Embed) error
}

// Sender issues one outbound webhook delivery attempt.
type Sender interface {
	Send(ctx context.Context, url string, body []byte, secret string, extraHeaders map[string]string) webhooks.DeliveryResult
}

// DeliveryError signals that the event was persisted but the
// notification/quota finalization failed. The event survives in FAILED
// state; EventID lets the caller correlate it with the ledger.
type DeliveryError struct {
	EventID string
	Cause   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("event %s: delivery failed: %v", e.EventID, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

type Result struct {
	EventID  string
	Category string
}

// Pipeline orchestrates one ingestion: quota pre-check, payload
// validation, category resolution, event persistence, parallel fan-out to
// the notification channel and all matching webhooks, and finalization of
// the event's delivery status.
type Pipeline struct {
	categories *repositories.CategoryRepository
	events     *repositories.EventRepository
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	quotas     *repositories.QuotaRepository
	notifier   Notifier
	sender     Sender
	plans      config.PlansConfig
}

func NewPipeline(
	categories *repositories.CategoryRepository,
	events *repositories.EventRepository,
	webhookRepo *repositories.WebhookRepository,
	deliveries *repositories.DeliveryRepository,
	quotas *repositories.QuotaRepository,
	notifier Notifier,
	sender Sender,
	plans config.PlansConfig,
) *Pipeline {
	return &Pipeline{
		categories: categories,
		events:     events,
		webhooks:   webhookRepo,
		deliveries: deliveries,
		quotas:     quotas,
		notifier:   notifier,
		sender:     sender,
		plans:      plans,
	}
}

// Ingest runs the pipeline for one authenticated request. Rate limiting
// and API key resolution happen in middleware before this is called.
func (p *Pipeline) Ingest(ctx context.Context, user *models.User, body []byte) (*Result, error) {
	if user.DiscordID == "" {
		return nil, apierrors.Forbidden("Please set your Discord ID in your account settings")
	}

	limits := p.plans.Limits(user.Plan)
	month, year := repositories.CurrentPeriod()

	used, err := p.quotas.Current(user.ID, month, year)
	if err != nil {
		return nil, err
	}
	if used >= limits.MaxEventsPerMonth {
		return nil, apierrors.QuotaExceeded("Monthly quota reached. Please upgrade your plan for more events")
	}

	req, err := ParseRequest(body)
	if err != nil {
		return nil, err
	}

	category, err := p.categories.GetByName(user.ID, req.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound(fmt.Sprintf("You don't have a category named %q", req.Category))
	}
	if err != nil {
		return nil, err
	}

	embed := buildEmbed(category, req)

	// Durability checkpoint: from here on the event exists no matter how
	// delivery turns out.
	event := &models.Event{
		UserID:           user.ID,
		CategoryID:       category.ID,
		Name:             category.Name,
		Fields:           req.Fields,
		FormattedMessage: embed.Title + "\n\n" + embed.Description,
		DeliveryStatus:   models.DeliveryStatusPending,
	}
	if err := p.events.Create(event); err != nil {
		return nil, err
	}

	matched, err := p.webhooks.ActiveByCategory(user.ID, category.Name)
	if err != nil {
		return nil, p.finalizeFailed(event, fmt.Errorf("resolve webhooks: %w", err))
	}

	// Fan-out. Every branch runs concurrently and all are joined before
	// the response. Webhook branches record their own outcomes and never
	// surface errors; only the notification send and the quota increment
	// can fail the request. A plain errgroup.Group is used on purpose so
	// one failing branch does not cancel its siblings.
	var g errgroup.Group
	g.Go(func() error {
		return p.notifier.SendEventAlert(ctx, user.DiscordID, embed)
	})
	g.Go(func() error {
		return p.quotas.Increment(user.ID, month, year, limits.MaxEventsPerMonth)
	})
	for _, webhook := range matched {
		webhook := webhook
		g.Go(func() error {
			p.deliverWebhook(ctx, webhook, event, user)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, p.finalizeFailed(event, err)
	}

	if err := p.events.UpdateDeliveryStatus(event.ID, models.DeliveryStatusDelivered, ""); err != nil {
		return nil, p.finalizeFailed(event, fmt.Errorf("mark delivered: %w", err))
	}

	metrics.EventsIngested.WithLabelValues(category.Name, models.DeliveryStatusDelivered).Inc()
	return &Result{EventID: event.ID, Category: category.Name}, nil
}

// finalizeFailed marks the event FAILED with the captured error text. The
// event row is never rolled back; it stays behind for inspection.
func (p *Pipeline) finalizeFailed(event *models.Event, cause error) error {
	if err := p.events.UpdateDeliveryStatus(event.ID, models.DeliveryStatusFailed, cause.Error()); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to mark event as failed")
	}
	metrics.EventsIngested.WithLabelValues(event.Name, models.DeliveryStatusFailed).Inc()
	return &DeliveryError{EventID: event.ID, Cause: cause}
}

// deliverWebhook performs one isolated delivery attempt and appends
// exactly one ledger row, whatever the outcome. It never returns an
// error: a failing webhook must not disturb sibling deliveries, the
// notification send, or the quota increment.
func (p *Pipeline) deliverWebhook(ctx context.Context, webhook *models.Webhook, event *models.Event, user *models.User) {
	deliveryID := repositories.NewDeliveryID()

	payload := models.WebhookPayload{
		ID: deliveryID,
		Event: models.WebhookPayloadEvent{
			ID:        event.ID,
			Name:      event.Name,
			Category:  event.Name,
			Fields:    event.Fields,
			CreatedAt: time.Unix(event.CreatedAt, 0).UTC().Format(time.RFC3339),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Account:   models.WebhookPayloadAccount{ID: user.ID},
	}

	record := &models.WebhookDelivery{
		ID:        deliveryID,
		WebhookID: webhook.ID,
		EventID:   event.ID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		record.Error = err.Error()
		p.recordDelivery(record)
		return
	}
	record.RequestBody = string(body)

	result := p.sender.Send(ctx, webhook.URL, body, webhook.Secret, webhook.Headers)
	record.ResponseBody = result.ResponseBody
	record.StatusCode = result.StatusCode
	record.Success = result.Success
	record.Error = result.Error

	p.recordDelivery(record)
}

func (p *Pipeline) recordDelivery(record *models.WebhookDelivery) {
	outcome := "failure"
	if record.Success {
		outcome = "success"
	}
	metrics.WebhookDeliveries.WithLabelValues(outcome).Inc()

	if err := p.deliveries.Create(record); err != nil {
		// The attempt already happened; losing the ledger row is the one
		// thing we cannot repair, so at least make it loud.
		log.Error().Err(err).
			Str("webhook_id", record.WebhookID).
			Str("event_id", record.EventID).
			Msg("failed to record webhook delivery")
	}
}

func buildEmbed(category *models.EventCategory, req *EventRequest) notify.Embed {
	emoji := category.Emoji
	if emoji == "" {
		emoji = "🔔"
	}
	title := fmt.Sprintf("%s %s", emoji, capitalize(category.Name))

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("A new %s event has occurred!", category.Name)
	}

	keys := make([]string, 0, len(req.Fields))
	for key := range req.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]notify.EmbedField, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, notify.EmbedField{
			Name:   key,
			Value:  fmt.Sprintf("%v", req.Fields[key]),
			Inline: true,
		})
	}

	return notify.Embed{
		Title:       title,
		Description: description,
		Color:       category.Color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields:      fields,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
