package ingest

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"monitorflow/internal/engine/notify"
	"monitorflow/internal/engine/webhooks"
	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/platform/config"
	"monitorflow/internal/platform/models"
	"monitorflow/internal/platform/repositories"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) SendEventAlert(ctx context.Context, recipientID string, embed notify.Embed) error {
	f.calls++
	return f.err
}

type pipelineFixture struct {
	db         *sql.DB
	pipeline   *Pipeline
	notifier   *fakeNotifier
	users      *repositories.UserRepository
	categories *repositories.CategoryRepository
	events     *repositories.EventRepository
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	quotas     *repositories.QuotaRepository
}

var testPlans = config.PlansConfig{
	Free: config.PlanConfig{MaxEventsPerMonth: 100, MaxEventCategories: 3, MaxWebhooks: 1},
	Pro:  config.PlanConfig{MaxEventsPerMonth: 1000, MaxEventCategories: 10, MaxWebhooks: -1},
}

func setupPipeline(t *testing.T) *pipelineFixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	f := &pipelineFixture{
		db:         db,
		notifier:   &fakeNotifier{},
		users:      repositories.NewUserRepository(db),
		categories: repositories.NewCategoryRepository(db),
		events:     repositories.NewEventRepository(db),
		webhooks:   repositories.NewWebhookRepository(db),
		deliveries: repositories.NewDeliveryRepository(db),
		quotas:     repositories.NewQuotaRepository(db),
	}
	f.pipeline = NewPipeline(f.categories, f.events, f.webhooks, f.deliveries, f.quotas,
		f.notifier, webhooks.NewClient(time.Second), testPlans)
	return f
}

func (f *pipelineFixture) createUser(t *testing.T, discordID string) *models.User {
	t.Helper()
	user := &models.User{Email: "dev@example.com", DiscordID: discordID}
	if _, err := f.users.Create(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func (f *pipelineFixture) createCategory(t *testing.T, userID, name string) *models.EventCategory {
	t.Helper()
	category := &models.EventCategory{UserID: userID, Name: name, Color: 0xFF6B6B, Emoji: "💰"}
	if err := f.categories.Create(category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	return category
}

func (f *pipelineFixture) createWebhook(t *testing.T, userID, name, url string, categories []string) *models.Webhook {
	t.Helper()
	webhook := &models.Webhook{
		UserID:          userID,
		Name:            name,
		URL:             url,
		Secret:          "test-secret",
		EventCategories: categories,
	}
	if err := f.webhooks.Create(webhook); err != nil {
		t.Fatalf("Failed to create webhook: %v", err)
	}
	return webhook
}

func TestPipelineSuccessfulIngestion(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")
	f.createCategory(t, user.ID, "sale")

	var receivedBody []byte
	var receivedSignature string
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSignature = r.Header.Get(webhooks.SignatureHeader)
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	webhook := f.createWebhook(t, user.ID, "sales-hook", receiver.URL, []string{"sale"})

	result, err := f.pipeline.Ingest(context.Background(), user,
		[]byte(`{"category":"sale","fields":{"amount":49},"description":"Big one"}`))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	event, err := f.events.GetByID(result.EventID)
	if err != nil {
		t.Fatalf("Event not persisted: %v", err)
	}
	if event.DeliveryStatus != models.DeliveryStatusDelivered {
		t.Errorf("Expected DELIVERED, got %s", event.DeliveryStatus)
	}

	if f.notifier.calls != 1 {
		t.Errorf("Expected 1 notification, got %d", f.notifier.calls)
	}

	month, year := repositories.CurrentPeriod()
	count, err := f.quotas.Current(user.ID, month, year)
	if err != nil {
		t.Fatalf("Failed to read quota: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected quota count 1, got %d", count)
	}

	deliveries, err := f.deliveries.ListByWebhook(webhook.ID, 10)
	if err != nil {
		t.Fatalf("Failed to list deliveries: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("Expected 1 delivery row, got %d", len(deliveries))
	}
	if !deliveries[0].Success {
		t.Errorf("Expected successful delivery, got %+v", deliveries[0])
	}
	if deliveries[0].EventID != event.ID {
		t.Errorf("Delivery not linked to event: %s", deliveries[0].EventID)
	}

	if !webhooks.Verify("test-secret", receivedBody, receivedSignature) {
		t.Error("Delivered payload signature did not verify")
	}
}

func TestPipelineFanOutToMultipleWebhooks(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")
	f.createCategory(t, user.ID, "sale")

	type capture struct {
		body      []byte
		signature string
	}
	var mu sync.Mutex
	captured := make(map[string]*capture)
	newReceiver := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			captured[name] = &capture{body: body, signature: r.Header.Get(webhooks.SignatureHeader)}
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	}
	receiverA := newReceiver("a")
	defer receiverA.Close()
	receiverB := newReceiver("b")
	defer receiverB.Close()

	webhookA := f.createWebhook(t, user.ID, "hook-a", receiverA.URL, []string{"sale"})
	secretB := "another-secret"
	webhookB := &models.Webhook{
		UserID:          user.ID,
		Name:            "hook-b",
		URL:             receiverB.URL,
		Secret:          secretB,
		EventCategories: []string{"sale"},
	}
	if err := f.webhooks.Create(webhookB); err != nil {
		t.Fatalf("Failed to create webhook: %v", err)
	}

	result, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// One ledger row per webhook, each linked to the right webhook and to
	// the same event.
	for _, webhook := range []*models.Webhook{webhookA, webhookB} {
		deliveries, err := f.deliveries.ListByWebhook(webhook.ID, 10)
		if err != nil {
			t.Fatalf("Failed to list deliveries for %s: %v", webhook.Name, err)
		}
		if len(deliveries) != 1 {
			t.Fatalf("%s: expected 1 delivery row, got %d", webhook.Name, len(deliveries))
		}
		if deliveries[0].WebhookID != webhook.ID {
			t.Errorf("%s: delivery linked to wrong webhook %s", webhook.Name, deliveries[0].WebhookID)
		}
		if deliveries[0].EventID != result.EventID {
			t.Errorf("%s: delivery linked to wrong event %s", webhook.Name, deliveries[0].EventID)
		}
		if !deliveries[0].Success {
			t.Errorf("%s: expected successful delivery, got %+v", webhook.Name, deliveries[0])
		}
	}

	// Each endpoint got its own correctly signed payload.
	if captured["a"] == nil || captured["b"] == nil {
		t.Fatalf("Expected both receivers to be called, got %v", captured)
	}
	if !webhooks.Verify("test-secret", captured["a"].body, captured["a"].signature) {
		t.Error("hook-a payload signature did not verify")
	}
	if !webhooks.Verify(secretB, captured["b"].body, captured["b"].signature) {
		t.Error("hook-b payload signature did not verify")
	}
}

func TestPipelineWebhookFailureDoesNotFailRequest(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")
	f.createCategory(t, user.ID, "sale")

	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer receiver.Close()

	webhook := f.createWebhook(t, user.ID, "sales-hook", receiver.URL, []string{"sale"})

	result, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))
	if err != nil {
		t.Fatalf("Ingest should succeed despite webhook failure: %v", err)
	}

	event, err := f.events.GetByID(result.EventID)
	if err != nil {
		t.Fatalf("Event not persisted: %v", err)
	}
	if event.DeliveryStatus != models.DeliveryStatusDelivered {
		t.Errorf("Expected DELIVERED, got %s", event.DeliveryStatus)
	}

	deliveries, err := f.deliveries.ListByWebhook(webhook.ID, 10)
	if err != nil {
		t.Fatalf("Failed to list deliveries: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("Expected 1 delivery row, got %d", len(deliveries))
	}
	if deliveries[0].Success {
		t.Error("Expected failed delivery to be recorded as such")
	}
	if deliveries[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected recorded status 500, got %d", deliveries[0].StatusCode)
	}
}

func TestPipelineNotifierFailure(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")
	f.createCategory(t, user.ID, "sale")
	f.notifier.err = errors.New("discord API returned 403")

	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()
	webhook := f.createWebhook(t, user.ID, "sales-hook", receiver.URL, []string{"sale"})

	_, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("Expected *DeliveryError, got %v", err)
	}
	if deliveryErr.EventID == "" {
		t.Error("DeliveryError must carry the event id")
	}

	event, err := f.events.GetByID(deliveryErr.EventID)
	if err != nil {
		t.Fatalf("Event should survive the failure: %v", err)
	}
	if event.DeliveryStatus != models.DeliveryStatusFailed {
		t.Errorf("Expected FAILED, got %s", event.DeliveryStatus)
	}
	if event.Error == "" {
		t.Error("Expected error text on the event")
	}

	// The webhook branch is isolated from the notification failure; its
	// ledger row is still written.
	deliveries, err := f.deliveries.ListByWebhook(webhook.ID, 10)
	if err != nil {
		t.Fatalf("Failed to list deliveries: %v", err)
	}
	if len(deliveries) != 1 {
		t.Errorf("Expected 1 delivery row, got %d", len(deliveries))
	}
}

func TestPipelineMissingDiscordID(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "")

	_, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))

	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", apiErr.Status)
	}
}

func TestPipelineUnknownCategory(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")

	_, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"missing"}`))

	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.Status)
	}
	if apiErr.Message != `You don't have a category named "missing"` {
		t.Errorf("Unexpected message: %s", apiErr.Message)
	}

	var count int
	f.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 0 {
		t.Errorf("No event should be persisted, got %d rows", count)
	}
}

func TestPipelineQuotaExhausted(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")
	f.createCategory(t, user.ID, "sale")

	month, year := repositories.CurrentPeriod()
	for i := 0; i < testPlans.Free.MaxEventsPerMonth; i++ {
		if err := f.quotas.Increment(user.ID, month, year, testPlans.Free.MaxEventsPerMonth); err != nil {
			t.Fatalf("Failed to pre-fill quota: %v", err)
		}
	}

	_, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))

	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", apiErr.Status)
	}
	if apiErr.Message != "Monthly quota reached. Please upgrade your plan for more events" {
		t.Errorf("Unexpected message: %s", apiErr.Message)
	}

	var count int
	f.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 0 {
		t.Errorf("No event should be persisted, got %d rows", count)
	}
	if f.notifier.calls != 0 {
		t.Errorf("No notification should be sent, got %d", f.notifier.calls)
	}
}

func TestPipelineProPlanCeiling(t *testing.T) {
	f := setupPipeline(t)

	user := &models.User{Email: "dev@example.com", DiscordID: "123456789", Plan: models.PlanPro}
	if _, err := f.users.Create(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	f.createCategory(t, user.ID, "sale")

	month, year := repositories.CurrentPeriod()

	// Past the FREE ceiling but under the PRO one: still admitted.
	_, err := f.db.Exec(`INSERT INTO quotas (user_id, month, year, count, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, month, year, testPlans.Free.MaxEventsPerMonth, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to seed quota: %v", err)
	}

	result, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))
	if err != nil {
		t.Fatalf("PRO user under the PRO ceiling should be admitted: %v", err)
	}
	if result.EventID == "" {
		t.Error("Expected a persisted event")
	}

	// At the PRO ceiling: denied like any other exhausted quota.
	_, err = f.db.Exec(`UPDATE quotas SET count = ? WHERE user_id = ? AND month = ? AND year = ?`,
		testPlans.Pro.MaxEventsPerMonth, user.ID, month, year)
	if err != nil {
		t.Fatalf("Failed to update quota: %v", err)
	}

	_, err = f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`))
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", apiErr.Status)
	}
}

func TestPipelineSkipsUnmatchedWebhooks(t *testing.T) {
	f := setupPipeline(t)
	user := f.createUser(t, "123456789")
	f.createCategory(t, user.ID, "sale")

	var hits int
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	f.createWebhook(t, user.ID, "signup-hook", receiver.URL, []string{"sign-up"})
	paused := f.createWebhook(t, user.ID, "paused-hook", receiver.URL, []string{"sale"})
	paused.Status = models.WebhookStatusInactive
	if err := f.webhooks.Update(paused); err != nil {
		t.Fatalf("Failed to pause webhook: %v", err)
	}

	if _, err := f.pipeline.Ingest(context.Background(), user, []byte(`{"category":"sale"}`)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if hits != 0 {
		t.Errorf("Expected no webhook calls, got %d", hits)
	}

	var count int
	f.db.QueryRow(`SELECT COUNT(*) FROM webhook_deliveries`).Scan(&count)
	if count != 0 {
		t.Errorf("Expected no delivery rows, got %d", count)
	}
}
