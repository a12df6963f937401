package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	apiContext "monitorflow/internal/api/context"
	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/pkg/validator"
	"monitorflow/internal/platform/config"
	"monitorflow/internal/platform/models"
	"monitorflow/internal/platform/repositories"
)

const maxWebhookDescription = 200

type WebhookHandler struct {
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	plans      config.PlansConfig
}

func NewWebhookHandler(webhooks *repositories.WebhookRepository, deliveries *repositories.DeliveryRepository, plans config.PlansConfig) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, deliveries: deliveries, plans: plans}
}

type webhookRequest struct {
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Description     string            `json:"description"`
	EventCategories []string          `json:"event_categories"`
	Headers         map[string]string `json:"headers"`
	Status          string            `json:"status"`
}

func (req *webhookRequest) validate() error {
	if err := validator.WebhookName(req.Name); err != nil {
		return err
	}
	if err := validator.WebhookURL(req.URL); err != nil {
		return err
	}
	if len(req.Description) > maxWebhookDescription {
		return fmt.Errorf("description must be less than %d characters", maxWebhookDescription)
	}
	if len(req.EventCategories) == 0 {
		return fmt.Errorf("at least one event category must be selected")
	}
	for i, name := range req.EventCategories {
		req.EventCategories[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return nil
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := req.validate(); err != nil {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.ErrCodeValidation, err.Error(), nil)
		return
	}

	if _, err := h.webhooks.GetByName(user.ID, req.Name); err == nil {
		apierrors.WriteError(w, http.StatusConflict, apierrors.ErrCodeConflict,
			fmt.Sprintf("A webhook with the name %q already exists", req.Name), nil)
		return
	}

	limits := h.plans.Limits(user.Plan)
	if limits.MaxWebhooks >= 0 {
		count, err := h.webhooks.CountByUser(user.ID)
		if err != nil {
			apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
			return
		}
		if count >= limits.MaxWebhooks {
			apierrors.WriteError(w, http.StatusForbidden, apierrors.ErrCodeForbidden,
				fmt.Sprintf("You have reached your limit of %d webhooks. Please upgrade to the Pro plan for unlimited webhooks.", limits.MaxWebhooks), nil)
			return
		}
	}

	secret, err := repositories.NewSecret()
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	webhook := &models.Webhook{
		UserID:          user.ID,
		Name:            req.Name,
		URL:             req.URL,
		Description:     req.Description,
		Secret:          secret,
		EventCategories: req.EventCategories,
		Headers:         req.Headers,
	}
	if err := h.webhooks.Create(webhook); err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusCreated, webhook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)

	webhooks, err := h.webhooks.ListByUser(user.ID)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": webhooks})
}

// Get returns one webhook together with its most recent deliveries.
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("webhook_id")

	webhook, err := h.webhooks.GetByID(user.ID, id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	deliveries, err := h.deliveries.ListByWebhook(webhook.ID, 10)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"webhook":    webhook,
		"deliveries": deliveries,
	})
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("webhook_id")

	webhook, err := h.webhooks.GetByID(user.ID, id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := req.validate(); err != nil {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.ErrCodeValidation, err.Error(), nil)
		return
	}
	if req.Status != "" && req.Status != models.WebhookStatusActive && req.Status != models.WebhookStatusInactive {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.ErrCodeValidation, "status must be ACTIVE or INACTIVE", nil)
		return
	}

	if req.Name != webhook.Name {
		if existing, err := h.webhooks.GetByName(user.ID, req.Name); err == nil && existing.ID != webhook.ID {
			apierrors.WriteError(w, http.StatusConflict, apierrors.ErrCodeConflict,
				fmt.Sprintf("A webhook with the name %q already exists", req.Name), nil)
			return
		}
	}

	webhook.Name = req.Name
	webhook.URL = req.URL
	webhook.Description = req.Description
	webhook.EventCategories = req.EventCategories
	webhook.Headers = req.Headers
	if req.Status != "" {
		webhook.Status = req.Status
	}

	if err := h.webhooks.Update(webhook); err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("webhook_id")

	err := h.webhooks.Delete(user.ID, id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RegenerateSecret rotates the signing secret. Receivers verifying with
// the old secret will start rejecting deliveries until reconfigured.
func (h *WebhookHandler) RegenerateSecret(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("webhook_id")

	secret, err := repositories.NewSecret()
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	err = h.webhooks.UpdateSecret(user.ID, id, secret)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}
