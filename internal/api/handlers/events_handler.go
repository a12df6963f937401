package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	apiContext "monitorflow/internal/api/context"
	"monitorflow/internal/engine/ingest"
	apierrors "monitorflow/internal/pkg/errors"
	"monitorflow/internal/pkg/metrics"
	"monitorflow/internal/platform/models"
	"monitorflow/internal/platform/repositories"
)

const maxRequestBody = 1 << 20 // 1 MiB

type EventsHandler struct {
	pipeline   *ingest.Pipeline
	events     *repositories.EventRepository
	categories *repositories.CategoryRepository
}

func NewEventsHandler(pipeline *ingest.Pipeline, events *repositories.EventRepository, categories *repositories.CategoryRepository) *EventsHandler {
	return &EventsHandler{pipeline: pipeline, events: events, categories: categories}
}

// Ingest is the authenticated intake endpoint. Rate limiting and API key
// resolution run as middleware; everything from quota check to fan-out is
// the pipeline's job.
func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := r.Context().Value(apiContext.User).(*models.User)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidInput, "Failed to read request body", nil)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), user, body)
	if err != nil {
		var deliveryErr *ingest.DeliveryError
		if errors.As(err, &deliveryErr) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message": "Failed to deliver event notification",
				"eventId": deliveryErr.EventID,
				"error":   deliveryErr.Cause.Error(),
			})
			return
		}
		if apiErr, ok := apierrors.AsAPIError(err); ok {
			metrics.IngestRejected.WithLabelValues(apiErr.Code).Inc()
			apierrors.WriteAPIError(w, apiErr)
			return
		}
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	metrics.IngestDuration.WithLabelValues(result.Category).Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Event processed successfully",
		"eventId": result.EventID,
	})
}

// List returns recent events for one of the caller's categories.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)

	categoryName := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if categoryName == "" {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidInput, "Query parameter 'category' is required", nil)
		return
	}

	category, err := h.categories.GetByName(user.ID, categoryName)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Category not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	events, err := h.events.ListByCategory(user.ID, category.ID, 50)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *EventsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	eventID := params.ByName("event_id")

	err := h.events.Acknowledge(user.ID, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Event not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
