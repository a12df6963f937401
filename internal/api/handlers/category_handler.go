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

type CategoryHandler struct {
	categories *repositories.CategoryRepository
	plans      config.PlansConfig
}

func NewCategoryHandler(categories *repositories.CategoryRepository, plans config.PlansConfig) *CategoryHandler {
	return &CategoryHandler{categories: categories, plans: plans}
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)

	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if err := validator.CategoryName(name); err != nil {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.ErrCodeValidation, err.Error(), nil)
		return
	}

	color, err := validator.HexColor(req.Color)
	if err != nil {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.ErrCodeValidation, err.Error(), nil)
		return
	}

	limits := h.plans.Limits(user.Plan)
	count, err := h.categories.CountByUser(user.ID)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}
	if count >= limits.MaxEventCategories {
		apierrors.WriteError(w, http.StatusForbidden, apierrors.ErrCodeForbidden,
			fmt.Sprintf("You have reached your limit of %d event categories. Please upgrade your plan.", limits.MaxEventCategories), nil)
		return
	}

	if _, err := h.categories.GetByName(user.ID, name); err == nil {
		apierrors.WriteError(w, http.StatusConflict, apierrors.ErrCodeConflict,
			fmt.Sprintf("A category named %q already exists", name), nil)
		return
	}

	category := &models.EventCategory{
		UserID: user.ID,
		Name:   name,
		Color:  color,
		Emoji:  req.Emoji,
	}
	if err := h.categories.Create(category); err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)

	categories, err := h.categories.ListByUser(user.ID)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(apiContext.User).(*models.User)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	name := strings.ToLower(params.ByName("name"))

	err := h.categories.Delete(user.ID, name)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Category not found", nil)
		return
	}
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
