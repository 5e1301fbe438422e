/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/models"
)

type webhookRequest struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
	Events string `json:"events,omitempty"`
	Active *bool  `json:"active,omitempty"`
}

func (a *API) handleWebhooksList(w http.ResponseWriter, r *http.Request) {
	var targets []models.WebhookTarget
	if err := a.db.WithContext(r.Context()).Order("created_at ASC").Find(&targets).Error; err != nil {
		a.logger.Error().Err(err).Msg("list webhook targets")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	// Secrets never leave the API.
	for i := range targets {
		targets[i].Secret = ""
	}
	writeJSON(w, http.StatusOK, targets)
}

func (a *API) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !validWebhookURL(req.URL) {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}

	target := models.WebhookTarget{
		ID:     uuid.NewString(),
		Name:   req.Name,
		URL:    req.URL,
		Secret: req.Secret,
		Events: req.Events,
		Active: true,
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Create(&target).Error; err != nil {
		a.logger.Error().Err(err).Msg("create webhook target")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	target.Secret = ""
	writeJSON(w, http.StatusCreated, target)
}

func (a *API) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")

	res := a.db.WithContext(r.Context()).Delete(&models.WebhookTarget{}, "id = ?", webhookID)
	if res.Error != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "webhook_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	if a.webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks_disabled")
		return
	}

	webhookID := chi.URLParam(r, "webhookID")

	var target models.WebhookTarget
	err := a.db.WithContext(r.Context()).First(&target, "id = ?", webhookID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "webhook_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	if err := a.webhooks.TestDelivery(&target); err != nil {
		a.logger.Warn().Err(err).Str("webhook", webhookID).Msg("test delivery failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "delivery_failed",
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
