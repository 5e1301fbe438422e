/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/models"
)

type policyRequest struct {
	Strategy       string            `json:"strategy"`
	Trigger        models.Trigger    `json:"trigger"`
	NoRepeatDays   int               `json:"no_repeat_days,omitempty"`
	DefaultVideoID string            `json:"default_video_id,omitempty"`
	DateRules      []models.DateRule `json:"date_rules,omitempty"`
}

func (a *API) handlePolicyGet(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var policy models.RotationPolicy
	err := a.db.WithContext(r.Context()).First(&policy, "content_item_id = ?", contentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "policy_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("get policy")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// handlePolicySet creates or replaces the item's rotation policy.
func (a *API) handlePolicySet(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	strategy, canonical := models.ParseStrategy(req.Strategy)
	if !canonical && req.Strategy != "" {
		a.logger.Warn().
			Str("content_item", contentID).
			Str("strategy", req.Strategy).
			Str("normalized", string(strategy)).
			Msg("normalized legacy strategy on write")
	}
	for _, rule := range req.DateRules {
		if !validDateRule(rule) {
			writeError(w, http.StatusBadRequest, "invalid_date_rule")
			return
		}
	}

	var policy models.RotationPolicy
	err := a.db.WithContext(r.Context()).First(&policy, "content_item_id = ?", contentID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		policy = models.RotationPolicy{ID: uuid.NewString(), ContentItemID: contentID}
	case err != nil:
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	policy.Strategy = strategy
	policy.Trigger = req.Trigger
	policy.NoRepeatDays = req.NoRepeatDays
	policy.DefaultVideoID = req.DefaultVideoID
	policy.DateRules = req.DateRules

	if err := a.db.WithContext(r.Context()).Save(&policy).Error; err != nil {
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("save policy")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	a.invalidate(r, contentID, events.EventPolicyUpdated)
	writeJSON(w, http.StatusOK, policy)
}

func validDateRule(rule models.DateRule) bool {
	if rule.VideoID == "" {
		return false
	}
	_, ok := rule.Until()
	return ok
}
