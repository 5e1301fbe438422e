/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/models"
)

type contentItemRequest struct {
	Title                  string     `json:"title"`
	MarkerKey              string     `json:"marker_key"`
	SubscriptionEnd        *time.Time `json:"subscription_end,omitempty"`
	NotifyBeforeExpiryDays int        `json:"notify_before_expiry_days,omitempty"`
}

func (a *API) handleContentList(w http.ResponseWriter, r *http.Request) {
	var items []models.ContentItem
	if err := a.db.WithContext(r.Context()).Order("created_at DESC").Find(&items).Error; err != nil {
		a.logger.Error().Err(err).Msg("list content items")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleContentCreate(w http.ResponseWriter, r *http.Request) {
	var req contentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title_required")
		return
	}

	item := models.ContentItem{
		ID:                     uuid.NewString(),
		Title:                  req.Title,
		MarkerKey:              req.MarkerKey,
		SubscriptionEnd:        req.SubscriptionEnd,
		NotifyBeforeExpiryDays: req.NotifyBeforeExpiryDays,
	}
	if item.NotifyBeforeExpiryDays <= 0 {
		item.NotifyBeforeExpiryDays = 7
	}
	if err := a.db.WithContext(r.Context()).Create(&item).Error; err != nil {
		a.logger.Error().Err(err).Msg("create content item")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleContentGet(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var item models.ContentItem
	err := a.db.WithContext(r.Context()).
		Preload("Videos").
		Preload("Policy").
		First(&item, "id = ?", contentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "content_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("get content item")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleContentUpdate(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var req contentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var item models.ContentItem
	err := a.db.WithContext(r.Context()).First(&item, "id = ?", contentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "content_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	if req.Title != "" {
		item.Title = req.Title
	}
	if req.MarkerKey != "" {
		item.MarkerKey = req.MarkerKey
	}
	item.SubscriptionEnd = req.SubscriptionEnd
	if req.NotifyBeforeExpiryDays > 0 {
		item.NotifyBeforeExpiryDays = req.NotifyBeforeExpiryDays
	}

	if err := a.db.WithContext(r.Context()).Save(&item).Error; err != nil {
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("update content item")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	a.invalidate(r, contentID, events.EventContentUpdated)
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleContentDelete(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	res := a.db.WithContext(r.Context()).Delete(&models.ContentItem{}, "id = ?", contentID)
	if res.Error != nil {
		a.logger.Error().Err(res.Error).Str("content_item", contentID).Msg("delete content item")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "content_not_found")
		return
	}

	// State and policy rows are keyed by the item id and orphaned now.
	a.db.WithContext(r.Context()).Delete(&models.RotationState{}, "content_item_id = ?", contentID)
	a.db.WithContext(r.Context()).Delete(&models.RotationPolicy{}, "content_item_id = ?", contentID)

	a.invalidate(r, contentID, events.EventContentDeleted)
	w.WriteHeader(http.StatusNoContent)
}

// invalidate drops the cached decision and announces the change.
func (a *API) invalidate(r *http.Request, contentID string, eventType events.EventType) {
	a.cache.InvalidateDecision(r.Context(), contentID)
	if a.bus != nil {
		a.bus.Publish(eventType, events.Payload{"content_item_id": contentID})
	}
}
