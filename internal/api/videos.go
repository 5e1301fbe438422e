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

type videoRequest struct {
	Title                  string     `json:"title"`
	StorageKey             string     `json:"storage_key"`
	IsActive               *bool      `json:"is_active,omitempty"`
	IsDefault              *bool      `json:"is_default,omitempty"`
	RotationOrder          *int       `json:"rotation_order,omitempty"`
	RotationWeight         *int       `json:"rotation_weight,omitempty"`
	WindowStart            *time.Time `json:"window_start,omitempty"`
	WindowEnd              *time.Time `json:"window_end,omitempty"`
	SubscriptionEnd        *time.Time `json:"subscription_end,omitempty"`
	NotifyBeforeExpiryDays int        `json:"notify_before_expiry_days,omitempty"`
}

func (a *API) handleVideosList(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var videos []models.Video
	if err := a.db.WithContext(r.Context()).
		Where("content_item_id = ?", contentID).
		Order("rotation_order ASC, id ASC").
		Find(&videos).Error; err != nil {
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("list videos")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

func (a *API) handleVideoCreate(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var exists int64
	if err := a.db.WithContext(r.Context()).
		Model(&models.ContentItem{}).
		Where("id = ?", contentID).
		Count(&exists).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	if exists == 0 {
		writeError(w, http.StatusNotFound, "content_not_found")
		return
	}

	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.WindowStart != nil && req.WindowEnd != nil && !req.WindowEnd.After(*req.WindowStart) {
		writeError(w, http.StatusBadRequest, "window_end_before_start")
		return
	}

	video := models.Video{
		ID:                     uuid.NewString(),
		ContentItemID:          contentID,
		Title:                  req.Title,
		StorageKey:             req.StorageKey,
		IsActive:               true,
		RotationWeight:         1,
		WindowStart:            req.WindowStart,
		WindowEnd:              req.WindowEnd,
		SubscriptionEnd:        req.SubscriptionEnd,
		NotifyBeforeExpiryDays: req.NotifyBeforeExpiryDays,
	}
	applyVideoRequest(&video, req)
	if video.NotifyBeforeExpiryDays <= 0 {
		video.NotifyBeforeExpiryDays = 7
	}

	if err := a.db.WithContext(r.Context()).Create(&video).Error; err != nil {
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("create video")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	a.invalidate(r, contentID, events.EventVideoUpdated)
	writeJSON(w, http.StatusCreated, video)
}

func (a *API) handleVideoUpdate(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	videoID := chi.URLParam(r, "videoID")

	var video models.Video
	err := a.db.WithContext(r.Context()).
		First(&video, "id = ? AND content_item_id = ?", videoID, contentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "video_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.Title != "" {
		video.Title = req.Title
	}
	if req.StorageKey != "" {
		video.StorageKey = req.StorageKey
	}
	video.WindowStart = req.WindowStart
	video.WindowEnd = req.WindowEnd
	video.SubscriptionEnd = req.SubscriptionEnd
	applyVideoRequest(&video, req)
	if req.NotifyBeforeExpiryDays > 0 {
		video.NotifyBeforeExpiryDays = req.NotifyBeforeExpiryDays
	}
	if video.WindowStart != nil && video.WindowEnd != nil && !video.WindowEnd.After(*video.WindowStart) {
		writeError(w, http.StatusBadRequest, "window_end_before_start")
		return
	}

	if err := a.db.WithContext(r.Context()).Save(&video).Error; err != nil {
		a.logger.Error().Err(err).Str("video", videoID).Msg("update video")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	a.invalidate(r, contentID, events.EventVideoUpdated)
	writeJSON(w, http.StatusOK, video)
}

func (a *API) handleVideoDelete(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	videoID := chi.URLParam(r, "videoID")

	res := a.db.WithContext(r.Context()).
		Delete(&models.Video{}, "id = ? AND content_item_id = ?", videoID, contentID)
	if res.Error != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "video_not_found")
		return
	}

	a.db.WithContext(r.Context()).Delete(&models.Schedule{}, "video_id = ?", videoID)

	a.invalidate(r, contentID, events.EventVideoDeleted)
	w.WriteHeader(http.StatusNoContent)
}

func applyVideoRequest(video *models.Video, req videoRequest) {
	if req.IsActive != nil {
		video.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		video.IsDefault = *req.IsDefault
	}
	if req.RotationOrder != nil {
		video.RotationOrder = *req.RotationOrder
	}
	if req.RotationWeight != nil {
		video.RotationWeight = *req.RotationWeight
	}
}
