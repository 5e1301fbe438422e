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

type scheduleRequest struct {
	Status      string    `json:"status"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Description string    `json:"description,omitempty"`
}

func (a *API) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	var schedules []models.Schedule
	if err := a.db.WithContext(r.Context()).
		Where("video_id = ?", videoID).
		Order("starts_at ASC").
		Find(&schedules).Error; err != nil {
		a.logger.Error().Err(err).Str("video", videoID).Msg("list schedules")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (a *API) handleScheduleCreate(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	var video models.Video
	err := a.db.WithContext(r.Context()).First(&video, "id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "video_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		writeError(w, http.StatusBadRequest, "ends_before_starts")
		return
	}

	status := models.ScheduleStatus(req.Status)
	switch status {
	case models.ScheduleActive, models.ScheduleInactive, models.SchedulePlanned:
	case "":
		status = models.SchedulePlanned
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	sched := models.Schedule{
		ID:          uuid.NewString(),
		VideoID:     videoID,
		Status:      status,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		Description: req.Description,
	}
	if err := a.db.WithContext(r.Context()).Create(&sched).Error; err != nil {
		a.logger.Error().Err(err).Str("video", videoID).Msg("create schedule")
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}

	a.invalidate(r, video.ContentItemID, events.EventVideoUpdated)
	writeJSON(w, http.StatusCreated, sched)
}

func (a *API) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	scheduleID := chi.URLParam(r, "scheduleID")

	var video models.Video
	if err := a.db.WithContext(r.Context()).First(&video, "id = ?", videoID).Error; err != nil {
		writeError(w, http.StatusNotFound, "video_not_found")
		return
	}

	res := a.db.WithContext(r.Context()).
		Delete(&models.Schedule{}, "id = ? AND video_id = ?", scheduleID, videoID)
	if res.Error != nil {
		writeError(w, http.StatusInternalServerError, "database_error")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "schedule_not_found")
		return
	}

	a.invalidate(r, video.ContentItemID, events.EventVideoUpdated)
	w.WriteHeader(http.StatusNoContent)
}
