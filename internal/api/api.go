/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/cache"
	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/rotation"
	"github.com/visarlabs/visar/internal/webhooks"
)

// DefaultSelectTimeout bounds one selection request end to end.
const DefaultSelectTimeout = 5 * time.Second

// Publisher is the slice of the event bus the API publishes to.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// API exposes HTTP handlers.
type API struct {
	db            *gorm.DB
	engine        *rotation.Engine
	cache         *cache.Cache
	bus           Publisher
	webhooks      *webhooks.Service
	logger        zerolog.Logger
	selectTimeout time.Duration
}

// New creates the API router wrapper. cache may be nil.
func New(db *gorm.DB, engine *rotation.Engine, decisionCache *cache.Cache, bus Publisher, logger zerolog.Logger) *API {
	return &API{
		db:            db,
		engine:        engine,
		cache:         decisionCache,
		bus:           bus,
		logger:        logger.With().Str("component", "api").Logger(),
		selectTimeout: DefaultSelectTimeout,
	}
}

// SetWebhookService enables the webhook test endpoint.
func (a *API) SetWebhookService(svc *webhooks.Service) {
	a.webhooks = svc
}

// SetSelectTimeout overrides the per-request selection budget.
func (a *API) SetSelectTimeout(d time.Duration) {
	if d > 0 {
		a.selectTimeout = d
	}
}

// Routes mounts all API endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/content", func(r chi.Router) {
			r.Get("/", a.handleContentList)
			r.Post("/", a.handleContentCreate)

			r.Route("/{contentID}", func(r chi.Router) {
				r.Get("/", a.handleContentGet)
				r.Put("/", a.handleContentUpdate)
				r.Delete("/", a.handleContentDelete)

				r.Get("/active", a.handleActiveVideo)
				r.Post("/rotate", a.handleRotateNow)

				r.Route("/videos", func(r chi.Router) {
					r.Get("/", a.handleVideosList)
					r.Post("/", a.handleVideoCreate)
					r.Put("/{videoID}", a.handleVideoUpdate)
					r.Delete("/{videoID}", a.handleVideoDelete)
				})

				r.Route("/policy", func(r chi.Router) {
					r.Get("/", a.handlePolicyGet)
					r.Put("/", a.handlePolicySet)
				})
			})
		})

		r.Route("/videos/{videoID}/schedules", func(r chi.Router) {
			r.Get("/", a.handleSchedulesList)
			r.Post("/", a.handleScheduleCreate)
			r.Delete("/{scheduleID}", a.handleScheduleDelete)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", a.handleWebhooksList)
			r.Post("/", a.handleWebhookCreate)
			r.Delete("/{webhookID}", a.handleWebhookDelete)
			r.Post("/{webhookID}/test", a.handleWebhookTest)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeError(w, http.StatusServiceUnavailable, "database_unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// activeResponse is the viewer-facing decision payload.
type activeResponse struct {
	ContentItemID string           `json:"content_item_id"`
	Video         *activeVideoInfo `json:"video"`
	Reason        string           `json:"reason"`
	NextChangeAt  *time.Time       `json:"next_change_at,omitempty"`
	Cached        bool             `json:"cached,omitempty"`
}

type activeVideoInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
}

func (a *API) handleActiveVideo(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	if dec, ok := a.cache.GetDecision(r.Context(), contentID); ok {
		resp := activeResponse{
			ContentItemID: contentID,
			Reason:        dec.Reason,
			Cached:        true,
		}
		if dec.VideoID != "" {
			resp.Video = &activeVideoInfo{ID: dec.VideoID, Title: dec.VideoTitle, StorageKey: dec.StorageKey}
		}
		if !dec.NextChangeAt.IsZero() {
			t := dec.NextChangeAt
			resp.NextChangeAt = &t
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.selectTimeout)
	defer cancel()

	sel, err := a.engine.SelectActiveVideo(ctx, contentID)
	if err != nil {
		a.writeSelectionError(w, contentID, err)
		return
	}

	resp := activeResponse{ContentItemID: contentID, Reason: string(sel.Reason)}
	cached := cache.CachedDecision{
		ContentItemID: contentID,
		Reason:        string(sel.Reason),
		NextChangeAt:  sel.NextChangeAt,
		DecidedAt:     time.Now().UTC(),
	}
	if sel.Video != nil {
		resp.Video = &activeVideoInfo{ID: sel.Video.ID, Title: sel.Video.Title, StorageKey: sel.Video.StorageKey}
		cached.VideoID = sel.Video.ID
		cached.VideoTitle = sel.Video.Title
		cached.StorageKey = sel.Video.StorageKey
	}
	if !sel.NextChangeAt.IsZero() {
		t := sel.NextChangeAt
		resp.NextChangeAt = &t
	}

	a.cache.SetDecision(r.Context(), cached)

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRotateNow(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	ctx, cancel := context.WithTimeout(r.Context(), a.selectTimeout)
	defer cancel()

	sel, err := a.engine.RotateNow(ctx, contentID)
	if err != nil {
		if errors.Is(err, rotation.ErrManualRotation) {
			writeError(w, http.StatusConflict, "policy_not_manual")
			return
		}
		a.writeSelectionError(w, contentID, err)
		return
	}

	a.cache.InvalidateDecision(r.Context(), contentID)
	if a.bus != nil && sel.Video != nil {
		a.bus.Publish(events.EventRotationAdvanced, events.Payload{
			"content_item_id": contentID,
			"video_id":        sel.Video.ID,
			"trigger":         "manual",
		})
	}

	resp := activeResponse{ContentItemID: contentID, Reason: string(sel.Reason)}
	if sel.Video != nil {
		resp.Video = &activeVideoInfo{ID: sel.Video.ID, Title: sel.Video.Title, StorageKey: sel.Video.StorageKey}
	}
	if !sel.NextChangeAt.IsZero() {
		t := sel.NextChangeAt
		resp.NextChangeAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) writeSelectionError(w http.ResponseWriter, contentID string, err error) {
	switch {
	case errors.Is(err, rotation.ErrNotFound):
		writeError(w, http.StatusNotFound, "content_not_found")
	case errors.Is(err, rotation.ErrUnavailable):
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("selection unavailable")
		writeError(w, http.StatusServiceUnavailable, "selection_unavailable")
	default:
		a.logger.Error().Err(err).Str("content_item", contentID).Msg("selection failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
