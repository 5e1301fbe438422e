/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks delivers rotation and expiry events to external
// HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/models"
	"github.com/visarlabs/visar/internal/telemetry"
)

// Payload is the body sent to webhook endpoints.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start listens for events until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	advanced := s.bus.Subscribe(events.EventRotationAdvanced)
	decisions := s.bus.Subscribe(events.EventRotationDecision)
	reminders := s.bus.Subscribe(events.EventExpiryReminder)

	defer func() {
		s.bus.Unsubscribe(events.EventRotationAdvanced, advanced)
		s.bus.Unsubscribe(events.EventRotationDecision, decisions)
		s.bus.Unsubscribe(events.EventExpiryReminder, reminders)
	}()

	s.logger.Info().Msg("webhook service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return
		case payload := <-advanced:
			s.fire(ctx, string(events.EventRotationAdvanced), payload)
		case payload := <-decisions:
			s.fire(ctx, string(events.EventRotationDecision), payload)
		case payload := <-reminders:
			s.fire(ctx, string(events.EventExpiryReminder), payload)
		}
	}
}

// fire dispatches the event to every subscribed active target.
func (s *Service) fire(ctx context.Context, eventType string, data events.Payload) {
	var targets []models.WebhookTarget
	if err := s.db.Where("active = ?", true).Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch webhook targets")
		return
	}

	for _, target := range targets {
		if !targetHandlesEvent(target, eventType) {
			continue
		}
		go s.send(ctx, target, eventType, data)
	}
}

func targetHandlesEvent(target models.WebhookTarget, eventType string) bool {
	if target.Events == "" {
		return true
	}
	for _, e := range strings.Split(target.Events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

func (s *Service) send(ctx context.Context, target models.WebhookTarget, eventType string, data events.Payload) {
	payload := Payload{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("target", target.ID).Msg("failed to marshal webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Str("target", target.ID).Msg("failed to create webhook request")
		s.logDelivery(target, eventType, http.StatusInternalServerError, err.Error())
		return
	}
	setHeaders(req, body, eventType, target.Secret)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("target", target.ID).Str("url", target.URL).Msg("webhook delivery failed")
		telemetry.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		s.logDelivery(target, eventType, 0, err.Error())
		return
	}
	defer resp.Body.Close()

	s.logDelivery(target, eventType, resp.StatusCode, "")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		telemetry.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
		s.logger.Debug().Str("target", target.ID).Str("event", eventType).Int("status", resp.StatusCode).Msg("webhook delivered")
	} else {
		telemetry.WebhookDeliveriesTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn().Str("target", target.ID).Str("event", eventType).Int("status", resp.StatusCode).Msg("webhook returned error status")
	}
}

func setHeaders(req *http.Request, body []byte, eventType, secret string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Visar-Webhook/1.0")
	req.Header.Set("X-Visar-Event", eventType)
	req.Header.Set("X-Visar-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	if secret != "" {
		req.Header.Set("X-Visar-Signature", signPayload(body, secret))
	}
}

// signPayload creates an HMAC-SHA256 signature.
func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// logDelivery records a delivery attempt.
func (s *Service) logDelivery(target models.WebhookTarget, eventType string, statusCode int, errorMsg string) {
	log := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		StatusCode: statusCode,
		Error:      errorMsg,
	}
	if err := s.db.Create(log).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// TestDelivery sends a test payload to a target.
func (s *Service) TestDelivery(target *models.WebhookTarget) error {
	payload := Payload{
		Event:     "test",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"content_item_id": "test-content-item",
			"video_id":        "test-video",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setHeaders(req, body, "test", target.Secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
