/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package sweeper advances rotation state for content items whose
// change boundary has passed, so decisions and events stay current even
// when no viewer requests arrive.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/models"
	"github.com/visarlabs/visar/internal/rotation"
	"github.com/visarlabs/visar/internal/telemetry"
)

// DefaultInterval is how often the sweeper scans for due boundaries.
const DefaultInterval = 30 * time.Second

// batchSize bounds one pass. Items left over are picked up next tick.
const batchSize = 100

// Publisher is the slice of the event bus the sweeper publishes to.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Service is the background boundary sweeper.
type Service struct {
	db       *gorm.DB
	engine   *rotation.Engine
	bus      Publisher
	logger   zerolog.Logger
	interval time.Duration
}

// New constructs the sweeper. bus may be nil.
func New(db *gorm.DB, engine *rotation.Engine, bus Publisher, interval time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		db:       db,
		engine:   engine,
		bus:      bus,
		logger:   logger.With().Str("component", "sweeper").Logger(),
		interval: interval,
	}
}

// Run executes the sweep loop until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("boundary sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("boundary sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	telemetry.SweeperTicksTotal.Inc()

	due, err := s.dueStates(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper failed to load due states")
		telemetry.SweeperErrorsTotal.WithLabelValues("load_states").Inc()
		return
	}

	for _, st := range due {
		sel, err := s.engine.SelectActiveVideo(ctx, st.ContentItemID)
		if err != nil {
			s.logger.Warn().Err(err).Str("content_item", st.ContentItemID).Msg("sweep selection failed")
			telemetry.SweeperErrorsTotal.WithLabelValues("select").Inc()
			continue
		}
		if s.bus != nil {
			payload := events.Payload{
				"content_item_id": st.ContentItemID,
				"reason":          string(sel.Reason),
			}
			if sel.Video != nil {
				payload["video_id"] = sel.Video.ID
			}
			s.bus.Publish(events.EventRotationDecision, payload)
		}
	}
}

// dueStates returns states whose boundary instant has passed. States
// with a zero NextChangeAt are stable until content changes and are
// never due.
func (s *Service) dueStates(ctx context.Context) ([]models.RotationState, error) {
	now := time.Now().UTC()

	var states []models.RotationState
	err := s.db.WithContext(ctx).
		Where("next_change_at <= ?", now).
		Order("next_change_at ASC").
		Limit(batchSize).
		Find(&states).Error
	if err != nil {
		return nil, err
	}

	due := states[:0]
	for _, st := range states {
		if st.NextChangeAt.IsZero() {
			continue
		}
		due = append(due, st)
	}
	return due, nil
}
