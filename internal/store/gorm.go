/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store provides the database-backed implementations of the
// rotation engine's persistence interfaces.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/models"
	"github.com/visarlabs/visar/internal/rotation"
)

// ContentRepository loads content bundles from the relational database.
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a repository bound to db.
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// LoadBundle fetches the content item, its videos in rotation order, the
// attached policy and any schedules referencing those videos.
func (r *ContentRepository) LoadBundle(ctx context.Context, contentItemID string) (rotation.Bundle, error) {
	var bundle rotation.Bundle

	if err := r.db.WithContext(ctx).
		First(&bundle.Item, "id = ?", contentItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rotation.Bundle{}, fmt.Errorf("%w: %s", rotation.ErrNotFound, contentItemID)
		}
		return rotation.Bundle{}, fmt.Errorf("load content item: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Where("content_item_id = ?", contentItemID).
		Order("rotation_order ASC, id ASC").
		Find(&bundle.Videos).Error; err != nil {
		return rotation.Bundle{}, fmt.Errorf("load videos: %w", err)
	}

	var policy models.RotationPolicy
	err := r.db.WithContext(ctx).
		First(&policy, "content_item_id = ?", contentItemID).Error
	switch {
	case err == nil:
		bundle.Policy = &policy
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No policy defaults to the none strategy.
	default:
		return rotation.Bundle{}, fmt.Errorf("load rotation policy: %w", err)
	}

	if len(bundle.Videos) > 0 {
		ids := make([]string, len(bundle.Videos))
		for i, v := range bundle.Videos {
			ids[i] = v.ID
		}
		if err := r.db.WithContext(ctx).
			Where("video_id IN ?", ids).
			Find(&bundle.Schedules).Error; err != nil {
			return rotation.Bundle{}, fmt.Errorf("load schedules: %w", err)
		}
	}

	return bundle, nil
}

// BumpRotationCounter increments the item's rotation counter in place.
func (r *ContentRepository) BumpRotationCounter(ctx context.Context, contentItemID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ContentItem{}).
		Where("id = ?", contentItemID).
		UpdateColumn("rotation_counter", gorm.Expr("rotation_counter + 1")).Error
}

// StateStore persists rotation state rows guarded by a version column.
type StateStore struct {
	db *gorm.DB
}

// NewStateStore creates a state store bound to db.
func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db}
}

// Load returns the stored state for a content item and whether one exists.
func (s *StateStore) Load(ctx context.Context, contentItemID string) (models.RotationState, bool, error) {
	var st models.RotationState
	err := s.db.WithContext(ctx).
		First(&st, "content_item_id = ?", contentItemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RotationState{}, false, nil
	}
	if err != nil {
		return models.RotationState{}, false, fmt.Errorf("load rotation state: %w", err)
	}
	return st, true, nil
}

// CompareAndSwap writes next only if the stored version still equals
// expectedVersion. expectedVersion zero means the row must not exist
// yet. A lost race returns (false, nil); the caller reloads and adopts
// the winner's state.
func (s *StateStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next models.RotationState) (bool, error) {
	if expectedVersion == 0 {
		err := s.db.WithContext(ctx).Create(&next).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("create rotation state: %w", err)
		}
		return true, nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.RotationState{}).
		Where("content_item_id = ? AND version = ?", next.ContentItemID, expectedVersion).
		Select("CurrentIndex", "CurrentVideoID", "NextChangeAt", "LastChangedAt", "RandomSeed", "History", "Version").
		Updates(next)
	if res.Error != nil {
		return false, fmt.Errorf("update rotation state: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
