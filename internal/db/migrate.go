/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/visarlabs/visar/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.ContentItem{},
		&models.Video{},
		&models.RotationPolicy{},
		&models.Schedule{},
		&models.RotationState{},
		&models.WebhookTarget{},
		&models.WebhookLog{},
	); err != nil {
		return err
	}

	if err := normalizeLegacyStrategies(database); err != nil {
		return err
	}

	return nil
}

// normalizeLegacyStrategies rewrites strategy names written by earlier
// releases to their current spelling so the engine never sees them.
func normalizeLegacyStrategies(database *gorm.DB) error {
	renames := map[string]string{
		"fixed":         string(models.StrategyNone),
		"daily":         string(models.StrategyCyclic),
		"random_daily":  string(models.StrategyRandom),
		"date_specific": string(models.StrategyDateRule),
	}
	for old, current := range renames {
		if err := database.Exec(
			"UPDATE rotation_policies SET strategy = ? WHERE LOWER(TRIM(strategy)) = ?",
			current, old,
		).Error; err != nil {
			return fmt.Errorf("normalize legacy strategy %q: %w", old, err)
		}
	}
	return nil
}
