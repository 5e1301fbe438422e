/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// WebhookTarget is an external endpoint that receives rotation and
// expiry events.
type WebhookTarget struct {
	ID     string `gorm:"type:uuid;primaryKey"`
	Name   string
	URL    string `gorm:"not null"`
	Secret string
	// Events is a comma separated list of subscribed event types.
	// Empty means all events.
	Events    string
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookLog records one delivery attempt.
type WebhookLog struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	TargetID   string `gorm:"type:uuid;index"`
	Event      string
	StatusCode int
	Error      string `gorm:"type:text"`
	CreatedAt  time.Time
}
