package models

import "time"

// ContentItem is the unit served to an AR viewer: one image marker plus
// one or more candidate videos.
type ContentItem struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Title     string `gorm:"index"`
	MarkerKey string

	// RotationCounter increments on every successful rotation advance.
	// Mutated only by the rotation engine.
	RotationCounter int64

	// SubscriptionEnd, when set, is the instant after which the item as
	// a whole stops being served.
	SubscriptionEnd        *time.Time
	NotifyBeforeExpiryDays int `gorm:"not null;default:7"`

	Policy *RotationPolicy `gorm:"foreignKey:ContentItemID"`
	Videos []Video         `gorm:"foreignKey:ContentItemID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is a candidate asset belonging to a content item.
type Video struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	ContentItemID string `gorm:"type:uuid;index"`
	Title         string
	StorageKey    string

	IsActive  bool `gorm:"not null;default:true"`
	IsDefault bool

	RotationOrder  int
	RotationWeight int `gorm:"not null;default:1"`

	// Optional availability window. A video with no window is eligible
	// at all times, subject to the other checks.
	WindowStart *time.Time
	WindowEnd   *time.Time

	// After SubscriptionEnd the video is never eligible.
	SubscriptionEnd        *time.Time
	NotifyBeforeExpiryDays int `gorm:"not null;default:7"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Weight returns the sampling weight for weighted-random draws, never
// below one.
func (v Video) Weight() int {
	if v.RotationWeight < 1 {
		return 1
	}
	return v.RotationWeight
}

// Expired reports whether the video's subscription ended at or before now.
func (v Video) Expired(now time.Time) bool {
	return v.SubscriptionEnd != nil && !v.SubscriptionEnd.After(now)
}

// ScheduleStatus enumerates explicit schedule states.
type ScheduleStatus string

const (
	ScheduleActive   ScheduleStatus = "active"
	ScheduleInactive ScheduleStatus = "inactive"
	SchedulePlanned  ScheduleStatus = "planned"
)

// Schedule is a manually defined calendar window for a video. When one
// or more schedules reference a video, at least one active schedule must
// cover the current instant for the video to be eligible.
type Schedule struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	VideoID     string         `gorm:"type:uuid;index"`
	Status      ScheduleStatus `gorm:"type:varchar(16);not null;default:'planned'"`
	StartsAt    time.Time
	EndsAt      time.Time
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Covers reports whether the schedule is active and now falls within
// [StartsAt, EndsAt).
func (s Schedule) Covers(now time.Time) bool {
	return s.Status == ScheduleActive && !now.Before(s.StartsAt) && now.Before(s.EndsAt)
}

// DrawRecord is one entry in the rolling random-draw history.
type DrawRecord struct {
	VideoID string    `json:"video_id"`
	At      time.Time `json:"at"`
}

// RotationState is the persisted, mutable progress of a rotation policy
// for one content item. Mutated exclusively through compare-and-swap
// updates keyed by Version.
type RotationState struct {
	ContentItemID  string `gorm:"type:uuid;primaryKey"`
	CurrentIndex   int
	CurrentVideoID string `gorm:"type:uuid"`
	NextChangeAt   time.Time
	LastChangedAt  time.Time
	RandomSeed     int64
	History        []DrawRecord `gorm:"type:jsonb;serializer:json"`
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecentDraws returns the set of video ids drawn at or after cutoff.
func (s RotationState) RecentDraws(cutoff time.Time) map[string]struct{} {
	out := make(map[string]struct{}, len(s.History))
	for _, rec := range s.History {
		if !rec.At.Before(cutoff) {
			out[rec.VideoID] = struct{}{}
		}
	}
	return out
}

// PruneHistory drops draw records older than cutoff.
func (s *RotationState) PruneHistory(cutoff time.Time) {
	kept := s.History[:0]
	for _, rec := range s.History {
		if !rec.At.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	s.History = kept
}
