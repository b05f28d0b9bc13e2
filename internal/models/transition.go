package models

import "time"

// StateTransition is an append-only audit row written once per successful
// stage change. ChannelsOpened/ChannelsLocked are comma-joined platform
// channel IDs and may be partial or empty when automation degraded; Degraded
// records why. Rows are never updated or deleted.
type StateTransition struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ReleaseID string `gorm:"size:32;index"`
	FromStage string `gorm:"size:32"`
	ToStage   string `gorm:"size:32"`
	Reason    string `gorm:"size:32;default:Manual"`
	Notes     string `gorm:"type:text"`

	ChannelsOpened string `gorm:"type:text"`
	ChannelsLocked string `gorm:"type:text"`
	Degraded       string `gorm:"type:text"`

	OccurredAt time.Time `gorm:"index"`
}
