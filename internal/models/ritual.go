package models

import "time"

// RitualMapping binds one stage of one tenant's cycle template to the
// automation Rite performs on the community platform when a release enters
// or leaves that stage. At most one active mapping per (tenant, template,
// stage type); absence means the stage transitions with no automation.
type RitualMapping struct {
	ID         string `gorm:"primaryKey;size:32"`
	TenantID   string `gorm:"size:32;index:idx_ritual_scope,unique"`
	TemplateID string `gorm:"size:32;index:idx_ritual_scope,unique"`
	StageType  string `gorm:"size:32;index:idx_ritual_scope,unique"`

	ChannelPurpose string `gorm:"size:32"`
	Visibility     string `gorm:"size:8"`
	RequiredRoles  string `gorm:"type:json"`
	ReadOnly       bool   `gorm:"default:false"`

	AutoLock         bool `gorm:"default:false"`
	AutoUnlock       bool `gorm:"default:false"`
	RateLimitSeconds int  `gorm:"default:0"`

	AnnouncementMessage string `gorm:"type:text"`
	ClosingMessage      string `gorm:"type:text"`

	Anonymous     bool `gorm:"default:false"`
	SkipAllowed   bool `gorm:"default:false"`
	DurationHours int
	Active        bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
