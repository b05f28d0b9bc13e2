package models

import "time"

// PlatformConfig holds a tenant's community-platform connection settings.
// One row per tenant; the bot token is scoped to that tenant's guild.
type PlatformConfig struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	TenantID string `gorm:"size:32;uniqueIndex"`
	Platform string `gorm:"size:16;default:discord"`
	GuildID  string `gorm:"size:32"`
	BotToken string `gorm:"size:128"`
	Active   bool   `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Channels []PlatformChannel `gorm:"foreignKey:PlatformConfigID;constraint:OnDelete:CASCADE"`
}

// PlatformChannel maps a logical channel purpose to a concrete platform
// channel ID. Ritual mappings reference channels by purpose, never by raw ID.
type PlatformChannel struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	PlatformConfigID uint   `gorm:"index:idx_channel_purpose,unique"`
	Purpose          string `gorm:"size:32;index:idx_channel_purpose,unique"`
	ChannelID        string `gorm:"size:32;not null"`
	Name             string `gorm:"size:64"`
	Visibility       string `gorm:"size:8"`
	ReadOnly         bool   `gorm:"default:false"`

	CreatedAt time.Time
}
