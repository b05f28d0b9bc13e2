// Package tenant manages tenants and their platform configuration,
// including the channel directory that maps logical purposes to concrete
// platform channels.
package tenant

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/veilworks/rite/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a tenant.
type CreateOpts struct {
	Name string
	Slug string
}

// PlatformOpts holds a tenant's platform connection settings.
type PlatformOpts struct {
	Platform string // "discord" or "slack"
	GuildID  string
	BotToken string
}

// ChannelOpts holds one channel-directory entry.
type ChannelOpts struct {
	Purpose    string
	ChannelID  string
	Name       string
	Visibility string
	ReadOnly   bool
}

// GenerateID creates a unique tenant ID in ten-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tenant: generate ID: %w", err)
	}
	return "ten-" + hex.EncodeToString(b)[:5], nil
}

// Create registers a tenant with an auto-generated ID.
func Create(db *gorm.DB, opts CreateOpts) (*models.Tenant, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("tenant: name is required")
	}
	if opts.Slug == "" {
		return nil, fmt.Errorf("tenant: slug is required")
	}

	var count int64
	if err := db.Model(&models.Tenant{}).Where("slug = ?", opts.Slug).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("tenant: check slug: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("tenant: slug %q already exists", opts.Slug)
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	t := models.Tenant{
		ID:     id,
		Name:   opts.Name,
		Slug:   opts.Slug,
		Active: true,
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("tenant: create %q: %w", opts.Slug, err)
	}
	return &t, nil
}

// GetBySlug retrieves a tenant by slug, preloading its platform config and
// channel directory.
func GetBySlug(db *gorm.DB, slug string) (*models.Tenant, error) {
	var t models.Tenant
	if err := db.Preload("Platform.Channels").Where("slug = ?", slug).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant: not found: %s", slug)
		}
		return nil, fmt.Errorf("tenant: get %s: %w", slug, err)
	}
	return &t, nil
}

// List returns all tenants ordered by slug.
func List(db *gorm.DB) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := db.Order("slug ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("tenant: list: %w", err)
	}
	return tenants, nil
}

// SetPlatform creates or replaces a tenant's platform configuration. The
// channel directory survives a token or guild change.
func SetPlatform(db *gorm.DB, tenantID string, opts PlatformOpts) (*models.PlatformConfig, error) {
	if opts.Platform != "discord" && opts.Platform != "slack" {
		return nil, fmt.Errorf("tenant: unsupported platform %q", opts.Platform)
	}
	if opts.BotToken == "" {
		return nil, fmt.Errorf("tenant: bot token is required")
	}

	var cfg models.PlatformConfig
	err := db.Where("tenant_id = ?", tenantID).First(&cfg).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cfg = models.PlatformConfig{
			TenantID: tenantID,
			Platform: opts.Platform,
			GuildID:  opts.GuildID,
			BotToken: opts.BotToken,
			Active:   true,
		}
		if err := db.Create(&cfg).Error; err != nil {
			return nil, fmt.Errorf("tenant: create platform config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("tenant: load platform config: %w", err)
	default:
		updates := map[string]interface{}{
			"platform":  opts.Platform,
			"guild_id":  opts.GuildID,
			"bot_token": opts.BotToken,
			"active":    true,
		}
		if err := db.Model(&cfg).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("tenant: update platform config: %w", err)
		}
	}
	return &cfg, nil
}

// AddChannel registers a channel-directory entry. Purpose is unique per
// platform config; re-adding a purpose updates the entry in place.
func AddChannel(db *gorm.DB, tenantID string, opts ChannelOpts) (*models.PlatformChannel, error) {
	if opts.Purpose == "" {
		return nil, fmt.Errorf("tenant: channel purpose is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("tenant: channel ID is required")
	}

	var cfg models.PlatformConfig
	if err := db.Where("tenant_id = ?", tenantID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant: %s has no platform config", tenantID)
		}
		return nil, fmt.Errorf("tenant: load platform config: %w", err)
	}

	var ch models.PlatformChannel
	err := db.Where("platform_config_id = ? AND purpose = ?", cfg.ID, opts.Purpose).First(&ch).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ch = models.PlatformChannel{
			PlatformConfigID: cfg.ID,
			Purpose:          opts.Purpose,
			ChannelID:        opts.ChannelID,
			Name:             opts.Name,
			Visibility:       opts.Visibility,
			ReadOnly:         opts.ReadOnly,
		}
		if err := db.Create(&ch).Error; err != nil {
			return nil, fmt.Errorf("tenant: add channel %q: %w", opts.Purpose, err)
		}
	case err != nil:
		return nil, fmt.Errorf("tenant: load channel %q: %w", opts.Purpose, err)
	default:
		updates := map[string]interface{}{
			"channel_id": opts.ChannelID,
			"name":       opts.Name,
			"visibility": opts.Visibility,
			"read_only":  opts.ReadOnly,
		}
		if err := db.Model(&ch).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("tenant: update channel %q: %w", opts.Purpose, err)
		}
	}
	return &ch, nil
}

// ListChannels returns a tenant's channel directory ordered by purpose.
func ListChannels(db *gorm.DB, tenantID string) ([]models.PlatformChannel, error) {
	var cfg models.PlatformConfig
	if err := db.Where("tenant_id = ?", tenantID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("tenant: load platform config: %w", err)
	}

	var channels []models.PlatformChannel
	if err := db.Where("platform_config_id = ?", cfg.ID).Order("purpose ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("tenant: list channels: %w", err)
	}
	return channels, nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for range 2 {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Tenant{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("tenant: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("tenant: failed to generate unique ID after retries")
}
