package main

import (
	"fmt"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/platform"
	"github.com/veilworks/rite/internal/platform/discord"
	"github.com/veilworks/rite/internal/platform/slack"
)

// adapterFactory builds the platform adapter a tenant's config calls for.
// Used by the orchestrator's adapter pool and the digest scheduler.
func adapterFactory(cfg *models.PlatformConfig) (platform.Adapter, error) {
	switch cfg.Platform {
	case "discord":
		return discord.New(discord.AdapterOpts{
			BotToken: cfg.BotToken,
			GuildID:  cfg.GuildID,
		})
	case "slack":
		return slack.New(slack.AdapterOpts{
			BotToken: cfg.BotToken,
		})
	default:
		return nil, fmt.Errorf("unsupported platform %q for tenant %s", cfg.Platform, cfg.TenantID)
	}
}
