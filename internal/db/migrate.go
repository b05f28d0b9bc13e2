package db

import (
	"fmt"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/stage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.PlatformConfig{},
		&models.PlatformChannel{},
		&models.ReleaseCycleTemplate{},
		&models.StageTemplate{},
		&models.ReleaseInstance{},
		&models.StageExecution{},
		&models.RitualMapping{},
		&models.StateTransition{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// canonicalStage describes one entry of the seeded default cycle template.
type canonicalStage struct {
	name          stage.Stage
	visibility    string
	durationHours int
	readOnly      bool
}

// canonicalStages is the default release cycle seeded for a new tenant.
// Visibility levels follow the channel templates the mappings point at:
// L0 private, L1 trusted, L2 oriented, L3 public.
var canonicalStages = []canonicalStage{
	{stage.Draft, "L0", 0, false},
	{stage.Scheduled, "L0", 0, false},
	{stage.Signal, "L2", 72, true},
	{stage.Process, "L1", 48, false},
	{stage.Hold, "L0", 24, true},
	{stage.Drop, "L3", 24, true},
	{stage.Echo, "L3", 72, false},
	{stage.Fragments, "L2", 48, true},
	{stage.Interval, "L3", 72, true},
	{stage.PrivateViewing, "L1", 24, true},
	{stage.Archive, "L3", 0, true},
	{stage.Archived, "L0", 0, true},
}

// SeedTemplate upserts the canonical release cycle template for a tenant and
// returns it. Safe to run repeatedly; stage rows are upserted by
// (template, name).
func SeedTemplate(db *gorm.DB, tenantID, templateID, name string) (*models.ReleaseCycleTemplate, error) {
	tpl := models.ReleaseCycleTemplate{
		ID:       templateID,
		TenantID: tenantID,
		Name:     name,
		Active:   true,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "active"}),
	}).Create(&tpl)
	if result.Error != nil {
		return nil, fmt.Errorf("db: seed template %q: %w", name, result.Error)
	}

	for i, cs := range canonicalStages {
		st := models.StageTemplate{
			TemplateID:    templateID,
			Name:          cs.name.String(),
			Type:          cs.name.String(),
			Visibility:    cs.visibility,
			DisplayOrder:  i,
			DurationHours: cs.durationHours,
			ReadOnly:      cs.readOnly,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "visibility", "display_order", "duration_hours", "read_only"}),
		}).Create(&st)
		if result.Error != nil {
			return nil, fmt.Errorf("db: seed stage %q: %w", cs.name, result.Error)
		}
	}

	if err := db.Preload("Stages").Where("id = ?", templateID).First(&tpl).Error; err != nil {
		return nil, fmt.Errorf("db: reload template %q: %w", templateID, err)
	}
	return &tpl, nil
}

// defaultRitual holds the seeded automation defaults for one stage.
type defaultRitual struct {
	stage        stage.Stage
	purpose      string
	visibility   string
	roles        string
	readOnly     bool
	autoLock     bool
	autoUnlock   bool
	rateLimit    int
	announcement string
	closing      string
}

// defaultRituals maps canonical stages to their default automation. Stages
// absent here (Draft, Scheduled, Hold, Archived) transition silently.
var defaultRituals = []defaultRitual{
	{
		stage:        stage.Signal,
		purpose:      "signal",
		visibility:   "L2",
		readOnly:     true,
		autoUnlock:   true,
		announcement: "A signal has gone out. Something is coming.",
	},
	{
		stage:      stage.Process,
		purpose:    "process",
		visibility: "L1",
		roles:      `["CoreTeam","Witness"]`,
		autoLock:   true,
		autoUnlock: true,
		rateLimit:  15,
		closing:    "The room is closing. Thank you for witnessing.",
	},
	{
		stage:        stage.Drop,
		purpose:      "releases",
		visibility:   "L3",
		readOnly:     true,
		autoUnlock:   true,
		announcement: "It is here.",
	},
	{
		stage:        stage.Echo,
		purpose:      "reflection",
		visibility:   "L3",
		roles:        `["Witness","Member"]`,
		autoUnlock:   true,
		rateLimit:    30,
		announcement: "The drop has landed. Reflections open now.",
	},
	{
		stage:      stage.Fragments,
		purpose:    "fragments",
		visibility: "L2",
		roles:      `["CoreTeam"]`,
		readOnly:   true,
		autoLock:   true,
	},
	{
		stage:      stage.Interval,
		purpose:    "interval",
		visibility: "L3",
		readOnly:   true,
		autoUnlock: true,
	},
	{
		stage:      stage.PrivateViewing,
		purpose:    "invitations",
		visibility: "L1",
		roles:      `["Witness"]`,
		readOnly:   true,
		autoLock:   true,
	},
	{
		stage:      stage.Archive,
		purpose:    "releases",
		visibility: "L3",
		readOnly:   true,
		autoLock:   true,
		closing:    "This cycle is complete. The archive holds what remains.",
	},
}

// SeedRitualMappings upserts the default ritual mappings for a tenant's
// template. Mapping IDs are deterministic (map-<template>-<stage>) so
// re-seeding updates in place.
func SeedRitualMappings(db *gorm.DB, tenantID, templateID string) error {
	for _, dr := range defaultRituals {
		rm := models.RitualMapping{
			ID:                  fmt.Sprintf("map-%s-%s", templateID, dr.stage),
			TenantID:            tenantID,
			TemplateID:          templateID,
			StageType:           dr.stage.String(),
			ChannelPurpose:      dr.purpose,
			Visibility:          dr.visibility,
			RequiredRoles:       dr.roles,
			ReadOnly:            dr.readOnly,
			AutoLock:            dr.autoLock,
			AutoUnlock:          dr.autoUnlock,
			RateLimitSeconds:    dr.rateLimit,
			AnnouncementMessage: dr.announcement,
			ClosingMessage:      dr.closing,
			Active:              true,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"channel_purpose", "visibility", "required_roles", "read_only", "auto_lock", "auto_unlock", "rate_limit_seconds", "announcement_message", "closing_message", "active"}),
		}).Create(&rm)
		if result.Error != nil {
			return fmt.Errorf("db: seed ritual mapping for stage %q: %w", dr.stage, result.Error)
		}
	}
	return nil
}
