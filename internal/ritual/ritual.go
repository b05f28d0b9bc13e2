// Package ritual manages the ritual mapping registry: per-tenant,
// per-template automation configuration for each stage of a release cycle.
package ritual

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/stage"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a ritual mapping.
type CreateOpts struct {
	TenantID            string
	TemplateID          string
	StageType           string
	ChannelPurpose      string
	Visibility          string
	RequiredRoles       string
	ReadOnly            bool
	AutoLock            bool
	AutoUnlock          bool
	RateLimitSeconds    int
	AnnouncementMessage string
	ClosingMessage      string
	Anonymous           bool
	SkipAllowed         bool
	DurationHours       int
}

// GenerateID creates a unique mapping ID in map-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ritual: generate ID: %w", err)
	}
	return "map-" + hex.EncodeToString(b)[:5], nil
}

// Create registers a ritual mapping with an auto-generated ID. At most one
// active mapping may exist per (tenant, template, stage type).
func Create(db *gorm.DB, opts CreateOpts) (*models.RitualMapping, error) {
	if opts.TenantID == "" {
		return nil, fmt.Errorf("ritual: tenant is required")
	}
	if opts.TemplateID == "" {
		return nil, fmt.Errorf("ritual: template is required")
	}
	if _, err := stage.Parse(opts.StageType); err != nil {
		return nil, fmt.Errorf("ritual: %w", err)
	}
	if opts.RateLimitSeconds < 0 {
		return nil, fmt.Errorf("ritual: rate limit must be non-negative, got %d", opts.RateLimitSeconds)
	}

	var count int64
	if err := db.Model(&models.RitualMapping{}).
		Where("tenant_id = ? AND template_id = ? AND stage_type = ?",
			opts.TenantID, opts.TemplateID, opts.StageType).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("ritual: check existing mapping: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("ritual: mapping already exists for stage %q in template %s", opts.StageType, opts.TemplateID)
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	mapping := models.RitualMapping{
		ID:                  id,
		TenantID:            opts.TenantID,
		TemplateID:          opts.TemplateID,
		StageType:           opts.StageType,
		ChannelPurpose:      opts.ChannelPurpose,
		Visibility:          opts.Visibility,
		RequiredRoles:       opts.RequiredRoles,
		ReadOnly:            opts.ReadOnly,
		AutoLock:            opts.AutoLock,
		AutoUnlock:          opts.AutoUnlock,
		RateLimitSeconds:    opts.RateLimitSeconds,
		AnnouncementMessage: opts.AnnouncementMessage,
		ClosingMessage:      opts.ClosingMessage,
		Anonymous:           opts.Anonymous,
		SkipAllowed:         opts.SkipAllowed,
		DurationHours:       opts.DurationHours,
		Active:              true,
	}

	if err := db.Create(&mapping).Error; err != nil {
		return nil, fmt.Errorf("ritual: create mapping: %w", err)
	}
	return &mapping, nil
}

// Get retrieves a mapping by ID.
func Get(db *gorm.DB, id string) (*models.RitualMapping, error) {
	var mapping models.RitualMapping
	if err := db.Where("id = ?", id).First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ritual: mapping not found: %s", id)
		}
		return nil, fmt.Errorf("ritual: get %s: %w", id, err)
	}
	return &mapping, nil
}

// Resolve returns the active mapping for a stage of a tenant's template, or
// nil when none is configured. Absence is not an error: an unmapped stage
// simply transitions without automation.
func Resolve(db *gorm.DB, tenantID, templateID, stageType string) (*models.RitualMapping, error) {
	var mapping models.RitualMapping
	err := db.Where("tenant_id = ? AND template_id = ? AND stage_type = ? AND active = ?",
		tenantID, templateID, stageType, true).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ritual: resolve mapping for stage %q: %w", stageType, err)
	}
	return &mapping, nil
}

// List returns a tenant's mappings ordered by template then stage type.
// templateID narrows to one template when non-empty.
func List(db *gorm.DB, tenantID, templateID string) ([]models.RitualMapping, error) {
	q := db.Where("tenant_id = ?", tenantID)
	if templateID != "" {
		q = q.Where("template_id = ?", templateID)
	}

	var mappings []models.RitualMapping
	if err := q.Order("template_id ASC, stage_type ASC").Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("ritual: list mappings: %w", err)
	}
	return mappings, nil
}

// Update modifies mapping fields. The scope key (tenant, template, stage
// type) is immutable; attempts to change it are rejected.
func Update(db *gorm.DB, id string, updates map[string]interface{}) error {
	for _, key := range []string{"tenant_id", "template_id", "stage_type"} {
		if _, ok := updates[key]; ok {
			return fmt.Errorf("ritual: %s is immutable", key)
		}
	}

	var mapping models.RitualMapping
	if err := db.Where("id = ?", id).First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ritual: mapping not found: %s", id)
		}
		return fmt.Errorf("ritual: get %s for update: %w", id, err)
	}

	if err := db.Model(&models.RitualMapping{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("ritual: update %s: %w", id, err)
	}
	return nil
}

// Deactivate marks a mapping inactive so Resolve no longer returns it. The
// row is kept for audit context.
func Deactivate(db *gorm.DB, id string) error {
	return Update(db, id, map[string]interface{}{"active": false})
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for range 2 {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.RitualMapping{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("ritual: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("ritual: failed to generate unique ID after retries")
}
