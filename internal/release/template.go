package release

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/stage"
	"gorm.io/gorm"
)

// TemplateOpts holds parameters for creating a custom release cycle template.
// Stages must be known stage names with no duplicates, starting at Draft and
// ending at Archived.
type TemplateOpts struct {
	Name   string
	Stages []string
}

// GenerateTemplateID creates a unique template ID in tpl-xxxxx format.
func GenerateTemplateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("release: generate template ID: %w", err)
	}
	return "tpl-" + hex.EncodeToString(b)[:5], nil
}

// CreateTemplate defines a custom stage sequence for a tenant. The sequence
// is validated as a buildable graph before anything is written.
func CreateTemplate(db *gorm.DB, tenantSlug string, opts TemplateOpts) (*models.ReleaseCycleTemplate, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("release: template name is required")
	}
	if len(opts.Stages) == 0 {
		return nil, fmt.Errorf("release: template needs at least one stage")
	}

	var tenant models.Tenant
	if err := db.Where("slug = ? AND active = ?", tenantSlug, true).First(&tenant).Error; err != nil {
		return nil, fmt.Errorf("release: %s: %w", tenantSlug, ErrTenantNotFound)
	}

	sequence := make([]stage.Stage, 0, len(opts.Stages))
	for _, name := range opts.Stages {
		s, err := stage.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("release: template %q: %w", opts.Name, err)
		}
		sequence = append(sequence, s)
	}
	if _, err := stage.Build(sequence); err != nil {
		return nil, fmt.Errorf("release: template %q: %w", opts.Name, err)
	}

	id, err := GenerateTemplateID()
	if err != nil {
		return nil, err
	}

	tpl := models.ReleaseCycleTemplate{
		ID:       id,
		TenantID: tenant.ID,
		Name:     opts.Name,
		Active:   true,
	}
	for i, s := range sequence {
		tpl.Stages = append(tpl.Stages, models.StageTemplate{
			Name:         s.String(),
			Type:         s.String(),
			DisplayOrder: i,
		})
	}
	if err := db.Create(&tpl).Error; err != nil {
		return nil, fmt.Errorf("release: create template %q: %w", opts.Name, err)
	}
	return &tpl, nil
}

// ListTemplates returns a tenant's templates with their stages, ordered by
// creation time.
func ListTemplates(db *gorm.DB, tenantSlug string) ([]models.ReleaseCycleTemplate, error) {
	var tenant models.Tenant
	if err := db.Where("slug = ?", tenantSlug).First(&tenant).Error; err != nil {
		return nil, fmt.Errorf("release: %s: %w", tenantSlug, ErrTenantNotFound)
	}

	var templates []models.ReleaseCycleTemplate
	err := db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("tenant_id = ?", tenant.ID).Order("created_at ASC").Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("release: list templates: %w", err)
	}
	return templates, nil
}
