// Package release manages release instances and orchestrates their stage
// transitions.
package release

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/stage"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a release instance.
type CreateOpts struct {
	Key              string // tenant-unique release key, e.g. "S1E1"
	Title            string
	Description      string
	TemplateID       string // optional; defaults to the tenant's active template
	ScheduledStartAt *time.Time
}

// ListFilters narrows List results. Zero values mean no filter.
type ListFilters struct {
	TenantID string
	Status   string
	Stage    string
}

// GenerateID creates a unique release ID in rel-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("release: generate ID: %w", err)
	}
	return "rel-" + hex.EncodeToString(b)[:5], nil
}

// Create instantiates a release for a tenant at Draft, with one Pending
// stage execution per template stage.
func Create(db *gorm.DB, tenantSlug string, opts CreateOpts) (*models.ReleaseInstance, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("release: key is required")
	}
	if opts.Title == "" {
		return nil, fmt.Errorf("release: title is required")
	}

	var tenant models.Tenant
	if err := db.Where("slug = ? AND active = ?", tenantSlug, true).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release: %q: %w", tenantSlug, ErrTenantNotFound)
		}
		return nil, fmt.Errorf("release: lookup tenant %q: %w", tenantSlug, err)
	}

	var tpl models.ReleaseCycleTemplate
	tplQuery := db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("tenant_id = ?", tenant.ID)
	if opts.TemplateID != "" {
		tplQuery = tplQuery.Where("id = ?", opts.TemplateID)
	} else {
		tplQuery = tplQuery.Where("active = ?", true)
	}
	if err := tplQuery.First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release: tenant %s: %w", tenant.ID, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("release: lookup template: %w", err)
	}
	if len(tpl.Stages) == 0 {
		return nil, fmt.Errorf("release: template %s has no stages: %w", tpl.ID, ErrTemplateNotFound)
	}

	// The template's sequence must build a valid graph before any release
	// is instantiated against it.
	if _, err := templateGraph(&tpl); err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.ReleaseInstance{}).
		Where("tenant_id = ? AND `key` = ?", tenant.ID, opts.Key).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("release: check key uniqueness: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("release: key %q already exists for tenant %s", opts.Key, tenant.Slug)
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	rel := models.ReleaseInstance{
		ID:               id,
		TenantID:         tenant.ID,
		Key:              opts.Key,
		TemplateID:       tpl.ID,
		Title:            opts.Title,
		Description:      opts.Description,
		CurrentStage:     stage.Draft.String(),
		Status:           "Draft",
		ScheduledStartAt: opts.ScheduledStartAt,
	}
	for _, st := range tpl.Stages {
		rel.Executions = append(rel.Executions, models.StageExecution{
			StageName: st.Name,
			Status:    "Pending",
		})
	}

	if err := db.Create(&rel).Error; err != nil {
		return nil, fmt.Errorf("release: create %q: %w", opts.Key, err)
	}
	return &rel, nil
}

// Get retrieves a release by ID, preloading its stage executions.
func Get(db *gorm.DB, id string) (*models.ReleaseInstance, error) {
	var rel models.ReleaseInstance
	if err := db.Preload("Executions").Where("id = ?", id).First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release: %s: %w", id, ErrReleaseNotFound)
		}
		return nil, fmt.Errorf("release: get %s: %w", id, err)
	}
	return &rel, nil
}

// List returns releases matching the filters, ordered by creation time.
func List(db *gorm.DB, filters ListFilters) ([]models.ReleaseInstance, error) {
	q := db.Model(&models.ReleaseInstance{})
	if filters.TenantID != "" {
		q = q.Where("tenant_id = ?", filters.TenantID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Stage != "" {
		q = q.Where("current_stage = ?", filters.Stage)
	}

	var releases []models.ReleaseInstance
	if err := q.Order("created_at ASC").Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("release: list: %w", err)
	}
	return releases, nil
}

// History returns a release's audit trail ordered ascending by occurrence.
func History(db *gorm.DB, releaseID string) ([]models.StateTransition, error) {
	var count int64
	if err := db.Model(&models.ReleaseInstance{}).Where("id = ?", releaseID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("release: check %s: %w", releaseID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("release: %s: %w", releaseID, ErrReleaseNotFound)
	}

	var transitions []models.StateTransition
	if err := db.Where("release_id = ?", releaseID).
		Order("occurred_at ASC, id ASC").
		Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("release: history of %s: %w", releaseID, err)
	}
	return transitions, nil
}

// NextStages returns the stages a release may advance to from its current
// stage, in graph order.
func NextStages(db *gorm.DB, releaseID string) ([]stage.Stage, error) {
	rel, err := Get(db, releaseID)
	if err != nil {
		return nil, err
	}
	g, err := loadGraph(db, rel.TemplateID)
	if err != nil {
		return nil, err
	}
	return g.Next(stage.Stage(rel.CurrentStage)), nil
}

// loadGraph builds the stage graph for a template from its stored sequence.
func loadGraph(db *gorm.DB, templateID string) (stage.Graph, error) {
	var tpl models.ReleaseCycleTemplate
	if err := db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("id = ?", templateID).First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release: %s: %w", templateID, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("release: load template %s: %w", templateID, err)
	}
	return templateGraph(&tpl)
}

func templateGraph(tpl *models.ReleaseCycleTemplate) (stage.Graph, error) {
	sequence := make([]stage.Stage, 0, len(tpl.Stages))
	for _, st := range tpl.Stages {
		s, err := stage.Parse(st.Name)
		if err != nil {
			return nil, fmt.Errorf("release: template %s: %w", tpl.ID, err)
		}
		sequence = append(sequence, s)
	}
	g, err := stage.Build(sequence)
	if err != nil {
		return nil, fmt.Errorf("release: template %s: %w", tpl.ID, err)
	}
	return g, nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for range 2 {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.ReleaseInstance{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("release: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("release: failed to generate unique ID after retries")
}
