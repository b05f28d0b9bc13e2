package dashboard

import (
	"time"

	"github.com/veilworks/rite/internal/models"
	"gorm.io/gorm"
)

// TenantRow holds tenant data for display, with release counts.
type TenantRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Active   bool   `json:"active"`
	Releases int    `json:"releases"`
}

// TenantSummary returns all tenants with their release counts.
func TenantSummary(db *gorm.DB) ([]TenantRow, error) {
	var tenants []models.Tenant
	if err := db.Order("slug ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}

	rows := make([]TenantRow, len(tenants))
	for i, t := range tenants {
		var count int64
		if err := db.Model(&models.ReleaseInstance{}).Where("tenant_id = ?", t.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		rows[i] = TenantRow{
			ID:       t.ID,
			Name:     t.Name,
			Slug:     t.Slug,
			Active:   t.Active,
			Releases: int(count),
		}
	}
	return rows, nil
}

// TransitionRow holds one audit row joined with its release key.
type TransitionRow struct {
	ReleaseID  string    `json:"release_id"`
	ReleaseKey string    `json:"release_key"`
	FromStage  string    `json:"from_stage"`
	ToStage    string    `json:"to_stage"`
	Reason     string    `json:"reason"`
	Degraded   string    `json:"degraded,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecentTransitions returns the newest transitions across all releases,
// oldest first within the window.
func RecentTransitions(db *gorm.DB, limit int) ([]TransitionRow, error) {
	var rows []TransitionRow
	if err := db.Model(&models.StateTransition{}).
		Select("state_transitions.release_id, release_instances.`key` as release_key, state_transitions.from_stage, state_transitions.to_stage, state_transitions.reason, state_transitions.degraded, state_transitions.occurred_at").
		Joins("JOIN release_instances ON release_instances.id = state_transitions.release_id").
		Order("state_transitions.occurred_at DESC, state_transitions.id DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	// Present oldest first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
