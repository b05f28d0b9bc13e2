// Package digest builds and posts daily summaries of release stage activity.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/veilworks/rite/internal/models"
	"github.com/veilworks/rite/internal/stage"
	"gorm.io/gorm"
)

// Move is one stage transition in a digest period.
type Move struct {
	ReleaseKey string
	FromStage  string
	ToStage    string
	Degraded   bool
	OccurredAt time.Time
}

// Report holds a tenant's release activity for one period.
type Report struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Moves       []Move
	Archived    int
	Degraded    int
}

// Empty reports whether the period had no activity. Empty reports are
// suppressed, not posted.
func (r *Report) Empty() bool {
	return len(r.Moves) == 0
}

// BuildDaily queries the last 24 hours of a tenant's transitions.
func BuildDaily(db *gorm.DB, tenantID string) (*Report, error) {
	now := time.Now().UTC()
	return Build(db, tenantID, now.Add(-24*time.Hour), now)
}

// Build queries a tenant's transitions within [since, until).
func Build(db *gorm.DB, tenantID string, since, until time.Time) (*Report, error) {
	report := &Report{
		PeriodStart: since,
		PeriodEnd:   until,
	}

	type row struct {
		Key        string
		FromStage  string
		ToStage    string
		Degraded   string
		OccurredAt time.Time
	}
	var rows []row
	if err := db.Model(&models.StateTransition{}).
		Select("release_instances.`key`, state_transitions.from_stage, state_transitions.to_stage, state_transitions.degraded, state_transitions.occurred_at").
		Joins("JOIN release_instances ON release_instances.id = state_transitions.release_id").
		Where("release_instances.tenant_id = ?", tenantID).
		Where("state_transitions.occurred_at >= ? AND state_transitions.occurred_at < ?", since, until).
		Order("state_transitions.occurred_at ASC, state_transitions.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("digest: query transitions: %w", err)
	}

	for _, r := range rows {
		move := Move{
			ReleaseKey: r.Key,
			FromStage:  r.FromStage,
			ToStage:    r.ToStage,
			Degraded:   r.Degraded != "",
			OccurredAt: r.OccurredAt,
		}
		report.Moves = append(report.Moves, move)
		if move.ToStage == stage.Archive.String() || move.ToStage == stage.Archived.String() {
			report.Archived++
		}
		if move.Degraded {
			report.Degraded++
		}
	}
	return report, nil
}

// Format renders the report as a plain-text digest message.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Release activity for %s\n", r.PeriodEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "%d stage transition(s)", len(r.Moves))
	if r.Archived > 0 {
		fmt.Fprintf(&b, ", %d archived", r.Archived)
	}
	if r.Degraded > 0 {
		fmt.Fprintf(&b, ", %d with degraded automation", r.Degraded)
	}
	b.WriteString("\n")
	for _, m := range r.Moves {
		fmt.Fprintf(&b, "• %s: %s → %s", m.ReleaseKey, m.FromStage, m.ToStage)
		if m.Degraded {
			b.WriteString(" (degraded)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
