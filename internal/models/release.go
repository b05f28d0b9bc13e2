package models

import "time"

// ReleaseInstance is one concrete, in-progress release of a content unit.
// Key is unique per tenant (e.g. "S1E1", "PILOT").
type ReleaseInstance struct {
	ID          string `gorm:"primaryKey;size:32"`
	TenantID    string `gorm:"size:32;index:idx_release_tenant_key,unique"`
	Key         string `gorm:"size:32;index:idx_release_tenant_key,unique"`
	TemplateID  string `gorm:"size:32;index"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`

	CurrentStage string `gorm:"size:32;default:Draft;index"`
	Status       string `gorm:"size:16;default:Draft"` // Draft, Scheduled, Archived

	ScheduledStartAt *time.Time
	StartedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Executions  []StageExecution  `gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE"`
	Transitions []StateTransition `gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE"`
}

// StageExecution tracks one stage of one release. Created Pending for every
// template stage at release creation; only the orchestrator mutates it.
type StageExecution struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ReleaseID string `gorm:"size:32;index:idx_exec_release_stage,unique"`
	StageName string `gorm:"size:32;index:idx_exec_release_stage,unique"`
	Status    string `gorm:"size:16;default:Pending"` // Pending, Active, Completed, Skipped

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
