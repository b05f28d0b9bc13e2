package models

import "time"

// ReleaseCycleTemplate defines the repeatable stage sequence for a tenant.
// Once releases are instantiated against it, the sequence is append-only.
type ReleaseCycleTemplate struct {
	ID       string `gorm:"primaryKey;size:32"`
	TenantID string `gorm:"size:32;index"`
	Name     string `gorm:"not null"`
	Active   bool   `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Stages []StageTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
}

// StageTemplate is one ordered stage definition inside a cycle template.
type StageTemplate struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TemplateID    string `gorm:"size:32;index:idx_tpl_stage,unique"`
	Name          string `gorm:"size:32;index:idx_tpl_stage,unique"`
	Type          string `gorm:"size:32"` // e.g. "Pre-Artifact", "Process", "Primary Release", "Reflection"
	Visibility    string `gorm:"size:8"`  // L0..L3
	DisplayOrder  int
	DurationHours int
	ReadOnly      bool `gorm:"default:false"`

	CreatedAt time.Time
}
