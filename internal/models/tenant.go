package models

import "time"

// Tenant is an independent client whose releases Rite coordinates.
type Tenant struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"not null"`
	Slug      string `gorm:"size:64;uniqueIndex"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Platform  *PlatformConfig        `gorm:"foreignKey:TenantID"`
	Templates []ReleaseCycleTemplate `gorm:"foreignKey:TenantID"`
}
