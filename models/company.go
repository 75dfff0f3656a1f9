// Package models defines the persistent entities of the ESL fleet and their filters
package models

import "time"

// Company is the owning entity of one or more stores. It exists so the
// store-match invariant between products and gateways is expressible; the
// pipeline itself never queries it directly.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  *bool     `gorm:"default:true;index:idx_companies_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

// CompanyFilter represents filter criteria for company queries
type CompanyFilter struct {
	ID       *uint
	Name     *string
	IsActive *bool
}
