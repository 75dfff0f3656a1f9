package models

import "time"

// Store is one physical retail location. Products and gateways both hang off
// a store; a tag may only be paired with a product from the same store as
// its gateway.
type Store struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index:idx_stores_company_id" json:"company_id"`
	Company      *Company  `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	LocationCode string    `gorm:"size:50" json:"location_code"`
	IsActive     *bool     `gorm:"default:true;index:idx_stores_is_active" json:"is_active"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Store) TableName() string { return "stores" }

// StoreFilter represents filter criteria for store queries
type StoreFilter struct {
	ID        *uint
	CompanyID *uint
	Name      *string
	IsActive  *bool
}
