package models

import "time"

// Product is one SKU of a store. A product change is the primary trigger for
// re-rendering every tag paired with it.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StoreID     uint      `gorm:"not null;uniqueIndex:uk_products_sku_store;index:idx_products_store_id" json:"store_id"`
	Store       *Store    `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	SKU         string    `gorm:"size:50;not null;uniqueIndex:uk_products_sku_store" json:"sku"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Price       float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	IsOnSpecial *bool     `gorm:"default:false" json:"is_on_special"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// ProductFilter represents filter criteria for product queries
type ProductFilter struct {
	ID          *uint
	StoreID     *uint
	SKU         *string
	IsOnSpecial *bool
}
