package models

import "time"

// Gateway is a radio relay addressable over MQTT by its MAC. The pipeline
// needs only its protocol identifier and online status; liveness is driven
// by heartbeat messages, not by the pipeline.
type Gateway struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	GatewayMAC string     `gorm:"size:100;not null;uniqueIndex:uk_gateways_gateway_mac" json:"gateway_mac"`
	StoreID    uint       `gorm:"not null;index:idx_gateways_store_id" json:"store_id"`
	Store      *Store     `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	IsOnline   *bool      `gorm:"default:false;index:idx_gateways_is_online" json:"is_online"`
	IsActive   *bool      `gorm:"default:true" json:"is_active"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Gateway) TableName() string { return "gateways" }

// GatewayFilter represents filter criteria for gateway queries
type GatewayFilter struct {
	ID         *uint
	GatewayMAC *string
	StoreID    *uint
	IsOnline   *bool
	IsActive   *bool
}
