package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrPairingStoreMismatch is returned when a tag is paired to a product from
// a store other than its gateway's.
var ErrPairingStoreMismatch = errors.New("paired product and gateway belong to different stores")

// SyncState tracks a tag's position in the render -> dispatch -> confirm
// lifecycle. No state is final: any state is re-entered at Processing by a
// new trigger, which also mints a fresh dispatch token and orphans any
// confirmation still in flight for the previous one.
type SyncState string

const (
	SyncStateIdle       SyncState = "IDLE"
	SyncStateProcessing SyncState = "PROCESSING"
	SyncStateImageReady SyncState = "IMAGE_READY"
	SyncStatePushed     SyncState = "PUSHED"
	SyncStateSuccess    SyncState = "SUCCESS"
	SyncStateGenFailed  SyncState = "GEN_FAILED"
	SyncStatePushFailed SyncState = "PUSH_FAILED"
	SyncStateFailed     SyncState = "FAILED"
)

// String returns the string representation of the state
func (s SyncState) String() string {
	return string(s)
}

// Valid checks if the state is a known lifecycle state
func (s SyncState) Valid() bool {
	switch s {
	case SyncStateIdle, SyncStateProcessing, SyncStateImageReady, SyncStatePushed,
		SyncStateSuccess, SyncStateGenFailed, SyncStatePushFailed, SyncStateFailed:
		return true
	default:
		return false
	}
}

// Tag is one physical e-ink shelf display. Sync fields are mutated by
// exactly one pipeline attempt at a time (enforced by the sync guard);
// battery and last-seen telemetry arrive from the transport layer and are
// written with field-scoped updates so they never clobber an in-flight
// state transition.
type Tag struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Serial            string           `gorm:"size:50;not null;uniqueIndex:uk_tags_serial" json:"serial"`
	GatewayID         uint             `gorm:"not null;index:idx_tags_gateway_id" json:"gateway_id"`
	Gateway           *Gateway         `gorm:"foreignKey:GatewayID" json:"gateway,omitempty"`
	HardwareProfileID *uint            `gorm:"index:idx_tags_hardware_profile_id" json:"hardware_profile_id,omitempty"`
	HardwareProfile   *HardwareProfile `gorm:"foreignKey:HardwareProfileID" json:"hardware_profile,omitempty"`
	PairedProductID   *uint            `gorm:"index:idx_tags_paired_product_id" json:"paired_product_id,omitempty"`
	PairedProduct     *Product         `gorm:"foreignKey:PairedProductID" json:"paired_product,omitempty"`

	SyncState           SyncState  `gorm:"size:20;not null;default:'IDLE';index:idx_tags_sync_state" json:"sync_state"`
	LastImageTaskID     *string    `gorm:"size:64" json:"last_image_task_id,omitempty"`
	LastImageToken      *int       `json:"last_image_token,omitempty"`
	LastImageGenSuccess *time.Time `json:"last_image_gen_success,omitempty"`
	Image               []byte     `gorm:"type:bytea" json:"-"`
	ImageFormat         string     `gorm:"size:10" json:"image_format,omitempty"`

	TemplateID   int        `gorm:"not null;default:1" json:"template_id"`
	BatteryLevel int        `gorm:"not null;default:100" json:"battery_level"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`

	Aisle    *string `gorm:"size:20" json:"aisle,omitempty"`
	Section  *string `gorm:"size:20" json:"section,omitempty"`
	ShelfRow *string `gorm:"size:20" json:"shelf_row,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null;index:idx_tags_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }

// Syncable reports whether the tag can run the full pipeline: a tag without
// a paired product or without a hardware profile resolves to IDLE/skip, not
// to an error.
func (t *Tag) Syncable() bool {
	return t.PairedProductID != nil && t.HardwareProfileID != nil
}

// ValidatePairing checks the cross-entity invariant: a paired product must
// belong to the same store as the tag's gateway.
func (t *Tag) ValidatePairing(product *Product, gateway *Gateway) error {
	if product == nil {
		return nil
	}
	if gateway == nil {
		return fmt.Errorf("tag %s has no gateway to validate pairing against", t.Serial)
	}
	if product.StoreID != gateway.StoreID {
		return fmt.Errorf("product %s belongs to store %d, gateway %s to store %d: %w",
			product.SKU, product.StoreID, gateway.GatewayMAC, gateway.StoreID, ErrPairingStoreMismatch)
	}
	return nil
}

// BeforeSave enforces the pairing invariant on every full-row write. The
// field-scoped pipeline updates never touch the pairing columns, so they
// bypass this hook by construction.
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	if t.PairedProductID == nil {
		return nil
	}
	session := tx.Session(&gorm.Session{NewDB: true})

	var product Product
	if err := session.First(&product, *t.PairedProductID).Error; err != nil {
		return fmt.Errorf("failed to load paired product %d: %w", *t.PairedProductID, err)
	}
	var gateway Gateway
	if err := session.First(&gateway, t.GatewayID).Error; err != nil {
		return fmt.Errorf("failed to load gateway %d: %w", t.GatewayID, err)
	}
	return t.ValidatePairing(&product, &gateway)
}

// TagFilter represents filter criteria for tag queries
type TagFilter struct {
	ID                *uint
	Serial            *string
	GatewayID         *uint
	StoreID           *uint
	PairedProductID   *uint
	HardwareProfileID *uint
	SyncState         *SyncState
	Syncable          *bool
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
}
