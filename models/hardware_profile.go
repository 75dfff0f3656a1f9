package models

import "time"

// ColorScheme enumerates the color capability classes of ESL display panels
type ColorScheme string

const (
	// ColorSchemeBW is monochrome black/white
	ColorSchemeBW ColorScheme = "BW"
	// ColorSchemeBWR adds a red accent channel
	ColorSchemeBWR ColorScheme = "BWR"
	// ColorSchemeBWRY adds red and yellow accent channels
	ColorSchemeBWRY ColorScheme = "BWRY"
)

// Valid checks if the color scheme is a known capability class
func (s ColorScheme) Valid() bool {
	switch s {
	case ColorSchemeBW, ColorSchemeBWR, ColorSchemeBWRY:
		return true
	default:
		return false
	}
}

// HasRed reports whether the panel can render a red accent
func (s ColorScheme) HasRed() bool { return s == ColorSchemeBWR || s == ColorSchemeBWRY }

// HasYellow reports whether the panel can render a yellow accent
func (s ColorScheme) HasYellow() bool { return s == ColorSchemeBWRY }

// HardwareProfile is a catalog entry describing one display model: pixel
// dimensions and color capability. Immutable in practice and shared by many
// tags; the pipeline only ever reads it.
type HardwareProfile struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	ModelNumber     string      `gorm:"size:100;not null;uniqueIndex:uk_hardware_profiles_model_number" json:"model_number"`
	WidthPx         int         `gorm:"not null" json:"width_px"`
	HeightPx        int         `gorm:"not null" json:"height_px"`
	ColorScheme     ColorScheme `gorm:"size:10;not null;default:'BW'" json:"color_scheme"`
	DisplaySizeInch float64     `gorm:"type:numeric(4,2)" json:"display_size_inch"`
	CreatedAt       time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (HardwareProfile) TableName() string { return "hardware_profiles" }

// HardwareProfileFilter represents filter criteria for hardware profile queries
type HardwareProfileFilter struct {
	ID          *uint
	ModelNumber *string
	ColorScheme *ColorScheme
}
