// Package render draws shelf label rasters sized exactly to a display's
// hardware profile. The engine is a pure function of its inputs: no I/O, no
// clock, and a failed render never yields a partially drawn image.
package render

import (
	"bytes"
	"fmt"

	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/utils"
	"golang.org/x/image/bmp"
)

// ImageFormat is the encoding of every rendered label
const ImageFormat = "bmp"

// renderInput is the resolved, validated input handed to a template
type renderInput struct {
	name    string
	sku     string
	dollars string
	cents   string
	promo   bool
	palette palette
}

// Engine renders label images for tags
type Engine struct {
	fonts *fontSet
}

// NewEngine parses the embedded typefaces once and returns a reusable engine
func NewEngine() (*Engine, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	return &Engine{fonts: fonts}, nil
}

// Render produces a BMP-encoded label sized exactly profile.WidthPx by
// profile.HeightPx. Deterministic for identical inputs.
func (e *Engine) Render(product *models.Product, profile *models.HardwareProfile, templateID int) ([]byte, error) {
	if product == nil {
		return nil, fmt.Errorf("render requires a product")
	}
	if profile == nil {
		return nil, fmt.Errorf("render requires a hardware profile")
	}
	width, height := profile.WidthPx, profile.HeightPx
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("hardware profile %s has invalid dimensions %dx%d", profile.ModelNumber, width, height)
	}

	scheme := profile.ColorScheme
	if !scheme.Valid() {
		scheme = models.ColorSchemeBW
	}
	promo := utils.IsTrue(product.IsOnSpecial)

	tpl, err := templateFor(templateID)
	if err != nil {
		return nil, err
	}

	dollars, cents := splitPrice(product.Price)
	in := renderInput{
		name:    product.Name,
		sku:     product.SKU,
		dollars: dollars,
		cents:   cents,
		promo:   promo,
		palette: newPalette(scheme, promo),
	}

	c := newCanvas(width, height, in.palette.Background)
	if err := tpl.draw(c, in, e.fonts); err != nil {
		return nil, fmt.Errorf("template %d draw failed: %w", templateID, err)
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("failed to encode label image: %w", err)
	}
	return buf.Bytes(), nil
}

// splitPrice formats the price as a dollar part and a two-digit cents part
// rendered as superscript by the templates
func splitPrice(price float64) (dollars, cents string) {
	s := fmt.Sprintf("%.2f", price)
	dollars = "$" + s[:len(s)-3]
	cents = s[len(s)-2:]
	return dollars, cents
}
