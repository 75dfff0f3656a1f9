package render

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

// renderBarcode encodes the SKU as Code 128 scaled to exactly fill the
// reserved footer region
func renderBarcode(sku string, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("barcode region %dx%d is empty", width, height)
	}
	code, err := code128.Encode(sku)
	if err != nil {
		return nil, fmt.Errorf("failed to encode barcode for SKU %q: %w", sku, err)
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode to %dx%d: %w", width, height, err)
	}
	return scaled, nil
}
