package render

import (
	"fmt"
	"image/color"
)

const safePad = 3

// template draws one layout variant onto a prepared canvas. The variants are
// enumerated explicitly so adding a new layout is a compile-time-checked
// change, not a dynamic lookup.
type template interface {
	draw(c *canvas, in renderInput, fs *fontSet) error
}

const (
	// TemplateSplit is a left-info / right-price split layout
	TemplateSplit = 1
	// TemplateBanner is a full-width centered price with a header bar
	TemplateBanner = 2
	// TemplatePromo is a side-by-side layout with a dedicated sale banner
	TemplatePromo = 3
)

func templateFor(id int) (template, error) {
	switch id {
	case TemplateSplit:
		return splitTemplate{}, nil
	case TemplateBanner:
		return bannerTemplate{}, nil
	case TemplatePromo:
		return promoTemplate{}, nil
	default:
		return nil, fmt.Errorf("unknown template id %d", id)
	}
}

// splitTemplate puts product info on the left and a colored price panel on
// the right of a vertical split at 62% of the width.
type splitTemplate struct{}

func (splitTemplate) draw(c *canvas, in renderInput, fs *fontSet) error {
	pal := in.palette
	w, h := c.width(), c.height()
	splitX := int(float64(w) * 0.62)

	c.fillRect(splitX, 0, w, h, pal.PanelBG)

	drawPrice(c, fs, in.dollars, in.cents, splitX+5, w-safePad, h/2, h/2, pal.PanelText)

	skuFace := fs.face(fs.bold, 10)
	c.drawTextTop(skuFace, "SKU: "+in.sku, safePad, safePad, pal.InfoText)

	drawName(c, fs, in.name, safePad, splitX-safePad, 20, h-int(float64(h)*0.25)-2*safePad, pal.InfoText)

	return drawFooterBarcode(c, in.sku, safePad, splitX-safePad-5, int(float64(h)*0.25))
}

// bannerTemplate puts the product name in a full-width header bar and centers
// the price in the remaining body.
type bannerTemplate struct{}

func (bannerTemplate) draw(c *canvas, in renderInput, fs *fontSet) error {
	pal := in.palette
	w, h := c.width(), c.height()
	headerH := int(float64(h) * 0.22)
	footerH := int(float64(h) * 0.22)

	c.fillRect(0, 0, w, headerH, pal.PanelBG)
	nameFace, _ := fs.fitFace(fs.regular, in.name, w-2*safePad, headerH-2, 14)
	c.drawTextCentered(nameFace, in.name, 0, w, headerH/2, pal.PanelText)

	bodyTop := headerH
	bodyBottom := h - footerH
	priceText := in.dollars + in.cents
	priceFace, priceSize := fs.fitFace(fs.bold, priceText, w-2*safePad, bodyBottom-bodyTop-2*safePad, int(float64(h)*0.5))
	dollarsW, _ := measure(priceFace, in.dollars)
	centsFace := fs.face(fs.bold, maxInt(priceSize/2, minFontSize))
	centsW, _ := measure(centsFace, in.cents)
	startX := (w - dollarsW - centsW) / 2
	cy := bodyTop + (bodyBottom-bodyTop)/2
	baseline := cy + priceFace.Metrics().Ascent.Ceil()/2
	c.drawText(priceFace, in.dollars, startX, baseline, pal.InfoText)
	top := baseline - priceFace.Metrics().Ascent.Ceil()
	c.drawTextTop(centsFace, in.cents, startX+dollarsW, top, pal.InfoText)

	return drawFooterBarcode(c, in.sku, safePad, w-safePad, footerH-safePad)
}

// promoTemplate reserves a left-hand banner band and stacks name, price and
// barcode beside it.
type promoTemplate struct{}

func (promoTemplate) draw(c *canvas, in renderInput, fs *fontSet) error {
	pal := in.palette
	w, h := c.width(), c.height()
	bandW := int(float64(w) * 0.25)

	if in.promo {
		c.fillRect(0, 0, bandW, h, pal.BannerBG)
		saleFace, _ := fs.fitFace(fs.bold, "SALE", bandW-2*safePad, h/3, int(float64(h)*0.3))
		c.drawTextCentered(saleFace, "SALE", 0, bandW, h/2, pal.BannerText)
	}

	left := bandW + safePad
	nameFace, _ := fs.fitFace(fs.regular, in.name, w-left-safePad, int(float64(h)*0.25), 14)
	c.drawTextTop(nameFace, in.name, left, safePad, pal.InfoText)

	priceTop := int(float64(h) * 0.3)
	priceBottom := h - int(float64(h)*0.25) - safePad
	c.fillRect(left-safePad, priceTop, w, priceBottom, pal.PanelBG)
	drawPrice(c, fs, in.dollars, in.cents, left, w-safePad, (priceTop+priceBottom)/2, priceBottom-priceTop-2*safePad, pal.PanelText)

	footerH := int(float64(h) * 0.22)
	return drawFooterBarcode(c, in.sku, left, w-safePad, footerH)
}

// drawPrice renders the integer part large and the cents as superscript-style
// smaller text, shrink-to-fit against the given box.
func drawPrice(c *canvas, fs *fontSet, dollars, cents string, x0, x1, cy, maxH int, col color.Color) {
	maxW := x1 - x0
	dollarFace, dollarSize := fs.fitFace(fs.bold, dollars+cents, maxW, maxH, maxH)
	centsFace := fs.face(fs.bold, maxInt(dollarSize/2, minFontSize))

	m := dollarFace.Metrics()
	baseline := cy + (m.Ascent - (m.Ascent+m.Descent)/2).Ceil()
	c.drawText(dollarFace, dollars, x0, baseline, col)

	dollarsW, _ := measure(dollarFace, dollars)
	top := baseline - m.Ascent.Ceil()
	c.drawTextTop(centsFace, cents, x0+dollarsW+1, top, col)
}

// drawName word-wraps the product name to a fixed character width, caps the
// line count, and shrink-to-fits each line against the remaining space.
func drawName(c *canvas, fs *fontSet, name string, x0, x1, top, bottom int, col color.Color) {
	lines := wrapText(name, nameWrapWidth, nameMaxLines)
	maxW := x1 - x0
	lineH := (bottom - top) / nameMaxLines
	y := top
	for _, line := range lines {
		face, _ := fs.fitFace(fs.regular, line, maxW, lineH, 14)
		c.drawTextTop(face, line, x0, y, col)
		_, h := measure(face, line)
		y += h + 2
	}
}

func drawFooterBarcode(c *canvas, sku string, x0, x1, barH int) error {
	img, err := renderBarcode(sku, x1-x0, barH)
	if err != nil {
		return err
	}
	c.compose(img, x0, c.height()-barH-safePad)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
