package render

import (
	"image/color"

	"github.com/aisleworks/shelfsync/models"
)

var (
	colorWhite  = color.RGBA{255, 255, 255, 255}
	colorBlack  = color.RGBA{0, 0, 0, 255}
	colorRed    = color.RGBA{255, 0, 0, 255}
	colorYellow = color.RGBA{255, 255, 0, 255}
)

// palette resolves the concrete colors for one render from the panel's color
// capability and the product's promotional flag. Panels without an accent
// channel fall back to inverted black/white emphasis instead of color.
type palette struct {
	Background color.RGBA
	PanelBG    color.RGBA
	PanelText  color.RGBA
	InfoText   color.RGBA
	BannerBG   color.RGBA
	BannerText color.RGBA
}

func newPalette(scheme models.ColorScheme, promo bool) palette {
	p := palette{
		Background: colorWhite,
		PanelBG:    colorWhite,
		PanelText:  colorBlack,
		InfoText:   colorBlack,
		BannerBG:   colorBlack,
		BannerText: colorWhite,
	}

	if promo && scheme.HasYellow() {
		p.Background = colorYellow
	}

	switch {
	case scheme.HasRed():
		p.PanelBG = colorRed
		p.PanelText = colorWhite
	case promo:
		// monochrome promo: inverted emphasis
		p.PanelBG = colorBlack
		p.PanelText = colorWhite
	}

	switch {
	case scheme.HasYellow():
		p.BannerBG = colorYellow
		p.BannerText = colorBlack
	case scheme.HasRed():
		p.BannerBG = colorRed
		p.BannerText = colorWhite
	}

	return p
}
