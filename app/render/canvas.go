package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// canvas wraps an RGBA image with the drawing primitives the templates need
type canvas struct {
	img *image.RGBA
}

func newCanvas(width, height int, bg color.Color) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return &canvas{img: img}
}

func (c *canvas) width() int  { return c.img.Bounds().Dx() }
func (c *canvas) height() int { return c.img.Bounds().Dy() }

func (c *canvas) fillRect(x0, y0, x1, y1 int, col color.Color) {
	draw.Draw(c.img, image.Rect(x0, y0, x1, y1), image.NewUniform(col), image.Point{}, draw.Src)
}

// drawText renders text with its baseline at the given y coordinate
func (c *canvas) drawText(face font.Face, text string, x, baseline int, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

// drawTextTop renders text with the top of its em box at the given y coordinate
func (c *canvas) drawTextTop(face font.Face, text string, x, top int, col color.Color) {
	c.drawText(face, text, x, top+face.Metrics().Ascent.Ceil(), col)
}

// drawTextCentered renders text horizontally centered between x0 and x1,
// vertically centered on cy
func (c *canvas) drawTextCentered(face font.Face, text string, x0, x1, cy int, col color.Color) {
	w, _ := measure(face, text)
	m := face.Metrics()
	x := x0 + (x1-x0-w)/2
	baseline := cy + (m.Ascent - (m.Ascent+m.Descent)/2).Ceil()
	c.drawText(face, text, x, baseline, col)
}

// compose pastes src at (x, y)
func (c *canvas) compose(src image.Image, x, y int) {
	b := src.Bounds()
	draw.Draw(c.img, image.Rect(x, y, x+b.Dx(), y+b.Dy()), src, b.Min, draw.Over)
}
