package render

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const minFontSize = 8

// fontSet holds the two parsed typefaces used by all templates: a bold face
// for prices and headers, a regular face for product names.
type fontSet struct {
	bold    *truetype.Font
	regular *truetype.Font
}

func loadFonts() (*fontSet, error) {
	b, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	r, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	return &fontSet{bold: b, regular: r}, nil
}

func (fs *fontSet) face(f *truetype.Font, size int) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// measure returns the pixel bounding box of text rendered with face
func measure(face font.Face, text string) (w, h int) {
	adv := font.MeasureString(face, text)
	m := face.Metrics()
	return adv.Ceil(), (m.Ascent + m.Descent).Ceil()
}

// fitFace shrinks the font until text fits the specified pixel box. Sizes
// step down by two; below the floor the smallest usable face is accepted
// regardless of overflow.
func (fs *fontSet) fitFace(f *truetype.Font, text string, maxW, maxH, initialSize int) (font.Face, int) {
	size := initialSize
	if size < minFontSize {
		size = minFontSize
	}
	face := fs.face(f, size)
	for size > minFontSize {
		w, h := measure(face, text)
		if w <= maxW && h <= maxH {
			break
		}
		size -= 2
		face = fs.face(f, size)
	}
	return face, size
}
