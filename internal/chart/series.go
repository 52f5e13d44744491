package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Series is one side's area profile: normalized positions S and the
// normalized areas A measured at them
type Series struct {
	S []float64
	A []float64
}

// Point is a single (position, area) sample
type Point struct {
	X float64
	Y float64
}

// Points pairs S and A. It fails if they differ in length.
func (s Series) Points(side string) ([]Point, error) {
	if err := s.validate(side); err != nil {
		return nil, err
	}
	pts := make([]Point, len(s.S))
	for i := range s.S {
		pts[i] = Point{X: s.S[i], Y: s.A[i]}
	}
	return pts, nil
}

func (s Series) validate(side string) error {
	if len(s.S) != len(s.A) {
		return &SeriesLengthMismatchError{Side: side, S: len(s.S), A: len(s.A)}
	}
	return nil
}

// SeriesLengthMismatchError reports a profile whose position and area
// sequences have different lengths
type SeriesLengthMismatchError struct {
	Side string
	S    int
	A    int
}

func (e *SeriesLengthMismatchError) Error() string {
	return fmt.Sprintf("%s profile: s_norm has %d values but a_norm has %d", e.Side, e.S, e.A)
}

// placeholder draws a dark image with a centered message
func placeholder(w, h int, text string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 18, G: 18, B: 18, A: 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 200, G: 200, B: 200, A: 255}),
		Face: face,
	}
	tw := d.MeasureString(text).Ceil()
	d.Dot = fixed.Point26_6{
		X: fixed.I((w - tw) / 2),
		Y: fixed.I(h/2 + face.Metrics().Ascent.Ceil()/2),
	}
	d.DrawString(text)
	return img
}
