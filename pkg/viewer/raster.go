package viewer

import (
	"image"
	"image/color"
	"math"
)

// screenVertex is a projected vertex: pixel position plus view depth
type screenVertex struct {
	x, y, z float64
}

// fillTriangle rasterizes a triangle with depth testing. Pixels that pass the
// depth test are blended over the existing color with the given opacity.
func fillTriangle(img *image.RGBA, zbuffer []float64, a, b, c screenVertex, col color.RGBA, opacity float64) {
	// Sort vertices by Y coordinate (top to bottom)
	if a.y > b.y {
		a, b = b, a
	}
	if b.y > c.y {
		b, c = c, b
	}
	if a.y > b.y {
		a, b = b, a
	}

	bounds := img.Bounds()
	width := bounds.Dx()

	yStart := int(math.Max(0, math.Ceil(a.y)))
	yEnd := int(math.Min(float64(bounds.Max.Y-1), math.Floor(c.y)))

	for y := yStart; y <= yEnd; y++ {
		fy := float64(y)

		// The long edge a-c spans every scanline; the short one is a-b or b-c
		xl, zl, okl := edgeAt(a, c, fy)
		var xr, zr float64
		var okr bool
		if fy <= b.y {
			xr, zr, okr = edgeAt(a, b, fy)
		} else {
			xr, zr, okr = edgeAt(b, c, fy)
		}
		if !okl || !okr {
			continue
		}
		if xl > xr {
			xl, xr = xr, xl
			zl, zr = zr, zl
		}

		xFrom := int(math.Max(0, math.Ceil(xl)))
		xTo := int(math.Min(float64(bounds.Max.X-1), math.Floor(xr)))

		for x := xFrom; x <= xTo; x++ {
			t := 0.0
			if xr != xl {
				t = (float64(x) - xl) / (xr - xl)
			}
			z := zl + t*(zr-zl)

			idx := y*width + x
			if z >= zbuffer[idx] {
				continue
			}
			zbuffer[idx] = z
			img.SetRGBA(x, y, blend(img.RGBAAt(x, y), col, opacity))
		}
	}
}

// edgeAt interpolates x and depth along edge p-q at scanline y
func edgeAt(p, q screenVertex, y float64) (x, z float64, ok bool) {
	if p.y == q.y {
		if y != p.y {
			return 0, 0, false
		}
		return math.Min(p.x, q.x), math.Min(p.z, q.z), true
	}
	if y < p.y || y > q.y {
		return 0, 0, false
	}
	t := (y - p.y) / (q.y - p.y)
	return p.x + t*(q.x-p.x), p.z + t*(q.z-p.z), true
}

func blend(dst, src color.RGBA, opacity float64) color.RGBA {
	if opacity >= 1 {
		return src
	}
	mix := func(d, s uint8) uint8 {
		return uint8(float64(s)*opacity + float64(d)*(1-opacity))
	}
	return color.RGBA{R: mix(dst.R, src.R), G: mix(dst.G, src.G), B: mix(dst.B, src.B), A: 255}
}
