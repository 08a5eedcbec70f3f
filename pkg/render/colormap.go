package render

import (
	"image/color"
	"math"
)

// Shade is the color of one cell before quantization, channels in [0,1].
type Shade struct {
	R, G, B, A float32
}

// Map turns a scalar into a red-to-yellow heat color whose opacity encodes
// where v sits inside [lower, upper]:
//
//	v < lower            transparent red
//	v > upper            opaque red
//	lower <= v <= upper  alpha = (v-lower)/(upper-lower), green = 1-alpha
//
// Values below the window are fully transparent so weak signal does not hide
// the background. When lower == upper every v >= lower is opaque red.
func Map(v, lower, upper float32) Shade {
	switch {
	case v < lower:
		return Shade{R: 1}
	case v > upper || lower == upper:
		return Shade{R: 1, A: 1}
	}
	// float64 keeps the span finite for windows as wide as float32 allows
	a := float32((float64(v) - float64(lower)) / (float64(upper) - float64(lower)))
	return Shade{R: 1, G: 1 - a, A: a}
}

// NRGBA quantizes the shade to 8 bits per channel with rounding.
func (s Shade) NRGBA() color.NRGBA {
	return color.NRGBA{R: quantize(s.R), G: quantize(s.G), B: quantize(s.B), A: quantize(s.A)}
}

func quantize(c float32) uint8 {
	switch {
	case !(c > 0):
		return 0
	case c >= 1:
		return 255
	}
	return uint8(math.Round(float64(c) * 255))
}
