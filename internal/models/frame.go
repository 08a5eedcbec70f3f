package models

import (
	"image"
	"image/color"
)

// Point is a position in simulation space, in the units written by the simulator.
type Point struct {
	X, Y, Z float64
}

// ColorBuffer is a rendered slice frame.
//
// Pixels are stored with straight (non-premultiplied) alpha so that the color of
// a fully transparent pixel survives until it is encoded. Row 0 is the bottom
// scan line of the displayed image, the same order a bottom-up bitmap and a GL
// texture upload use.
type ColorBuffer struct {
	// Image holds the pixels. Image row r is scan line r counted from the bottom.
	Image *image.NRGBA
}

// NewColorBuffer allocates a transparent buffer of the given size.
func NewColorBuffer(width, height int) *ColorBuffer {
	return &ColorBuffer{Image: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// Width returns the number of pixels per scan line.
func (c *ColorBuffer) Width() int {
	return c.Image.Rect.Dx()
}

// Height returns the number of scan lines.
func (c *ColorBuffer) Height() int {
	return c.Image.Rect.Dy()
}

// Set stores the pixel at column x of scan line row (row 0 is the bottom).
func (c *ColorBuffer) Set(x, row int, px color.NRGBA) {
	c.Image.SetNRGBA(x, row, px)
}

// At returns the pixel at column x of scan line row (row 0 is the bottom).
func (c *ColorBuffer) At(x, row int) color.NRGBA {
	return c.Image.NRGBAAt(x, row)
}

// Row returns the raw R,G,B,A bytes of one scan line without copying.
func (c *ColorBuffer) Row(row int) []byte {
	off := c.Image.PixOffset(0, row)
	return c.Image.Pix[off : off+4*c.Width()]
}

// Clone returns a deep copy of the buffer.
func (c *ColorBuffer) Clone() *ColorBuffer {
	out := NewColorBuffer(c.Width(), c.Height())
	copy(out.Image.Pix, c.Image.Pix)
	return out
}
