// Package render turns a z-slice of a dataset layer into a color frame and
// keeps the last frame, encoded, until the selection or threshold changes.
package render

import (
	"errors"
	"fmt"

	"mcmlview/internal/models"
	"mcmlview/pkg/dataset"
)

// ErrInvalidSize is returned when a view dimension is not positive.
var ErrInvalidSize = errors.New("view size must be positive")

// State is the selection and threshold window of a view.
type State struct {
	// Z is the selected plane, always in [0, DimZ).
	Z int
	// Layer is the selected layer, always in [0, LayerCount).
	Layer int
	// Lower and Upper bound the threshold window; Lower <= Upper.
	Lower, Upper float32
}

// DefaultState is the state a new view starts in.
func DefaultState() State {
	return State{Z: 0, Layer: 0, Lower: 0, Upper: 1}
}

// Renderer maps slices of one dataset to frames of a fixed view size.
type Renderer struct {
	ds           *dataset.Dataset
	viewW, viewH int
	filter       Filter
}

// NewRenderer builds a renderer producing viewW x viewH frames.
func NewRenderer(ds *dataset.Dataset, viewW, viewH int, filter Filter) (*Renderer, error) {
	if viewW <= 0 || viewH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, viewW, viewH)
	}
	if _, err := filter.interpolator(); err != nil {
		return nil, err
	}
	return &Renderer{ds: ds, viewW: viewW, viewH: viewH, filter: filter}, nil
}

// ViewSize returns the size of produced frames.
func (r *Renderer) ViewSize() (w, h int) {
	return r.viewW, r.viewH
}

// RenderNative colors plane st.Z of layer st.Layer at the dataset's own x,y
// resolution. Data row y becomes scan line y, so y=0 is the bottom.
func (r *Renderer) RenderNative(st State) *models.ColorBuffer {
	m := r.ds.Layer(st.Layer)
	dimX, dimY, _ := m.Dims()
	plane := m.Plane(st.Z)

	buf := models.NewColorBuffer(dimX, dimY)
	pix := buf.Image.Pix
	for y := 0; y < dimY; y++ {
		row := plane[y*dimX : (y+1)*dimX]
		off := buf.Image.PixOffset(0, y)
		for x, v := range row {
			c := Map(v, st.Lower, st.Upper).NRGBA()
			p := pix[off+4*x : off+4*x+4 : off+4*x+4]
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
		}
	}
	return buf
}

// Render produces the frame at view resolution.
func (r *Renderer) Render(st State) (*models.ColorBuffer, error) {
	native := r.RenderNative(st)
	if native.Width() == r.viewW && native.Height() == r.viewH {
		return native, nil
	}
	return Resample(native, r.viewW, r.viewH, r.filter)
}
