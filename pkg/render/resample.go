package render

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"mcmlview/internal/models"
)

// Filter names the resampling filter used to fit a slice to the view.
type Filter string

const (
	// FilterNearest repeats cells as blocks, like a GL_NEAREST texture.
	FilterNearest        Filter = "nearest"
	FilterApproxBiLinear Filter = "approx-bilinear"
	FilterBiLinear       Filter = "bilinear"
	FilterCatmullRom     Filter = "catmull-rom"
)

// Valid reports whether f names a known filter. The empty name means nearest.
func (f Filter) Valid() bool {
	_, err := f.interpolator()
	return err == nil
}

func (f Filter) interpolator() (draw.Interpolator, error) {
	switch f {
	case FilterNearest, "":
		return draw.NearestNeighbor, nil
	case FilterApproxBiLinear:
		return draw.ApproxBiLinear, nil
	case FilterBiLinear:
		return draw.BiLinear, nil
	case FilterCatmullRom:
		return draw.CatmullRom, nil
	}
	return nil, fmt.Errorf("unknown resampling filter %q", f)
}

// Resample scales src to w x h. Color and alpha are scaled as separate planes
// so transparent cells keep their color; a premultiplied pass would turn them
// black. Scan line order is unchanged: row 0 stays the bottom.
func Resample(src *models.ColorBuffer, w, h int, f Filter) (*models.ColorBuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	interp, err := f.interpolator()
	if err != nil {
		return nil, err
	}

	sb := src.Image.Bounds()
	rgb := image.NewRGBA(sb)
	alpha := image.NewAlpha(sb)
	for i := 0; i < len(src.Image.Pix); i += 4 {
		copy(rgb.Pix[i:i+3], src.Image.Pix[i:i+3])
		rgb.Pix[i+3] = 0xff
		alpha.Pix[i/4] = src.Image.Pix[i+3]
	}

	db := image.Rect(0, 0, w, h)
	dstColor := image.NewRGBA(db)
	dstAlpha := image.NewAlpha(db)
	interp.Scale(dstColor, db, rgb, sb, draw.Src, nil)
	interp.Scale(dstAlpha, db, alpha, sb, draw.Src, nil)

	out := models.NewColorBuffer(w, h)
	for i := 0; i < len(out.Image.Pix); i += 4 {
		copy(out.Image.Pix[i:i+3], dstColor.Pix[i:i+3])
		out.Image.Pix[i+3] = dstAlpha.Pix[i/4]
	}
	return out, nil
}
