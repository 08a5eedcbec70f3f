package dataset

import (
	"fmt"
	"math"

	"mcmlview/internal/models"
)

// Synthesize builds a dataset that looks like an absorption map of a pencil
// beam entering a layered medium along +z: a Gaussian lateral profile that
// widens with depth and decays exponentially, each layer with its own
// attenuation coefficient.
func Synthesize(layerCount, dimX, dimY, dimZ int) (*Dataset, error) {
	// the header stores the count as u16
	if layerCount < 1 || layerCount > math.MaxUint16 {
		return nil, fmt.Errorf("%w: layer count %d out of range", ErrCorruptDataset, layerCount)
	}
	if dimX <= 0 || dimY <= 0 || dimZ <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimensions %dx%dx%d", ErrCorruptDataset, dimX, dimY, dimZ)
	}

	h := Header{
		LayerCount:  uint16(layerCount),
		PhotonCount: 1_000_000,
		DimX:        dimX,
		DimY:        dimY,
		DimZ:        dimZ,
		Min:         models.Point{X: -1, Y: -1, Z: 0},
		Max:         models.Point{X: 1, Y: 1, Z: 1},
	}
	if err := h.Validate(DefaultMaxLayerValues); err != nil {
		return nil, err
	}

	layers := make([][]float32, layerCount)
	for l := range layers {
		mu := 1 + 1.5*float64(l)
		layer := make([]float32, h.LayerSize())
		for z := 0; z < dimZ; z++ {
			depth := (float64(z) + 0.5) / float64(dimZ)
			sigma := 0.15 + 0.5*depth
			decay := math.Exp(-mu * depth)
			for y := 0; y < dimY; y++ {
				py := h.Min.Y + (h.Max.Y-h.Min.Y)*(float64(y)+0.5)/float64(dimY)
				for x := 0; x < dimX; x++ {
					px := h.Min.X + (h.Max.X-h.Min.X)*(float64(x)+0.5)/float64(dimX)
					r2 := px*px + py*py
					layer[z*dimX*dimY+y*dimX+x] = float32(decay * math.Exp(-r2/(2*sigma*sigma)))
				}
			}
		}
		layers[l] = layer
	}
	return New(h, layers)
}
