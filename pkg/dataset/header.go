package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"mcmlview/internal/models"
)

// HeaderSize is the encoded size of a header in bytes.
const HeaderSize = 2 + 4 + 3*8 + 6*8

// Header describes the geometry of a dataset.
type Header struct {
	// LayerCount is the number of tissue layers, each a complete 3-D field.
	LayerCount uint16

	// PhotonCount is the number of photons the simulator traced.
	PhotonCount int32

	// DimX, DimY, DimZ are the sample points per line along each axis.
	DimX, DimY, DimZ int

	// Min and Max bound the simulated region in simulator units.
	Min, Max models.Point
}

// rawHeader is the on-disk layout. Dimensions are fixed to 64 bits so files
// do not depend on the pointer width of the machine that wrote them.
type rawHeader struct {
	LayerCount  uint16
	PhotonCount int32
	Dims        [3]uint64
	Bounds      [6]float64
}

// LayerSize returns the number of scalars in one layer.
func (h Header) LayerSize() int {
	return h.DimX * h.DimY * h.DimZ
}

// Strides returns the element distance between neighbours along x, y and z.
func (h Header) Strides() (x, y, z int) {
	return 1, h.DimX, h.DimX * h.DimY
}

// Validate checks the header invariants and the size limit.
func (h Header) Validate(maxValues int) error {
	if h.LayerCount == 0 {
		return fmt.Errorf("%w: layer count is zero", ErrCorruptDataset)
	}
	if h.DimX <= 0 || h.DimY <= 0 || h.DimZ <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %dx%dx%d", ErrCorruptDataset, h.DimX, h.DimY, h.DimZ)
	}
	n, ok := layerSize(uint64(h.DimX), uint64(h.DimY), uint64(h.DimZ))
	if !ok || n > uint64(maxValues) {
		return fmt.Errorf("%w: layer of %dx%dx%d values exceeds limit %d", ErrCorruptDataset, h.DimX, h.DimY, h.DimZ, maxValues)
	}
	return nil
}

func layerSize(x, y, z uint64) (uint64, bool) {
	hi, xy := bits.Mul64(x, y)
	if hi != 0 {
		return 0, false
	}
	hi, n := bits.Mul64(xy, z)
	if hi != 0 {
		return 0, false
	}
	return n, true
}

func readHeader(r io.Reader, order binary.ByteOrder, maxValues int) (Header, error) {
	var raw rawHeader
	if err := binary.Read(r, order, &raw); err != nil {
		return Header{}, fmt.Errorf("%w: reading header: %v", ErrCorruptDataset, err)
	}

	for i, d := range raw.Dims {
		if d == 0 || d > uint64(maxValues) {
			return Header{}, fmt.Errorf("%w: dimension %d is %d", ErrCorruptDataset, i, d)
		}
	}

	h := Header{
		LayerCount:  raw.LayerCount,
		PhotonCount: raw.PhotonCount,
		DimX:        int(raw.Dims[0]),
		DimY:        int(raw.Dims[1]),
		DimZ:        int(raw.Dims[2]),
		Min:         models.Point{X: raw.Bounds[0], Y: raw.Bounds[1], Z: raw.Bounds[2]},
		Max:         models.Point{X: raw.Bounds[3], Y: raw.Bounds[4], Z: raw.Bounds[5]},
	}
	if err := h.Validate(maxValues); err != nil {
		return Header{}, err
	}
	return h, nil
}

func writeHeader(w io.Writer, order binary.ByteOrder, h Header) error {
	raw := rawHeader{
		LayerCount:  h.LayerCount,
		PhotonCount: h.PhotonCount,
		Dims:        [3]uint64{uint64(h.DimX), uint64(h.DimY), uint64(h.DimZ)},
		Bounds:      [6]float64{h.Min.X, h.Min.Y, h.Min.Z, h.Max.X, h.Max.Y, h.Max.Z},
	}
	return binary.Write(w, order, &raw)
}
