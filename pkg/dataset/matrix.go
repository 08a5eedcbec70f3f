package dataset

import "fmt"

// MatrixView is a read-only strided view over one layer. It does not own the
// data; selecting a plane only moves an offset.
type MatrixView struct {
	data             []float32
	dimX, dimY, dimZ int
	strideY, strideZ int
}

func newMatrixView(data []float32, h Header) MatrixView {
	_, sy, sz := h.Strides()
	return MatrixView{
		data:    data,
		dimX:    h.DimX,
		dimY:    h.DimY,
		dimZ:    h.DimZ,
		strideY: sy,
		strideZ: sz,
	}
}

// Dims returns the extents of the view.
func (m MatrixView) Dims() (x, y, z int) {
	return m.dimX, m.dimY, m.dimZ
}

// Index returns the flat offset of (x,y,z) without bounds checks.
func (m MatrixView) Index(x, y, z int) int {
	return z*m.strideZ + y*m.strideY + x
}

// At returns the scalar at (x,y,z). Out-of-range coordinates are a
// programming error and panic.
func (m MatrixView) At(x, y, z int) float32 {
	if uint(x) >= uint(m.dimX) || uint(y) >= uint(m.dimY) || uint(z) >= uint(m.dimZ) {
		panic(fmt.Sprintf("dataset: index (%d,%d,%d) out of range %dx%dx%d", x, y, z, m.dimX, m.dimY, m.dimZ))
	}
	return m.data[m.Index(x, y, z)]
}

// Plane returns the z-slice as DimX*DimY values, row y at offset y*DimX.
// The slice aliases the dataset and must not be modified.
func (m MatrixView) Plane(z int) []float32 {
	if uint(z) >= uint(m.dimZ) {
		panic(fmt.Sprintf("dataset: plane %d out of range [0,%d)", z, m.dimZ))
	}
	off := z * m.strideZ
	return m.data[off : off+m.strideZ : off+m.strideZ]
}

// Values returns every scalar of the layer. The slice aliases the dataset
// and must not be modified.
func (m MatrixView) Values() []float32 {
	return m.data[:len(m.data):len(m.data)]
}

// Len returns the number of scalars in the layer.
func (m MatrixView) Len() int {
	return len(m.data)
}
