// Package dataset decodes the binary output of the Monte-Carlo light-transport
// simulator and exposes it through strided per-layer views.
//
// A file is a fixed header followed by LayerCount layers. Each layer holds
// DimX*DimY*DimZ float32 scalars with x varying fastest, then y, then z.
// Values are kept in raw simulation units; nothing is normalized at load time.
package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"mcmlview/internal/logging"
)

// ErrCorruptDataset reports a truncated or malformed dataset.
var ErrCorruptDataset = errors.New("corrupt dataset")

// DefaultMaxLayerValues caps the scalars per layer accepted from a header.
// It keeps a damaged header from triggering a multi-terabyte allocation.
const DefaultMaxLayerValues = 1 << 31

// chunkValues is the number of scalars decoded per read.
const chunkValues = 1 << 16

// Dataset is a decoded simulation result. It is immutable once built.
type Dataset struct {
	// Header is the geometry read from the file.
	Header Header

	layers [][]float32
}

type options struct {
	order     binary.ByteOrder
	maxValues int
}

// Option adjusts how a dataset is read or written.
type Option func(*options)

// WithByteOrder selects the byte order of the file. The simulator writes
// native order, which is little-endian on every platform it runs on, so that
// is the default.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *options) {
		o.order = order
	}
}

// WithMaxLayerValues overrides DefaultMaxLayerValues.
func WithMaxLayerValues(n int) Option {
	return func(o *options) {
		o.maxValues = n
	}
}

func buildOptions(opts []Option) options {
	o := options{order: binary.LittleEndian, maxValues: DefaultMaxLayerValues}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds a dataset from in-memory layers. The layers are not copied and
// must not be modified afterwards.
func New(h Header, layers [][]float32) (*Dataset, error) {
	if err := h.Validate(DefaultMaxLayerValues); err != nil {
		return nil, err
	}
	if len(layers) != int(h.LayerCount) {
		return nil, fmt.Errorf("%w: header declares %d layers, got %d", ErrCorruptDataset, h.LayerCount, len(layers))
	}
	n := h.LayerSize()
	for i, l := range layers {
		if len(l) != n {
			return nil, fmt.Errorf("%w: layer %d has %d values, expected %d", ErrCorruptDataset, i, len(l), n)
		}
	}
	return &Dataset{Header: h, layers: layers}, nil
}

// Load reads a dataset from r. It fails with an error wrapping
// ErrCorruptDataset if the source ends before every declared value is read.
// Bytes after the last layer are ignored.
func Load(r io.Reader, opts ...Option) (*Dataset, error) {
	o := buildOptions(opts)

	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 1<<20)
	}

	h, err := readHeader(br, o.order, o.maxValues)
	if err != nil {
		return nil, err
	}

	n := h.LayerSize()
	layers := make([][]float32, 0, h.LayerCount)
	raw := make([]byte, 4*min(n, chunkValues))
	for l := 0; l < int(h.LayerCount); l++ {
		layer, err := readLayer(br, o.order, n, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d of %d: %v", ErrCorruptDataset, l, h.LayerCount, err)
		}
		layers = append(layers, layer)
	}

	logging.Logger().Debug("dataset loaded",
		"layers", h.LayerCount,
		"photons", h.PhotonCount,
		"dims", fmt.Sprintf("%dx%dx%d", h.DimX, h.DimY, h.DimZ))

	return &Dataset{Header: h, layers: layers}, nil
}

// readLayer decodes n scalars in chunks, growing the layer as data arrives so
// a truncated file fails before the whole layer is allocated.
func readLayer(r io.Reader, order binary.ByteOrder, n int, raw []byte) ([]float32, error) {
	layer := make([]float32, 0, min(n, 16*chunkValues))
	for len(layer) < n {
		k := min(n-len(layer), len(raw)/4)
		buf := raw[:4*k]
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("value %d: %w", len(layer), err)
		}
		for i := 0; i < k; i++ {
			layer = append(layer, math.Float32frombits(order.Uint32(buf[4*i:])))
		}
	}
	return layer, nil
}

// LayerCount returns the number of layers.
func (d *Dataset) LayerCount() int {
	return len(d.layers)
}

// Dims returns the sample counts along x, y and z.
func (d *Dataset) Dims() (x, y, z int) {
	return d.Header.DimX, d.Header.DimY, d.Header.DimZ
}

// Layer returns a view of layer l. It panics if l is out of range; use
// WrapLayer for values that come from outside.
func (d *Dataset) Layer(l int) MatrixView {
	if l < 0 || l >= len(d.layers) {
		panic(fmt.Sprintf("dataset: layer %d out of range [0,%d)", l, len(d.layers)))
	}
	return newMatrixView(d.layers[l], d.Header)
}

// WrapLayer maps any layer selection into range by taking it modulo the
// layer count. Interactive scrubbing past the end shows the first layers again.
func (d *Dataset) WrapLayer(l int) int {
	return wrap(l, len(d.layers))
}

// WrapZ maps any z selection into range modulo DimZ.
func (d *Dataset) WrapZ(z int) int {
	return wrap(z, d.Header.DimZ)
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
