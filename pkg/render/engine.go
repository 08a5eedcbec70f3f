package render

import (
	"fmt"
	"math"
	"sync"
	"time"

	"mcmlview/internal/logging"
	"mcmlview/internal/models"
	"mcmlview/pkg/bitmap"
	"mcmlview/pkg/dataset"
	"mcmlview/pkg/histogram"
)

// Options configures an Engine.
type Options struct {
	// ViewWidth and ViewHeight are the output frame size in pixels.
	ViewWidth, ViewHeight int

	// Filter selects the resampling filter.
	Filter Filter

	// GistLayer is the layer reported by Gist requests without a layer.
	GistLayer int

	// GistBuckets is the default bucket count for gists.
	GistBuckets int

	// Initial is the starting selection and window; nil means DefaultState.
	// Any window is honoured, including [0,0].
	Initial *State
}

// DefaultOptions returns an 800x800 nearest-neighbour view.
func DefaultOptions() Options {
	return Options{
		ViewWidth:   800,
		ViewHeight:  800,
		Filter:      FilterNearest,
		GistLayer:   1,
		GistBuckets: histogram.DefaultBuckets,
	}
}

// Engine is one viewing session: the dataset, the render state and the frame
// cache. Its methods may be called from any goroutine; state changes and the
// rebuild-and-encode sequence run under one lock so a frame never mixes old
// and new settings.
type Engine struct {
	ds       *dataset.Dataset
	renderer *Renderer
	opts     Options

	mu    sync.Mutex
	state State
	cache *FrameCache
}

// NewEngine starts a session over ds.
func NewEngine(ds *dataset.Dataset, opts Options) (*Engine, error) {
	r, err := NewRenderer(ds, opts.ViewWidth, opts.ViewHeight, opts.Filter)
	if err != nil {
		return nil, err
	}
	if opts.GistBuckets < 1 {
		opts.GistBuckets = histogram.DefaultBuckets
	}
	initial := DefaultState()
	if opts.Initial != nil {
		initial = *opts.Initial
	}

	e := &Engine{
		ds:       ds,
		renderer: r,
		opts:     opts,
		state:    DefaultState(),
		cache:    NewFrameCache(),
	}
	e.SetZ(initial.Z)
	e.SetLayer(initial.Layer)
	e.SetBounds(float64(initial.Lower), float64(initial.Upper))
	return e, nil
}

// Dataset returns the session's dataset.
func (e *Engine) Dataset() *dataset.Dataset {
	return e.ds
}

// State returns a snapshot of the current selection and window.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetZ selects plane z, wrapped into [0, DimZ).
func (e *Engine) SetZ(z int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Z = e.ds.WrapZ(z)
	e.cache.Invalidate()
}

// SetLayer selects layer l, wrapped into [0, LayerCount).
func (e *Engine) SetLayer(l int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Layer = e.ds.WrapLayer(l)
	e.cache.Invalidate()
}

// SetLowerBound moves the lower edge of the window. The upper edge follows
// if it would end up below. NaN is ignored.
func (e *Engine) SetLowerBound(v float64) {
	if math.IsNaN(v) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Lower = narrow(v)
	if e.state.Upper < e.state.Lower {
		e.state.Upper = e.state.Lower
	}
	e.cache.Invalidate()
}

// SetUpperBound moves the upper edge of the window. The lower edge follows
// if it would end up above. NaN is ignored.
func (e *Engine) SetUpperBound(v float64) {
	if math.IsNaN(v) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Upper = narrow(v)
	if e.state.Lower > e.state.Upper {
		e.state.Lower = e.state.Upper
	}
	e.cache.Invalidate()
}

// SetBounds replaces the whole window, swapping the edges if needed.
func (e *Engine) SetBounds(lower, upper float64) {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return
	}
	if lower > upper {
		lower, upper = upper, lower
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Lower, e.state.Upper = narrow(lower), narrow(upper)
	e.cache.Invalidate()
}

// narrow converts a bound to float32, saturating at the largest finite value
// so the colormap never divides infinities.
func narrow(v float64) float32 {
	return float32(max(-math.MaxFloat32, min(v, math.MaxFloat32)))
}

// Draw returns the encoded bitmap of the current state, rebuilding it only
// if something changed since the last draw.
func (e *Engine) Draw() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.refresh(); err != nil {
		return nil, err
	}
	_, encoded, _ := e.cache.Frame()
	return encoded, nil
}

// Frame is Draw for surfaces: it returns the color buffer and the rebuild
// generation, which changes exactly when a new frame was produced.
func (e *Engine) Frame() (*models.ColorBuffer, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.refresh(); err != nil {
		return nil, 0, err
	}
	frame, _, gen := e.cache.Frame()
	return frame, gen, nil
}

// Renders returns how many times a frame has been rebuilt.
func (e *Engine) Renders() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, gen := e.cache.Frame()
	return gen
}

// refresh rebuilds the cached frame if it is stale. Callers hold e.mu.
func (e *Engine) refresh() error {
	if !e.cache.Dirty() {
		return nil
	}

	start := time.Now()
	frame, err := e.renderer.Render(e.state)
	if err != nil {
		return fmt.Errorf("error rendering frame: %w", err)
	}
	encoded, err := bitmap.Encode(frame)
	if err != nil {
		return fmt.Errorf("error encoding frame: %w", err)
	}
	e.cache.Store(frame, encoded)

	logging.Logger().Debug("frame rendered",
		"z", e.state.Z,
		"layer", e.state.Layer,
		"lower", e.state.Lower,
		"upper", e.state.Upper,
		"bytes", len(encoded),
		"elapsed", time.Since(start))
	return nil
}

// Gist computes the distribution of a layer, wrapped into range. Buckets
// below one fall back to the configured default. The cache is not involved.
func (e *Engine) Gist(layer, buckets int) (histogram.Gist, error) {
	if buckets < 1 {
		buckets = e.opts.GistBuckets
	}
	return histogram.Compute(e.ds.Layer(e.ds.WrapLayer(layer)), buckets)
}

// GistLayer returns the layer reported when a gist request names none.
func (e *Engine) GistLayer() int {
	return e.opts.GistLayer
}

// DefaultGist computes the gist of the configured gist layer.
func (e *Engine) DefaultGist() (histogram.Gist, error) {
	return e.Gist(e.opts.GistLayer, e.opts.GistBuckets)
}
