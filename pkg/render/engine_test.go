package render

import (
	"bytes"
	"math"
	"sync"
	"testing"

	"golang.org/x/image/bmp"

	"mcmlview/pkg/bitmap"
)

func newTestEngine(t *testing.T, w, h int) *Engine {
	t.Helper()
	d := createDataset(t, 2, 4, 4, 4, func(l, x, y, z int) float32 {
		if l == 1 {
			return 2
		}
		return float32(x+4*y) / 15
	})
	opts := DefaultOptions()
	opts.ViewWidth, opts.ViewHeight = w, h
	e, err := NewEngine(d, opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngineDefaults(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	if st := e.State(); st != DefaultState() {
		t.Errorf("Expected default state %+v, got %+v", DefaultState(), st)
	}
	if e.Renders() != 0 {
		t.Errorf("Expected no renders before the first draw, got %d", e.Renders())
	}
}

// TestEngineFirstFrame checks the bytes of the first frame of a fresh session
func TestEngineFirstFrame(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	b, err := e.Draw()
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(b) != bitmap.FileSize(4, 4) {
		t.Fatalf("Expected %d bytes, got %d", bitmap.FileSize(4, 4), len(b))
	}

	// v=0 sits on the lower bound: yellow, stored as B,G,R
	if got := b[bitmap.HeaderSize : bitmap.HeaderSize+3]; !bytes.Equal(got, []byte{0, 255, 255}) {
		t.Errorf("Expected first pixel 00 FF FF, got % X", got)
	}

	img, err := bmp.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("bmp.Decode failed: %v", err)
	}
	if r, g, bl, _ := img.At(0, 3).RGBA(); r>>8 != 255 || g>>8 != 255 || bl != 0 {
		t.Errorf("Expected yellow at bottom-left, got %d,%d,%d", r>>8, g>>8, bl>>8)
	}
	// x=3, y=3 holds v=1: opaque red at the top-right
	if r, g, bl, _ := img.At(3, 0).RGBA(); r>>8 != 255 || g != 0 || bl != 0 {
		t.Errorf("Expected red at top-right, got %d,%d,%d", r>>8, g>>8, bl>>8)
	}
}

func TestEngineCoalescesUpdates(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	if _, err := e.Draw(); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	e.SetLowerBound(0.1)
	e.SetLowerBound(0.2)
	e.SetLowerBound(0.3)

	b1, err := e.Draw()
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	b2, err := e.Draw()
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	if e.Renders() != 2 {
		t.Errorf("Expected 2 renders, got %d", e.Renders())
	}
	if &b1[0] != &b2[0] {
		t.Error("Expected a clean draw to return the cached bytes")
	}
	if st := e.State(); st.Lower != 0.3 {
		t.Errorf("Expected lower bound 0.3, got %v", st.Lower)
	}

	// x=0,y=1 holds v=4/15, now below the window
	frame, _, err := e.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if c := frame.At(0, 1); c.A != 0 || c.G != 0 {
		t.Errorf("Expected transparent red below the raised bound, got %v", c)
	}
}

func TestEngineFrameGeneration(t *testing.T) {
	e := newTestEngine(t, 4, 4)
	_, g1, err := e.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	_, g2, _ := e.Frame()
	if g1 != g2 {
		t.Errorf("Expected unchanged generation, got %d then %d", g1, g2)
	}
	e.SetZ(2)
	_, g3, _ := e.Frame()
	if g3 == g2 {
		t.Error("Expected a new generation after SetZ")
	}
}

func TestEngineWrapsSelection(t *testing.T) {
	e := newTestEngine(t, 4, 4)

	e.SetZ(3)
	want, err := e.Draw()
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	want = append([]byte(nil), want...)

	e.SetZ(0)
	e.SetZ(4 + 3)
	if st := e.State(); st.Z != 3 {
		t.Errorf("Expected z 3, got %d", st.Z)
	}
	got, err := e.Draw()
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Expected SetZ(dimZ+3) to draw the same frame as SetZ(3)")
	}

	e.SetZ(-1)
	if st := e.State(); st.Z != 3 {
		t.Errorf("Expected z -1 to wrap to 3, got %d", st.Z)
	}
	e.SetLayer(5)
	if st := e.State(); st.Layer != 1 {
		t.Errorf("Expected layer 5 to wrap to 1, got %d", st.Layer)
	}
}

func TestEngineBounds(t *testing.T) {
	e := newTestEngine(t, 4, 4)

	e.SetLowerBound(5)
	if st := e.State(); st.Lower != 5 || st.Upper != 5 {
		t.Errorf("Expected window [5,5], got [%v,%v]", st.Lower, st.Upper)
	}
	e.SetUpperBound(-2)
	if st := e.State(); st.Lower != -2 || st.Upper != -2 {
		t.Errorf("Expected window [-2,-2], got [%v,%v]", st.Lower, st.Upper)
	}
	e.SetBounds(3, 1)
	if st := e.State(); st.Lower != 1 || st.Upper != 3 {
		t.Errorf("Expected window [1,3], got [%v,%v]", st.Lower, st.Upper)
	}

	if _, err := e.Draw(); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	renders := e.Renders()
	e.SetLowerBound(math.NaN())
	e.SetUpperBound(math.NaN())
	e.SetBounds(math.NaN(), 1)
	if st := e.State(); st.Lower != 1 || st.Upper != 3 {
		t.Errorf("Expected NaN to be ignored, got [%v,%v]", st.Lower, st.Upper)
	}
	if _, err := e.Draw(); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if e.Renders() != renders {
		t.Error("Expected NaN updates not to invalidate the frame")
	}
}

// TestEngineExtremeBounds verifies that bounds beyond float32 saturate instead of becoming infinite
func TestEngineExtremeBounds(t *testing.T) {
	e := newTestEngine(t, 4, 4)

	e.SetLowerBound(-1e39)
	if st := e.State(); st.Lower != -math.MaxFloat32 || st.Upper != 1 {
		t.Errorf("Expected window [-MaxFloat32,1], got [%v,%v]", st.Lower, st.Upper)
	}
	frame, _, err := e.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	// v=0.2 is deep inside the window and must stay visible
	if c := frame.At(3, 0); c.A != 255 {
		t.Errorf("Expected an opaque in-window pixel, got %v", c)
	}

	e.SetUpperBound(math.Inf(1))
	if st := e.State(); st.Upper != math.MaxFloat32 {
		t.Errorf("Expected upper MaxFloat32, got %v", st.Upper)
	}
	e.SetBounds(math.Inf(-1), math.Inf(1))
	if st := e.State(); st.Lower != -math.MaxFloat32 || st.Upper != math.MaxFloat32 {
		t.Errorf("Expected saturated window, got [%v,%v]", st.Lower, st.Upper)
	}
}

// TestEngineInitialState verifies that any initial window is kept, including [0,0]
func TestEngineInitialState(t *testing.T) {
	d := createDataset(t, 2, 4, 4, 4, func(l, x, y, z int) float32 { return 0 })
	opts := DefaultOptions()
	opts.ViewWidth, opts.ViewHeight = 4, 4
	opts.Initial = &State{Z: 6, Layer: 1, Lower: 0, Upper: 0}

	e, err := NewEngine(d, opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if st := e.State(); st != (State{Z: 2, Layer: 1, Lower: 0, Upper: 0}) {
		t.Errorf("Expected z 2, layer 1, window [0,0], got %+v", st)
	}

	// every zero cell sits on the degenerate bound: opaque red
	frame, _, err := e.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if c := frame.At(1, 1); c.A != 255 || c.G != 0 {
		t.Errorf("Expected opaque red, got %v", c)
	}
}

func TestEngineGist(t *testing.T) {
	e := newTestEngine(t, 4, 4)

	g, err := e.DefaultGist()
	if err != nil {
		t.Fatalf("DefaultGist failed: %v", err)
	}
	// layer 1 is constant
	if g.Min != 2 || g.Max != 2 {
		t.Errorf("Expected range [2,2], got [%v,%v]", g.Min, g.Max)
	}
	if len(g.Counts) != 100 || g.Counts[0] != 64 {
		t.Errorf("Expected 64 values in bucket 0 of 100, got %d buckets", len(g.Counts))
	}

	g, err = e.Gist(2, 4)
	if err != nil {
		t.Fatalf("Gist failed: %v", err)
	}
	if g.Total() != 64 {
		t.Errorf("Expected 64 values, got %d", g.Total())
	}
	if g.Min != 0 || g.Max != 1 {
		t.Errorf("Expected layer 2 to wrap to layer 0, got range [%v,%v]", g.Min, g.Max)
	}

	if e.Renders() != 0 {
		t.Error("Expected gists not to render frames")
	}
}

func TestEngineConcurrentAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}

	e := newTestEngine(t, 16, 16)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.SetLowerBound(float64(j%10) / 10)
				e.SetUpperBound(float64(j%10)/10 + 0.5)
				e.SetZ(i + j)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b, err := e.Draw()
				if err != nil {
					t.Errorf("Draw failed: %v", err)
					return
				}
				if len(b) != bitmap.FileSize(16, 16) {
					t.Errorf("Expected %d bytes, got %d", bitmap.FileSize(16, 16), len(b))
					return
				}
			}
		}()
	}
	wg.Wait()

	if st := e.State(); st.Lower > st.Upper {
		t.Errorf("Expected lower <= upper, got [%v,%v]", st.Lower, st.Upper)
	}
}

func BenchmarkEngineDraw(b *testing.B) {
	d := createDataset(b, 1, 128, 128, 8, func(l, x, y, z int) float32 {
		return float32(x*y) / (127 * 127)
	})
	e, err := NewEngine(d, DefaultOptions())
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.SetZ(i)
		if _, err := e.Draw(); err != nil {
			b.Fatal(err)
		}
	}
}
