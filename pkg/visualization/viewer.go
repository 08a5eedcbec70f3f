// Package visualization drives a display surface from a rendering session.
//
// A Viewer polls the session at a fixed interval and uploads each new frame
// to its Surface. Surfaces backed by a graphics context must be used from
// one OS thread, so Run locks the calling goroutine to its thread.
package visualization

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"mcmlview/internal/logging"
	"mcmlview/internal/models"
	"mcmlview/pkg/render"
)

// DefaultInterval is the poll period of a viewer, about 60 frames per second.
const DefaultInterval = 16 * time.Millisecond

// Surface receives frames. Upload is only called from the viewer's goroutine
// and only when the frame changed since the previous upload.
type Surface interface {
	Upload(frame *models.ColorBuffer) error
}

// Viewer uploads a session's frames to a surface.
type Viewer struct {
	engine   *render.Engine
	surface  Surface
	interval time.Duration

	generation uint64
	uploads    atomic.Uint64
}

// NewViewer creates a viewer polling e every interval. A non-positive
// interval selects DefaultInterval.
func NewViewer(e *render.Engine, s Surface, interval time.Duration) *Viewer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Viewer{
		engine:   e,
		surface:  s,
		interval: interval,
	}
}

// Uploads returns how many frames reached the surface.
func (v *Viewer) Uploads() uint64 {
	return v.uploads.Load()
}

// Step polls the session once and uploads the frame if it changed. It
// reports whether an upload happened.
func (v *Viewer) Step() (bool, error) {
	frame, gen, err := v.engine.Frame()
	if err != nil {
		return false, err
	}
	if gen == v.generation {
		return false, nil
	}
	if err := v.surface.Upload(frame); err != nil {
		return false, err
	}
	v.generation = gen
	v.uploads.Add(1)
	return true, nil
}

// Run polls until ctx is done. A failed step is logged and retried on the
// next tick.
func (v *Viewer) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := logging.Logger()
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	log.Debug("viewer started", "interval", v.interval)
	for {
		select {
		case <-ctx.Done():
			log.Debug("viewer stopped", "uploads", v.Uploads())
			return nil
		case <-ticker.C:
			if _, err := v.Step(); err != nil {
				log.Warn("viewer step failed", "error", err)
			}
		}
	}
}
