package render

import "mcmlview/internal/models"

// FrameCache holds the last frame and its encoded bytes. It starts dirty.
// Stored buffers are never written again: a rebuild replaces them, so a
// reader holding an old frame keeps a consistent copy.
type FrameCache struct {
	dirty      bool
	frame      *models.ColorBuffer
	encoded    []byte
	generation uint64
}

// NewFrameCache returns an empty, dirty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{dirty: true}
}

// Invalidate marks the cached frame stale.
func (c *FrameCache) Invalidate() {
	c.dirty = true
}

// Dirty reports whether the next draw must rebuild the frame.
func (c *FrameCache) Dirty() bool {
	return c.dirty
}

// Store replaces the cached frame and marks the cache clean.
func (c *FrameCache) Store(frame *models.ColorBuffer, encoded []byte) {
	c.frame = frame
	c.encoded = encoded
	c.generation++
	c.dirty = false
}

// Frame returns the cached frame, its encoding and the number of rebuilds so far.
func (c *FrameCache) Frame() (*models.ColorBuffer, []byte, uint64) {
	return c.frame, c.encoded, c.generation
}
