package visualization

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mcmlview/internal/models"
	"mcmlview/pkg/bitmap"
)

// MemorySurface is a headless surface keeping a copy of the last frame.
type MemorySurface struct {
	mu    sync.Mutex
	last  *models.ColorBuffer
	count int
}

// Upload stores a copy of frame.
func (s *MemorySurface) Upload(frame *models.ColorBuffer) error {
	c := frame.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = c
	s.count++
	return nil
}

// Last returns the most recent frame, or nil before the first upload.
func (s *MemorySurface) Last() *models.ColorBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Count returns the number of uploads so far.
func (s *MemorySurface) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// DirSurface writes every uploaded frame as a numbered bitmap file.
type DirSurface struct {
	dir  string
	next int
}

// NewDirSurface creates dir if needed.
func NewDirSurface(dir string) (*DirSurface, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating frame directory: %w", err)
	}
	return &DirSurface{dir: dir}, nil
}

// Upload writes frame to frame_NNNNN.bmp.
func (s *DirSurface) Upload(frame *models.ColorBuffer) error {
	name := filepath.Join(s.dir, fmt.Sprintf("frame_%05d.bmp", s.next))
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := bitmap.Write(file, frame); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	s.next++
	return nil
}
