// Package bitmap writes frames as uncompressed 24-bit bottom-up BMP images,
// the format the remote viewer turns into an image blob.
package bitmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"mcmlview/internal/models"
)

const (
	// HeaderSize is the file header (14 bytes) plus the BITMAPINFOHEADER (40 bytes).
	HeaderSize = 0x36
	dibSize    = 0x28
	bitsPerPx  = 24
)

// ErrEmptyFrame is returned for frames without pixels.
var ErrEmptyFrame = errors.New("frame has no pixels")

// RowStride returns the padded byte length of one scan line.
func RowStride(width int) int {
	return (3*width + 3) &^ 3
}

// FileSize returns the encoded size of a width x height image. It equals
// 54+3*width*height whenever 3*width is a multiple of four.
func FileSize(width, height int) int {
	return HeaderSize + RowStride(width)*height
}

// Encode serializes the frame. Scan line 0 of the buffer is written first,
// which a bottom-up bitmap shows as its bottom row. Pixels are stored blue,
// green, red; alpha is dropped.
func Encode(buf *models.ColorBuffer) ([]byte, error) {
	w, h := buf.Width(), buf.Height()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyFrame, w, h)
	}

	out := make([]byte, FileSize(w, h))
	putHeader(out, w, h)

	stride := RowStride(w)
	for row := 0; row < h; row++ {
		src := buf.Row(row)
		dst := out[HeaderSize+row*stride:]
		for x := 0; x < w; x++ {
			dst[3*x+0] = src[4*x+2]
			dst[3*x+1] = src[4*x+1]
			dst[3*x+2] = src[4*x+0]
		}
	}
	return out, nil
}

// Write encodes the frame to w.
func Write(w io.Writer, buf *models.ColorBuffer) error {
	b, err := Encode(buf)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func putHeader(b []byte, w, h int) {
	le := binary.LittleEndian

	b[0], b[1] = 'B', 'M'
	le.PutUint32(b[0x02:], uint32(FileSize(w, h)))
	le.PutUint32(b[0x0A:], HeaderSize)

	le.PutUint32(b[0x0E:], dibSize)
	le.PutUint32(b[0x12:], uint32(w))
	le.PutUint32(b[0x16:], uint32(h))
	le.PutUint16(b[0x1A:], 1)
	le.PutUint16(b[0x1C:], bitsPerPx)
	// 0x1E compression stays zero (BI_RGB)
	le.PutUint32(b[0x22:], uint32(RowStride(w)*h))
	// resolution markers; the viewer ignores them
	b[0x27] = 1
	b[0x2B] = 1
}
