package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Write encodes d in the simulator's binary layout.
func Write(w io.Writer, d *Dataset, opts ...Option) error {
	o := buildOptions(opts)

	bw := bufio.NewWriterSize(w, 1<<20)
	if err := writeHeader(bw, o.order, d.Header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	var scratch [4]byte
	for l, layer := range d.layers {
		for _, v := range layer {
			o.order.PutUint32(scratch[:], math.Float32bits(v))
			if _, err := bw.Write(scratch[:]); err != nil {
				return fmt.Errorf("error writing layer %d: %w", l, err)
			}
		}
	}
	return bw.Flush()
}

// WriteFile writes d to path, creating parent directories. A ".zst" suffix
// compresses the file with zstd.
func WriteFile(path string, d *Dataset, opts ...Option) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating dataset directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return Write(f, d, opts...)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("error creating zstd encoder: %w", err)
	}
	if err := Write(enc, d, opts...); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Open loads the dataset stored at path. Files starting with a zstd frame
// are decompressed on the fly.
func Open(path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 1<<20)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}
	var src io.Reader = br
	if bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("error creating zstd decoder: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	d, err := Load(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
