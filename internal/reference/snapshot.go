package reference

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/recon/internal/plane"
)

// ErrCorruptSnapshot is returned by ReadFrom for malformed input.
var ErrCorruptSnapshot = errors.New("reference: corrupt snapshot")

const (
	snapshotMagic   = "RREF"
	snapshotVersion = 1

	// maxSnapshotSamples bounds the allocation a snapshot header can request.
	maxSnapshotSamples = 1 << 28
)

// snapshotHeader precedes the samples inside the compressed stream.
// Samples follow as little-endian float32, plane by plane, row by row.
type snapshotHeader struct {
	Magic   [4]byte
	Version uint8
	Width   uint32
	Height  uint32
}

// WriteTo writes the finalized reference frame to w as a zstd stream.
// It implements io.WriterTo.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	if !s.finalized || s.buf == nil {
		return 0, ErrNotFinalized
	}

	cw := &countingWriter{w: w}
	enc, err := zstd.NewWriter(cw,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(enc)
	hdr := snapshotHeader{Version: snapshotVersion, Width: uint32(s.width), Height: uint32(s.height)}
	copy(hdr.Magic[:], snapshotMagic)
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		enc.Close()
		return cw.n, err
	}

	line := make([]byte, 4*s.width)
	for c := range 3 {
		for y := range s.height {
			row := s.buf.PlaneRow(c, y)[:s.width]
			for x, v := range row {
				binary.LittleEndian.PutUint32(line[4*x:], math.Float32bits(v))
			}
			if _, err := bw.Write(line); err != nil {
				enc.Close()
				return cw.n, err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return cw.n, err
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadFrom replaces the store contents with a snapshot written by WriteTo
// and marks it finalized. It implements io.ReaderFrom. On error the store
// is left unchanged.
func (s *Store) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return 0, err
	}
	defer dec.Close()
	if err := dec.Reset(cr); err != nil {
		return cr.n, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var hdr snapshotHeader
	if err := binary.Read(dec, binary.LittleEndian, &hdr); err != nil {
		return cr.n, fmt.Errorf("%w: header: %v", ErrCorruptSnapshot, err)
	}
	if string(hdr.Magic[:]) != snapshotMagic || hdr.Version != snapshotVersion {
		return cr.n, fmt.Errorf("%w: bad magic or version", ErrCorruptSnapshot)
	}
	w, h := int(hdr.Width), int(hdr.Height)
	if w <= 0 || h <= 0 || uint64(w)*uint64(h) > maxSnapshotSamples {
		return cr.n, fmt.Errorf("%w: dimensions %dx%d", ErrCorruptSnapshot, w, h)
	}

	buf, err := plane.NewImage3F(w, h)
	if err != nil {
		return cr.n, err
	}
	line := make([]byte, 4*w)
	for c := range 3 {
		for y := range h {
			if _, err := io.ReadFull(dec, line); err != nil {
				return cr.n, fmt.Errorf("%w: plane %d row %d: %v", ErrCorruptSnapshot, c, y, err)
			}
			row := buf.PlaneRow(c, y)
			for x := range row {
				row[x] = math.Float32frombits(binary.LittleEndian.Uint32(line[4*x:]))
			}
		}
	}

	s.buf = buf
	s.width, s.height = w, h
	s.finalized = true
	return cr.n, nil
}

// Frame returns a copy of the saved frame, or nil if none is finalized.
func (s *Store) Frame() *plane.Image3F {
	if !s.finalized || s.buf == nil {
		return nil
	}
	out, err := plane.NewImage3F(s.width, s.height)
	if err != nil {
		return nil
	}
	plane.CopyRect(out.Bounds(), s.buf, out)
	return out
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
