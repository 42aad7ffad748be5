package encode

import (
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const idatChunkSize = 32 * 1024

// StreamingPNGWriter assembles a PNG directly from out-of-order tiles
// without ever holding the full decoded image in memory: a PixelStreamer
// produces RGB bytes in row-major order, a rowFilterWriter prefixes each
// scanline with the "None" filter-type byte the PNG format requires, a
// zlib.Writer deflates that, and an idatChunkWriter packs the compressed
// bytes into IDAT chunks as they fill up. image/png has no equivalent
// incremental writer (its Encoder.Encode takes a fully realized
// image.Image), so this is hand-rolled against the PNG chunk format using
// only compress/zlib, hash/crc32 and encoding/binary.
type StreamingPNGWriter struct {
	streamer *PixelStreamer
	idat     *idatChunkWriter
	zw       *zlib.Writer
}

// NewStreamingPNGWriter writes the PNG signature and IHDR chunk for an
// image of the given size, then returns a writer ready to accept tiles.
func NewStreamingPNGWriter(w io.Writer, size geometry.Vec2d) (*StreamingPNGWriter, error) {
	if err := writeSignatureAndIHDR(w, size); err != nil {
		return nil, err
	}
	idat := newIDATChunkWriter(w)
	zw := zlib.NewWriter(idat)
	rowW := newRowFilterWriter(zw, int(size.X)*bytesPerPixel)
	return &StreamingPNGWriter{
		streamer: NewPixelStreamer(rowW, size),
		idat:     idat,
		zw:       zw,
	}, nil
}

// AddTile pastes t into the stream, writing out any rows that are now
// contiguous with what has already been written.
func (s *StreamingPNGWriter) AddTile(t tile.Tile) error {
	return s.streamer.AddTile(t)
}

// Finalize fills any missing rows with black, closes the deflate stream,
// and writes the final IDAT and IEND chunks.
func (s *StreamingPNGWriter) Finalize() error {
	if err := s.streamer.Finalize(); err != nil {
		return err
	}
	if err := s.zw.Close(); err != nil {
		return err
	}
	return s.idat.finish()
}

func writeSignatureAndIHDR(w io.Writer, size geometry.Vec2d) error {
	if _, err := w.Write(pngSignature); err != nil {
		return err
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], size.X)
	binary.BigEndian.PutUint32(ihdr[4:8], size.Y)
	ihdr[8] = 8  // bit depth
	ihdr[9] = 2  // color type 2: truecolor (RGB, no alpha)
	ihdr[10] = 0 // compression method
	ihdr[11] = 0 // filter method
	ihdr[12] = 0 // interlace method: none
	return writeChunk(w, "IHDR", ihdr)
}

func writeChunk(w io.Writer, typ string, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, typ); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc.Sum32())
	_, err := w.Write(crcBuf[:])
	return err
}

// rowFilterWriter inserts a filter-type byte (0, "None") at the start of
// every rowBytes bytes written to it, regardless of how the caller's
// Write calls are chunked.
type rowFilterWriter struct {
	w        io.Writer
	rowBytes int
	pos      int
}

func newRowFilterWriter(w io.Writer, rowBytes int) *rowFilterWriter {
	return &rowFilterWriter{w: w, rowBytes: rowBytes}
}

func (r *rowFilterWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if r.pos == 0 {
			if _, err := r.w.Write([]byte{0}); err != nil {
				return total, err
			}
		}
		n := r.rowBytes - r.pos
		if n > len(p) {
			n = len(p)
		}
		if _, err := r.w.Write(p[:n]); err != nil {
			return total, err
		}
		p = p[n:]
		total += n
		r.pos += n
		if r.pos == r.rowBytes {
			r.pos = 0
		}
	}
	return total, nil
}

// idatChunkWriter buffers deflated bytes and packs them into IDAT chunks
// of up to idatChunkSize bytes as they accumulate.
type idatChunkWriter struct {
	w   io.Writer
	buf []byte
}

func newIDATChunkWriter(w io.Writer) *idatChunkWriter {
	return &idatChunkWriter{w: w, buf: make([]byte, 0, idatChunkSize)}
}

func (c *idatChunkWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := idatChunkSize - len(c.buf)
		n := space
		if n > len(p) {
			n = len(p)
		}
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(c.buf) == idatChunkSize {
			if err := c.flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (c *idatChunkWriter) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	if err := writeChunk(c.w, "IDAT", c.buf); err != nil {
		return err
	}
	c.buf = c.buf[:0]
	return nil
}

func (c *idatChunkWriter) finish() error {
	if err := c.flush(); err != nil {
		return err
	}
	return writeChunk(c.w, "IEND", nil)
}
