package encode

import (
	"io"
	"log"
	"sort"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

const bytesPerPixel = 3 // RGB

// imageStrip is one horizontal line of one tile: the unit PixelStreamer
// buffers and writes, since a tile can arrive before or after the rows
// that precede it in the final image.
type imageStrip struct {
	source *tile.Tile
	line   uint32
}

// stripsInTile splits t into one imageStrip per row that actually lands on
// the canvas (rows past the canvas edge are dropped).
func stripsInTile(t tile.Tile, canvasSize geometry.Vec2d) []imageStrip {
	height := geometry.MaxSizeInRect(t.Position, t.Size(), canvasSize).Y
	strips := make([]imageStrip, height)
	tt := t
	for line := uint32(0); line < height; line++ {
		strips[line] = imageStrip{source: &tt, line: line}
	}
	return strips
}

// pixelIndex returns the strip's position in the flattened row-major pixel
// stream: (position.y + line) * image_width + position.x.
func (s imageStrip) pixelIndex(imageSize geometry.Vec2d) int {
	y := s.source.Position.Y + s.line
	return int(y)*int(imageSize.X) + int(s.source.Position.X)
}

// size returns the strip's length in pixels, cropped at the canvas edge.
func (s imageStrip) size(canvasSize geometry.Vec2d) int {
	return int(geometry.MaxSizeInRect(s.source.Position, s.source.Size(), canvasSize).X)
}

func (s imageStrip) writePixels(imageSize geometry.Vec2d, startAt int, w io.Writer) error {
	maxSize := geometry.MaxSizeInRect(s.source.Position, s.source.Size(), imageSize)
	width := int(maxSize.X)
	rgb := make([]byte, bytesPerPixel)
	for x := startAt; x < width; x++ {
		r, g, b, _ := s.source.Image.At(x, int(s.line)).RGBA()
		rgb[0] = byte(r >> 8)
		rgb[1] = byte(g >> 8)
		rgb[2] = byte(b >> 8)
		if _, err := w.Write(rgb); err != nil {
			return err
		}
	}
	return nil
}

// PixelStreamer accepts tiles in any order and writes RGB pixels to its
// writer strictly in row-major order, top-left to bottom-right, so the
// output can be streamed into an encoder that never needs the whole image
// in memory. Tiles that complete the image out of order are held until
// their turn; pixels the image never receives are written as black,
// either because finalize is reached early, or because a later tile was
// expected to fill them but never arrived.
type PixelStreamer struct {
	strips       map[int]imageStrip
	keys         []int // sorted ascending, kept in sync with strips
	writer       io.Writer
	size         geometry.Vec2d
	currentIndex int
}

// NewPixelStreamer builds a streamer that writes RGB pixels for an image
// of the given size to w.
func NewPixelStreamer(w io.Writer, size geometry.Vec2d) *PixelStreamer {
	return &PixelStreamer{
		strips: make(map[int]imageStrip),
		writer: w,
		size:   size,
	}
}

// AddTile splits t into per-row strips and writes whatever prefix of the
// image is now contiguous starting from the current position.
func (p *PixelStreamer) AddTile(t tile.Tile) error {
	for _, strip := range stripsInTile(t, p.size) {
		key := strip.pixelIndex(p.size)
		if _, exists := p.strips[key]; !exists {
			p.insertKey(key)
		}
		p.strips[key] = strip
	}
	return p.advance(false)
}

func (p *PixelStreamer) insertKey(key int) {
	i := sort.SearchInts(p.keys, key)
	p.keys = append(p.keys, 0)
	copy(p.keys[i+1:], p.keys[i:])
	p.keys[i] = key
}

func (p *PixelStreamer) popMinKey() (int, bool) {
	if len(p.keys) == 0 {
		return 0, false
	}
	k := p.keys[0]
	p.keys = p.keys[1:]
	return k, true
}

// advance writes every pixel strip that is now contiguous with
// currentIndex. When finalize is true it also fills any gap between
// currentIndex and the next available strip with black pixels, instead of
// stopping and waiting for more tiles.
func (p *PixelStreamer) advance(finalize bool) error {
	for len(p.keys) > 0 {
		start := p.keys[0]
		if start <= p.currentIndex {
			p.popMinKey()
			strip, ok := p.strips[start]
			if !ok {
				continue
			}
			delete(p.strips, start)
			stripSize := strip.size(p.size)
			startStripIdx := p.currentIndex - start
			if startStripIdx < stripSize {
				if err := strip.writePixels(p.size, startStripIdx, p.writer); err != nil {
					return err
				}
				log.Printf("wrote a strip at position %d of size %d, skipping %d pixels",
					p.currentIndex, stripSize, startStripIdx)
				p.currentIndex += stripSize - startStripIdx
			}
		} else if finalize {
			if err := p.fillBlank(start); err != nil {
				return err
			}
		} else {
			break
		}
	}
	return nil
}

// fillBlank writes black pixels until the flattened pixel index until.
func (p *PixelStreamer) fillBlank(until int) error {
	if until > p.currentIndex {
		remaining := until - p.currentIndex
		log.Printf("filling incomplete image with %d pixels", remaining)
		blank := make([]byte, remaining*bytesPerPixel)
		if _, err := p.writer.Write(blank); err != nil {
			return err
		}
		p.currentIndex = until
	}
	return nil
}

// Finalize writes every remaining buffered strip, fills any trailing gap
// with black pixels, and flushes the writer if it supports flushing.
func (p *PixelStreamer) Finalize() error {
	if err := p.advance(true); err != nil {
		return err
	}
	imageSize := int(p.size.X) * int(p.size.Y)
	if err := p.fillBlank(imageSize); err != nil {
		return err
	}
	if f, ok := p.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
