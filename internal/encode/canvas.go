package encode

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// TileCopyError means a tile's position and size would have placed pixels
// outside the canvas — a probe reported geometry that the actual tiles
// don't back up.
type TileCopyError struct {
	X, Y, TileWidth, TileHeight, Width, Height uint32
}

func (e *TileCopyError) Error() string {
	return fmt.Sprintf(
		"cannot paste a %dx%d tile at (%d,%d) onto a %dx%d canvas",
		e.TileWidth, e.TileHeight, e.X, e.Y, e.Width, e.Height,
	)
}

// Canvas is a fully buffered in-memory image: every tile is pasted into an
// RGBA backing array as it arrives, in whatever order the downloader
// delivers it, then the whole thing is encoded once at the end. Use this
// for every output format except streaming PNG (see StreamingPNGWriter),
// which never needs the whole image resident in memory.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a blank canvas of the given size.
func NewCanvas(size geometry.Vec2d) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, int(size.X), int(size.Y)))}
}

// AddTile pastes t onto the canvas, cropping it at the canvas edge. It
// returns a TileCopyError if t's position is out of bounds.
func (c *Canvas) AddTile(t tile.Tile) error {
	canvasSize := c.size()
	maxSize := geometry.MaxSizeInRect(t.Position, t.Size(), canvasSize)
	if maxSize.X == 0 || maxSize.Y == 0 {
		ts := t.Size()
		return &TileCopyError{
			X: t.Position.X, Y: t.Position.Y,
			TileWidth: ts.X, TileHeight: ts.Y,
			Width: canvasSize.X, Height: canvasSize.Y,
		}
	}
	srcRect := image.Rect(0, 0, int(maxSize.X), int(maxSize.Y))
	dstRect := image.Rect(int(t.Position.X), int(t.Position.Y), int(t.Position.X)+int(maxSize.X), int(t.Position.Y)+int(maxSize.Y))
	draw.Draw(c.img, dstRect, t.Image, srcRect.Min, draw.Src)
	return nil
}

func (c *Canvas) size() geometry.Vec2d {
	b := c.img.Bounds()
	return geometry.Vec2d{X: uint32(b.Dx()), Y: uint32(b.Dy())}
}

// Image returns the backing image for encoding.
func (c *Canvas) Image() image.Image { return c.img }
