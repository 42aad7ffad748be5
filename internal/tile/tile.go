// Package tile holds the data types shared between probes, the downloader,
// and the encoders: tile references (not yet downloaded), decoded tiles,
// and the RectTiles helper for rectangular tile grids.
package tile

import (
	"image"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

// Reference is a URL plus the position in the target image where the
// decoded tile should be pasted. It is not yet downloaded.
type Reference struct {
	URL      string
	Position geometry.Vec2d
}

// Tile is a decoded pixel rectangle at a target position.
type Tile struct {
	Image    image.Image
	Position geometry.Vec2d
}

// Size returns the tile image's pixel dimensions.
func (t Tile) Size() geometry.Vec2d {
	b := t.Image.Bounds()
	return geometry.Vec2d{X: uint32(b.Dx()), Y: uint32(b.Dy())}
}

// BottomRight returns Position + Size.
func (t Tile) BottomRight() geometry.Vec2d {
	return t.Position.Add(t.Size())
}

// Empty returns a fully transparent tile of the given size at pos, used to
// fill in for tiles that failed to download (see the PartialDownload
// error in package driver).
func Empty(pos, size geometry.Vec2d) Tile {
	img := image.NewRGBA(image.Rect(0, 0, int(size.X), int(size.Y)))
	return Tile{Image: img, Position: pos}
}
