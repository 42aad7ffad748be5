package tile

import "github.com/dezoomify/dezoomify-go/internal/geometry"

// RectSpec describes a rectangular, regularly-tiled zoom level: a known
// overall size and a known tile size. URL turns a tile's grid
// coordinates (not pixel position) into its download URL.
//
// The Zoomify level builds its tile grid from a RectTiles made from a
// RectSpec instead of iterating the grid itself.
type RectSpec struct {
	Size     geometry.Vec2d
	TileSize geometry.Vec2d
	URL      func(gridPos geometry.Vec2d) string
}

// RectTiles generates references for a RectSpec, covering [0, Size); the
// expected size of an edge tile is cropped to Size (ExpectedSize). The
// whole grid is returned in one shot by Batch, or one reference at a time
// by At.
type RectTiles struct {
	spec RectSpec
	grid geometry.Vec2d // number of tiles in each dimension
}

// NewRectTiles builds the generator for spec. TileSize must be
// nonzero in both dimensions.
func NewRectTiles(spec RectSpec) RectTiles {
	return RectTiles{spec: spec, grid: spec.Size.CeilDiv(spec.TileSize)}
}

// Grid returns the number of tiles in each dimension (ceil_div(size, tile_size)).
func (r RectTiles) Grid() geometry.Vec2d {
	return r.grid
}

// Count returns the total number of tiles in the grid.
func (r RectTiles) Count() int {
	return int(r.grid.X) * int(r.grid.Y)
}

// At returns the tile reference for grid coordinate (i, j): its URL and its
// pixel paste position. The reference carries no size; see ExpectedSize.
func (r RectTiles) At(i, j uint32) Reference {
	gridPos := geometry.Vec2d{X: i, Y: j}
	pastePos := gridPos.Mul(r.spec.TileSize)
	return Reference{URL: r.spec.URL(gridPos), Position: pastePos}
}

// ExpectedSize returns the decoded size expected for the tile at grid
// coordinate (i, j): full tile size, cropped at the canvas edge.
func (r RectTiles) ExpectedSize(i, j uint32) geometry.Vec2d {
	pastePos := (geometry.Vec2d{X: i, Y: j}).Mul(r.spec.TileSize)
	return geometry.MaxSizeInRect(pastePos, r.spec.TileSize, r.spec.Size)
}

// Batch returns every tile reference in the grid, column by column (x
// outer, y inner), the same nesting as the original dezoomify-rs
// `(0..w).flat_map(x => (0..h).map(y => ...))`.
func (r RectTiles) Batch() []Reference {
	refs := make([]Reference, 0, r.Count())
	for x := uint32(0); x < r.grid.X; x++ {
		for y := uint32(0); y < r.grid.Y; y++ {
			refs = append(refs, r.At(x, y))
		}
	}
	return refs
}
