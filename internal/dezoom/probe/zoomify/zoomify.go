// Package zoomify probes Zoomify's ImageProperties.xml format: a base URL
// plus a TileGroupN/Z-X-Y.jpg tile layout, where per-level tile counts are
// not stored directly but must be reconstructed from the image's full size.
package zoomify

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// Probe recognizes Zoomify's ImageProperties.xml URLs.
type Probe struct{}

func (Probe) Name() string { return "zoomify" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if !strings.Contains(in.URI, "/ImageProperties.xml") {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}
	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	levels, err := loadFromProperties(in.URI, data)
	if err != nil {
		return nil, dezoom.Wrap(err)
	}
	return levels, nil
}

// imageProperties is the root element of ImageProperties.xml.
type imageProperties struct {
	XMLName  xml.Name `xml:"IMAGE_PROPERTIES"`
	Width    uint32   `xml:"WIDTH,attr"`
	Height   uint32   `xml:"HEIGHT,attr"`
	TileSize uint32   `xml:"TILESIZE,attr"`
	NumTiles uint32   `xml:"NUMTILES,attr"`
}

func (p imageProperties) size() geometry.Vec2d     { return geometry.Vec2d{X: p.Width, Y: p.Height} }
func (p imageProperties) tileSize() geometry.Vec2d { return geometry.Vec2d{X: p.TileSize, Y: p.TileSize} }

// levelInfo describes one resolution level: its pixel size, tile size, and
// the count of tiles belonging to every level strictly smaller than it
// (used to compute TileGroupN).
type levelInfo struct {
	size       geometry.Vec2d
	tileSize   geometry.Vec2d
	tilesBefore uint32
}

// tileGroup returns the TileGroupN a tile at pos (grid coordinates) belongs
// to: Zoomify packs tiles into groups of 256 across the whole pyramid, in
// smallest-level-first order.
func (l levelInfo) tileGroup(pos geometry.Vec2d) uint32 {
	numTilesX := l.size.CeilDiv(l.tileSize).X
	return (l.tilesBefore + pos.X + pos.Y*numTilesX) / 256
}

// levels reimplements zoomify.js's level-reconstruction algorithm: repeatedly
// halve the image size until it fits in one tile, recording each level's
// tile count along the way. Official Zoomify exporters sometimes produce a
// NUMTILES that doesn't match this reconstruction (off-by-rounding in their
// own halving); when that happens, fall back to a second method that
// doubles a level-size ratio instead of halving floating-point dimensions.
// Levels are returned smallest first.
func levels(props imageProperties) []levelInfo {
	tileSize := props.tileSize()

	primary := func() ([]levelInfo, []uint32) {
		width := float64(props.Width)
		height := float64(props.Height)
		tileWidth := float64(tileSize.X)
		tileHeight := float64(tileSize.Y)
		var infos []levelInfo
		var tilesPerLevel []uint32
		for width > tileWidth || height > tileHeight {
			tiles := uint32(ceilF(width/tileWidth) * ceilF(height/tileHeight))
			tilesPerLevel = append(tilesPerLevel, tiles)
			infos = append(infos, levelInfo{
				size:     geometry.Vec2d{X: uint32(width), Y: uint32(height)},
				tileSize: tileSize,
			})
			width /= 2
			height /= 2
		}
		return infos, tilesPerLevel
	}

	infos, tilesPerLevel := primary()
	if sum(tilesPerLevel) != props.NumTiles {
		infos, tilesPerLevel = fallback(props, tileSize)
	}

	// infos is largest-to-smallest (built while halving from full size down);
	// reverse to smallest-first, matching the original's level_tiles.reverse().
	reverse(infos)
	reverseU32(tilesPerLevel)

	var totalBefore uint32
	for i := range infos {
		infos[i].tilesBefore = totalBefore
		totalBefore += tilesPerLevel[i]
	}
	return infos
}

// fallback doubles a level-size ratio starting from {2,2} instead of halving
// floating-point dimensions, rounding odd half-sizes up to the next even
// number. Used when the primary halving reconstruction's total tile count
// disagrees with the declared NUMTILES.
func fallback(props imageProperties, tileSize geometry.Vec2d) ([]levelInfo, []uint32) {
	var infos []levelInfo
	var tilesPerLevel []uint32
	size := props.size()
	ratio := geometry.Vec2d{X: 2, Y: 2}
	for {
		sizeInTiles := size.CeilDiv(tileSize)
		tilesPerLevel = append(tilesPerLevel, uint32(sizeInTiles.Area()))
		infos = append(infos, levelInfo{size: size, tileSize: tileSize})
		if size.X <= tileSize.X && size.Y <= tileSize.Y {
			break
		}
		size = props.size().Div(ratio)
		if size.X%2 != 0 {
			size.X++
		}
		if size.Y%2 != 0 {
			size.Y++
		}
		ratio = ratio.Mul(geometry.Vec2d{X: 2, Y: 2})
	}
	return infos, tilesPerLevel
}

func ceilF(f float64) float64 {
	i := float64(int64(f))
	if f > i {
		return i + 1
	}
	return i
}

func sum(xs []uint32) uint32 {
	var s uint32
	for _, x := range xs {
		s += x
	}
	return s
}

func reverse(infos []levelInfo) {
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
}

func reverseU32(xs []uint32) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

func loadFromProperties(uri string, data []byte) ([]dezoom.ZoomLevel, error) {
	var props imageProperties
	if err := xml.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("unable to parse ImageProperties.xml: %w", err)
	}
	baseURL := strings.SplitN(uri, "/ImageProperties.xml", 2)[0]

	ascending := levels(props) // smallest first
	descending := make([]levelInfo, len(ascending))
	for i, l := range ascending {
		descending[len(ascending)-1-i] = l
	}

	out := make([]dezoom.ZoomLevel, len(descending))
	for i, info := range descending {
		out[i] = &Level{baseURL: baseURL, info: info, level: i}
	}
	return out, nil
}

// Level is one Zoomify resolution: a fixed rectangular tile grid whose
// tiles are served from /TileGroupN/Z-X-Y.jpg under the properties file's
// base URL.
type Level struct {
	dezoom.Base
	baseURL string
	info    levelInfo
	level   int
	rect    *tile.RectTiles
}

func (l *Level) rectTiles() tile.RectTiles {
	if l.rect != nil {
		return *l.rect
	}
	rt := tile.NewRectTiles(tile.RectSpec{
		Size:     l.info.size,
		TileSize: l.info.tileSize,
		URL: func(gridPos geometry.Vec2d) string {
			return fmt.Sprintf("%s/TileGroup%d/%d-%d-%d.jpg",
				l.baseURL, l.info.tileGroup(gridPos), l.level, gridPos.X, gridPos.Y)
		},
	})
	l.rect = &rt
	return rt
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil // the whole grid is known up front, delivered in one batch
	}
	return l.rectTiles().Batch(), nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.info.size, true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.info.tileSize, true }
func (l *Level) Title() (string, bool) {
	return fmt.Sprintf("%dx%d", l.info.size.X, l.info.size.Y), true
}
