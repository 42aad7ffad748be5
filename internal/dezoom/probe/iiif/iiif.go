// Package iiif probes International Image Interoperability Framework
// (IIIF) Image API services: a JSON info.json document describing the
// full image size and the tile sizes/scale factors available, with tiles
// requested through IIIF's region/size/rotation/quality URL template.
package iiif

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// Probe recognizes IIIF Image API info.json documents.
type Probe struct{}

func (Probe) Name() string { return "iiif" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if !strings.HasSuffix(in.URI, "/info.json") {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}
	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	levels, err := zoomLevels(data)
	if err != nil {
		return nil, dezoom.Wrap(err)
	}
	return levels, nil
}

func zoomLevels(raw []byte) ([]dezoom.ZoomLevel, error) {
	var img imageInfo
	if err := json.Unmarshal(raw, &img); err != nil {
		return nil, fmt.Errorf("invalid IIIF info.json file: %w", err)
	}

	var levels []dezoom.ZoomLevel
	for _, ti := range img.tiles() {
		tileSize := ti.size()
		for _, scaleFactor := range ti.ScaleFactors {
			levels = append(levels, &Level{
				scaleFactor: scaleFactor,
				tileSize:    tileSize,
				info:        img,
			})
		}
	}
	return levels, nil
}

// Level is one IIIF scale factor: the whole image divided by scaleFactor,
// tiled at tileSize (measured in the scaled-down image's own pixels).
type Level struct {
	dezoom.Base
	scaleFactor uint32
	tileSize    geometry.Vec2d
	info        imageInfo
}

func (l *Level) size() geometry.Vec2d {
	return l.info.size().DivScalar(l.scaleFactor)
}

func (l *Level) grid() geometry.Vec2d { return l.size().CeilDiv(l.tileSize) }

// tileURL builds the IIIF region/size request for the tile at gridPos,
// cropping the requested region and size at the full image's edges
// (IIIF servers reject out-of-bounds regions rather than clamping them).
func (l *Level) tileURL(gridPos geometry.Vec2d) string {
	scaledTileSize := l.tileSize.MulScalar(l.scaleFactor)
	xyPos := gridPos.Mul(scaledTileSize)
	croppedRegion := geometry.MaxSizeInRect(xyPos, scaledTileSize, l.info.size())
	requestSize := croppedRegion.DivScalar(l.scaleFactor)
	return fmt.Sprintf("%s/%d,%d,%d,%d/%d,%d/0/%s.%s",
		l.info.ID, xyPos.X, xyPos.Y, croppedRegion.X, croppedRegion.Y,
		requestSize.X, requestSize.Y,
		l.info.bestQuality(), l.info.bestFormat())
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	grid := l.grid()
	refs := make([]tile.Reference, 0, int(grid.X)*int(grid.Y))
	for x := uint32(0); x < grid.X; x++ {
		for y := uint32(0); y < grid.Y; y++ {
			gridPos := geometry.Vec2d{X: x, Y: y}
			refs = append(refs, tile.Reference{
				URL:      l.tileURL(gridPos),
				Position: gridPos.Mul(l.tileSize),
			})
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size(), true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.tileSize, true }
func (l *Level) Title() (string, bool) {
	return fmt.Sprintf("IIIF image with %dx%d tiles", l.tileSize.X, l.tileSize.Y), true
}
