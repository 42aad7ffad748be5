// Package krpano probes krpano panorama viewers: a single XML document
// (cube, cylinder or flat panorama, optionally split into named scenes)
// describes one or more multi-resolution pyramids, each addressed through a
// small printf-like template string.
// See https://krpano.com/docu/xml/#top
package krpano

import (
	"fmt"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/fetch"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// Probe recognizes krpano XML documents. It has no cheap syntactic check of
// its own: it asks for the URI's contents and lets XML parsing reject
// anything that isn't a krpano document.
type Probe struct{}

func (Probe) Name() string { return "krpano" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
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

func loadFromProperties(baseURL string, contents []byte) ([]dezoom.ZoomLevel, error) {
	meta, err := parseMetadata(fetch.RemoveBOM(contents))
	if err != nil {
		return nil, fmt.Errorf("krpano: unable to parse the krpano xml file: %w", err)
	}
	title, _ := meta.getTitle()

	var levels []dezoom.ZoomLevel
	for _, info := range meta.imageInfos("") {
		rootTileSize, hasRootTileSize := info.image.tileSize()
		baseIndex := info.image.baseIndex
		for _, lvl := range info.image.levels {
			for _, desc := range lvl.levelDescriptions(nil) {
				if desc.err != "" {
					// a malformed level description doesn't invalidate the
					// rest of the document; it is simply skipped.
					continue
				}
				d := desc.desc
				levelIndex := d.levelIndex + int(baseIndex)
				for _, side := range d.url.allSides(levelIndex) {
					tileSize, hasTileSize := d.tileSize, d.hasTileSize
					if !hasTileSize {
						tileSize, hasTileSize = rootTileSize, hasRootTileSize
					}
					if !hasTileSize {
						continue
					}
					levels = append(levels, &Level{
						baseURL:   baseURL,
						size:      d.size,
						tileSize:  tileSize,
						baseIndex: baseIndex,
						template:  side.template,
						shapeName: d.name,
						sideName:  side.name,
						name:      info.name,
						title:     title,
					})
				}
			}
		}
	}
	return levels, nil
}

// Level is one krpano pyramid: a shape (cube face, cylinder, flat image...)
// at one resolution, addressed through its own resolved template string.
type Level struct {
	dezoom.Base
	baseURL   string
	size      geometry.Vec2d
	tileSize  geometry.Vec2d
	baseIndex uint32
	template  xyTemplate
	shapeName string
	sideName  string
	name      string
	title     string
}

func (l *Level) grid() geometry.Vec2d { return l.size.CeilDiv(l.tileSize) }

func (l *Level) tileURL(pos geometry.Vec2d) string {
	resolved := l.template.render(l.baseIndex, pos)
	return fetch.ResolveRelative(l.baseURL, resolved)
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	grid := l.grid()
	refs := make([]tile.Reference, 0, int(grid.X)*int(grid.Y))
	for y := uint32(0); y < grid.Y; y++ {
		for x := uint32(0); x < grid.X; x++ {
			pos := geometry.Vec2d{X: x, Y: y}
			refs = append(refs, tile.Reference{URL: l.tileURL(pos), Position: l.tileSize.Mul(pos)})
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size, true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.tileSize, true }

func (l *Level) Title() (string, bool) {
	if l.title == "" && l.name == "" {
		return "", false
	}
	return l.title + " " + l.name, true
}

func (l *Level) String() string {
	parts := make([]string, 0, 4)
	parts = append(parts, "Krpano")
	for _, s := range []string{l.shapeName, l.sideName, l.name} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	out := parts[0]
	for _, s := range parts[1:] {
		out += " " + s
	}
	return out
}
