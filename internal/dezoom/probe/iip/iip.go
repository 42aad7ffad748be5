// Package iip probes the IIPImage protocol: a FastCGI servlet answering
// &JTL=level,index tile requests, whose pyramid is described by a small
// "Key:value" metadata response fetched from the same endpoint with extra
// OBJ= query parameters appended.
// See https://iipimage.sourceforge.io/documentation/protocol/
package iip

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

const metaRequestParams = "&OBJ=Max-size&OBJ=Tile-size&OBJ=Resolution-number"

var fifRe = regexp.MustCompile(`(?i)\?FIF`)

// Probe recognizes IIPImage FastCGI query strings containing a FIF=
// parameter, then asks for the pyramid's metadata before producing levels.
type Probe struct{}

func (Probe) Name() string { return "IIPImage" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if strings.HasSuffix(in.URI, metaRequestParams) {
		data, err := in.WithContents()
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(in.URI, metaRequestParams)
		levels, err := iterLevels(base, data)
		if err != nil {
			return nil, dezoom.Wrap(err)
		}
		return levels, nil
	}
	if !fifRe.MatchString(in.URI) {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}
	base := in.URI
	if idx := strings.IndexByte(base, '&'); idx >= 0 {
		base = base[:idx]
	}
	return nil, &dezoom.NeedsDataError{URI: base + metaRequestParams}
}

// metadata is the parsed "Max-size:W H\nTile-size:W H\nResolution-number:N"
// response.
type metadata struct {
	size, tileSize geometry.Vec2d
	levels         uint32
}

func parseMetadata(contents []byte) (metadata, error) {
	var size, tileSize *geometry.Vec2d
	var levels *uint32
	for _, line := range strings.Split(string(contents), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		nums := strings.Fields(strings.TrimSpace(parts[1]))
		switch {
		case strings.EqualFold(key, "max-size"):
			if v, ok := parseVec2(nums); ok {
				size = &v
			}
		case strings.EqualFold(key, "tile-size"):
			if v, ok := parseVec2(nums); ok {
				tileSize = &v
			}
		case strings.EqualFold(key, "resolution-number"):
			if len(nums) > 0 {
				if n, err := strconv.ParseUint(nums[0], 10, 32); err == nil {
					l := uint32(n)
					levels = &l
				}
			}
		}
	}
	if size == nil {
		return metadata{}, fmt.Errorf("iip: missing key %q in the IIPImage metadata file", "Max-size")
	}
	if tileSize == nil {
		return metadata{}, fmt.Errorf("iip: missing key %q in the IIPImage metadata file", "Tile-size")
	}
	if levels == nil {
		return metadata{}, fmt.Errorf("iip: missing key %q in the IIPImage metadata file", "Resolution-number")
	}
	return metadata{size: *size, tileSize: *tileSize, levels: *levels}, nil
}

func parseVec2(nums []string) (geometry.Vec2d, bool) {
	if len(nums) < 2 {
		return geometry.Vec2d{}, false
	}
	x, err1 := strconv.ParseUint(nums[0], 10, 32)
	y, err2 := strconv.ParseUint(nums[1], 10, 32)
	if err1 != nil || err2 != nil {
		return geometry.Vec2d{}, false
	}
	return geometry.Vec2d{X: uint32(x), Y: uint32(y)}, true
}

func iterLevels(base string, contents []byte) ([]dezoom.ZoomLevel, error) {
	meta, err := parseMetadata(contents)
	if err != nil {
		return nil, err
	}
	levels := make([]dezoom.ZoomLevel, 0, meta.levels)
	for level := uint32(0); level < meta.levels; level++ {
		levels = append(levels, &Level{meta: meta, base: base, level: level})
	}
	return levels, nil
}

// Level is one IIPImage resolution: the full image halved once per level
// below the topmost (full-resolution) one.
type Level struct {
	dezoom.Base
	meta  metadata
	base  string
	level uint32
}

func (l *Level) size() geometry.Vec2d {
	reverseLevel := l.meta.levels - l.level - 1
	return l.meta.size.DivScalar(1 << reverseLevel)
}

func (l *Level) grid() geometry.Vec2d { return l.size().CeilDiv(l.meta.tileSize) }

func (l *Level) tileURL(pos geometry.Vec2d) string {
	width := l.grid().X
	tileIndex := pos.Y*width + pos.X
	return fmt.Sprintf("%s&JTL=%d,%d", l.base, l.level, tileIndex)
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
			refs = append(refs, tile.Reference{URL: l.tileURL(pos), Position: pos.Mul(l.meta.tileSize)})
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size(), true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.meta.tileSize, true }
func (l *Level) Title() (string, bool)            { return "IIPImage", true }
