// Package generic probes a bare URL template like
// "http://example.com/tile_{{x}}_{{y}}.jpg", discovering the grid's extent
// by fetching tiles (via the dichotomy search in dichotomy.go) instead of
// reading any format-specific metadata.
package generic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// templateRE matches "{{x}}"/"{{y}}" (case-insensitively), with an optional
// ":0N" zero-padding width specifier.
var templateRE = regexp.MustCompile(`(?i)\{\{(?P<dimension>x|y)(?::0(?P<zeroes>\d+))?\}\}`)

// Probe recognizes any URI containing at least one {{x}}/{{y}} placeholder.
type Probe struct{}

func (Probe) Name() string { return "generic" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if !templateRE.MatchString(in.URI) {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}
	return []dezoom.ZoomLevel{&Level{urlTemplate: in.URI}}, nil
}

// Level is the single zoom level a template URI produces: its grid extent
// is unknown until the dichotomy search (probing one tile at a time, then
// backfilling the rectangle it settles on) converges.
type Level struct {
	dezoom.Base
	urlTemplate string
	dichotomy   dichotomy2d
	lastTile    geometry.Vec2d
	tileSize    geometry.Vec2d
	hasTileSize bool
	imageSize   geometry.Vec2d
	hasImageSize bool
	done        map[geometry.Vec2d]struct{}
}

func (l *Level) tileURLAt(x, y uint32) string {
	return templateRE.ReplaceAllStringFunc(l.urlTemplate, func(match string) string {
		groups := templateRE.FindStringSubmatch(match)
		names := templateRE.SubexpNames()
		var dimension, zeroes string
		for i, name := range names {
			switch name {
			case "dimension":
				dimension = groups[i]
			case "zeroes":
				zeroes = groups[i]
			}
		}
		num := x
		if strings.ToLower(dimension) == "y" {
			num = y
		}
		padding := 0
		if zeroes != "" {
			padding, _ = strconv.Atoi(zeroes)
		}
		return fmt.Sprintf("%0*d", padding, num)
	})
}

func (l *Level) tileRefAt(pos geometry.Vec2d) tile.Reference {
	return tile.Reference{
		URL:      l.tileURLAt(pos.X, pos.Y),
		Position: pos.Mul(l.tileSize),
	}
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous == nil {
		if l.done == nil {
			l.done = make(map[geometry.Vec2d]struct{})
		}
		l.done[l.lastTile] = struct{}{}
		return []tile.Reference{l.tileRefAt(l.lastTile)}, nil
	}

	if previous.HasTileSize && !l.hasTileSize {
		l.tileSize = previous.TileSize
		l.hasTileSize = true
	}
	previousSuccess := previous.Successes > 0

	if next, ok := l.dichotomy.next(previousSuccess); ok {
		l.lastTile = next
		if l.done == nil {
			l.done = make(map[geometry.Vec2d]struct{})
		}
		l.done[next] = struct{}{}
		return []tile.Reference{l.tileRefAt(next)}, nil
	}

	if len(l.done) == 0 {
		return nil, nil
	}

	lastTilePos := l.lastTile
	if l.hasTileSize {
		l.imageSize = l.tileSize.Mul(lastTilePos).Add(l.tileSize)
		l.hasImageSize = true
	}
	var refs []tile.Reference
	for y := uint32(0); y <= lastTilePos.Y; y++ {
		for x := uint32(0); x <= lastTilePos.X; x++ {
			pos := geometry.Vec2d{X: x, Y: y}
			if _, seen := l.done[pos]; seen {
				continue
			}
			refs = append(refs, l.tileRefAt(pos))
		}
	}
	l.done = make(map[geometry.Vec2d]struct{})
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.imageSize, l.hasImageSize }
func (l *Level) Title() (string, bool) {
	return fmt.Sprintf("Generic image with template %s", l.urlTemplate), true
}
