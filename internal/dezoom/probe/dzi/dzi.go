// Package dzi probes Microsoft Deep Zoom Image (.dzi) pyramids: an XML (or
// embedded-JSON) descriptor giving the full image size and tile size, with
// tiles served as base_url/LEVEL/X_Y.FORMAT where LEVEL counts down from
// the full-resolution level to a single 1x1 tile, and interior tiles
// shifted by a fixed pixel overlap.
package dzi

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math/bits"
	"regexp"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/fetch"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

var tileURLPattern = regexp.MustCompile(`_files/\d+/\d+_\d+\.(jpe?g|png)$`)

// Probe recognizes .dzi descriptor URLs, and also a bare tile URL (it asks
// for the sibling .dzi file in that case).
type Probe struct{}

func (Probe) Name() string { return "deepzoom" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if loc := tileURLPattern.FindStringIndex(in.URI); loc != nil {
		metaURI := in.URI[:loc[0]] + ".dzi"
		return nil, &dezoom.NeedsDataError{URI: metaURI}
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

// size is the <Size Width="" Height=""/> element, reused between the XML
// and JSON descriptor shapes.
type size struct {
	Width  uint32 `xml:"Width,attr" json:"Width,string"`
	Height uint32 `xml:"Height,attr" json:"Height,string"`
}

// file is a .dzi descriptor, whether it arrived as XML or as an embedded
// JSON object in an OpenSeadragon inline configuration.
type file struct {
	XMLName  xml.Name `xml:"Image" json:"-"`
	Overlap  uint32   `xml:"Overlap,attr" json:"Overlap,string"`
	TileSize uint32   `xml:"TileSize,attr" json:"TileSize,string"`
	Format   string   `xml:"Format,attr" json:"Format"`
	Size     size     `xml:"Size" json:"Size"`
	URL      string   `xml:"Url,attr" json:"Url"`
}

func (f file) size() geometry.Vec2d     { return geometry.Vec2d{X: f.Size.Width, Y: f.Size.Height} }
func (f file) tileSize() geometry.Vec2d { return geometry.Vec2d{X: f.TileSize, Y: f.TileSize} }

// maxLevel returns ceil(log2(max(width,height))), the level number of the
// full-resolution tier.
func (f file) maxLevel() uint32 {
	s := f.size()
	n := s.X
	if s.Y > n {
		n = s.Y
	}
	if n <= 1 {
		return 0
	}
	return uint32(bits.Len32(n - 1))
}

// baseURL resolves the directory tiles are served from: either the
// descriptor's explicit Url, resolved relative to the resource URL, or
// resourceURL with its extension replaced by "_files".
func (f file) baseURL(resourceURL string) string {
	if f.URL != "" {
		rel := strings.TrimRight(f.URL, "/")
		return fetch.ResolveRelative(resourceURL, rel)
	}
	if dot := strings.LastIndex(resourceURL, "."); dot >= 0 {
		return resourceURL[:dot] + "_files"
	}
	return resourceURL + "_files"
}

func loadFromProperties(url string, contents []byte) ([]dezoom.ZoomLevel, error) {
	contents = fetch.RemoveBOM(contents)

	var f file
	if err := xml.Unmarshal(contents, &f); err == nil {
		levels, lerr := loadFromFile(url, f)
		if lerr == nil {
			return levels, nil
		}
	}

	var all []dezoom.ZoomLevel
	for _, obj := range embeddedJSONObjects(contents) {
		var f file
		if json.Unmarshal(obj, &f) != nil {
			continue
		}
		levels, err := loadFromFile(url, f)
		if err == nil {
			all = append(all, levels...)
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("unable to parse a dzi descriptor from %s", url)
	}
	return all, nil
}

// embeddedJSONObjects scans contents for every balanced-brace substring,
// inside-out, and returns each as a candidate to try unmarshaling as a
// descriptor. Descriptors can show up wrapped in an outer "Image" key, or
// nested inside a non-JSON JavaScript object literal (as in an inline
// OpenSeadragon viewer configuration) — trying every brace-balanced
// substring, not just the outermost one, finds the descriptor either way.
func embeddedJSONObjects(contents []byte) [][]byte {
	var objs [][]byte
	var starts []int
	for i, b := range contents {
		switch b {
		case '{':
			starts = append(starts, i)
		case '}':
			if n := len(starts); n > 0 {
				start := starts[n-1]
				starts = starts[:n-1]
				objs = append(objs, contents[start:i+1])
			}
		}
	}
	return objs
}

func loadFromFile(url string, f file) ([]dezoom.ZoomLevel, error) {
	if f.TileSize == 0 {
		return nil, fmt.Errorf("invalid tile size: the tile size cannot be zero")
	}
	base := f.baseURL(url)
	maxLevel := f.maxLevel()

	var levels []dezoom.ZoomLevel
	sz := f.size()
	levelNum := uint32(0)
	for {
		levels = append(levels, &Level{
			base:     base,
			size:     sz,
			tileSize: f.tileSize(),
			format:   f.Format,
			overlap:  f.Overlap,
			level:    maxLevel - levelNum,
		})
		if sz.X <= 1 && sz.Y <= 1 {
			break
		}
		sz = sz.CeilDiv(geometry.Square(2))
		levelNum++
	}
	return levels, nil
}

// Level is one Deep Zoom resolution tier.
type Level struct {
	dezoom.Base
	base     string
	size     geometry.Vec2d
	tileSize geometry.Vec2d
	format   string
	overlap  uint32
	level    uint32
}

func (l *Level) grid() geometry.Vec2d { return l.size.CeilDiv(l.tileSize) }

func (l *Level) tileRef(gridPos geometry.Vec2d) tile.Reference {
	url := fmt.Sprintf("%s/%d/%d_%d.%s", l.base, l.level, gridPos.X, gridPos.Y, l.format)
	delta := geometry.Vec2d{}
	if gridPos.X != 0 {
		delta.X = l.overlap
	}
	if gridPos.Y != 0 {
		delta.Y = l.overlap
	}
	return tile.Reference{URL: url, Position: l.tileSize.Mul(gridPos).Sub(delta)}
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	grid := l.grid()
	refs := make([]tile.Reference, 0, int(grid.X)*int(grid.Y))
	for x := uint32(0); x < grid.X; x++ {
		for y := uint32(0); y < grid.Y; y++ {
			refs = append(refs, l.tileRef(geometry.Vec2d{X: x, Y: y}))
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size, true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.tileSize, true }
func (l *Level) Title() (string, bool) {
	name := l.base
	if idx := strings.LastIndex(l.base, "/"); idx >= 0 {
		name = l.base[idx+1:]
	}
	return strings.TrimSuffix(name, "_files"), true
}
