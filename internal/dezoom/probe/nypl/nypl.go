// Package nypl probes New York Public Library Digital Collections item
// pages: the item URL carries an image id that must be substituted into a
// config.js metadata URL before any tile can be addressed.
package nypl

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"regexp"
	"strconv"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

const (
	imageViewPrefix = "https://digitalcollections.nypl.org/items/"
	metaPrefix      = "https://access.nypl.org/image.php/"
	metaPostfix     = "/tiles/config.js"
)

var imageIDRe = regexp.MustCompile(`https://digitalcollections\.nypl\.org/items/([a-f0-9\-]+)`)

// Probe recognizes NYPL item-view pages, and the config.js metadata URL
// those pages are rewritten into.
type Probe struct{}

func (Probe) Name() string { return "nypl" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if strings.HasPrefix(in.URI, imageViewPrefix) {
		m := imageIDRe.FindStringSubmatch(in.URI)
		if m == nil {
			return nil, dezoom.Wrap(fmt.Errorf("nypl: unable to extract an image id from %q", in.URI))
		}
		return nil, &dezoom.NeedsDataError{URI: metaPrefix + m[1] + metaPostfix}
	}
	if !strings.Contains(in.URI, metaPrefix) {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}
	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	levels, err := iterLevels(in.URI, data)
	if err != nil {
		return nil, dezoom.Wrap(err)
	}
	return levels, nil
}

func imageIDFromMetaURL(metaURL string) string {
	s := strings.ReplaceAll(metaURL, metaPrefix, "")
	return strings.ReplaceAll(s, metaPostfix, "")
}

// flexUint32 accepts a JSON number or a JSON string holding digits — the
// NYPL config.js encodes every dimension as a quoted string.
type flexUint32 uint32

func (n *flexUint32) UnmarshalJSON(data []byte) error {
	var asUint uint32
	if err := json.Unmarshal(data, &asUint); err == nil {
		*n = flexUint32(asUint)
		return nil
	}
	var asStr string
	if err := json.Unmarshal(data, &asStr); err != nil {
		return fmt.Errorf("nypl: expected a number or a numeric string, got %s", data)
	}
	v, err := strconv.ParseUint(asStr, 10, 32)
	if err != nil {
		return fmt.Errorf("nypl: expected a number or a numeric string, got %q", asStr)
	}
	*n = flexUint32(v)
	return nil
}

type metadataSize struct {
	Width  flexUint32 `json:"width"`
	Height flexUint32 `json:"height"`
}

type rawMetadata struct {
	Size        metadataSize `json:"size"`
	TileSize    *flexUint32  `json:"tile_size"`
	TileSizeAlt *flexUint32  `json:"tilesize"`
	Format      string       `json:"format"`
	Overlap     *flexUint32  `json:"overlap"`
}

func (r rawMetadata) toMetadata() metadata {
	m := metadata{
		size:   geometry.Vec2d{X: uint32(r.Size.Width), Y: uint32(r.Size.Height)},
		format: r.Format,
	}
	switch {
	case r.TileSize != nil:
		m.tileSize = uint32(*r.TileSize)
	case r.TileSizeAlt != nil:
		m.tileSize = uint32(*r.TileSizeAlt)
	}
	if r.Overlap != nil {
		m.overlap = uint32(*r.Overlap)
	}
	return m
}

type metadataRoot struct {
	Configs map[string]rawMetadata `json:"configs"`
}

// metadata is one orientation's ("0", "90", "180", "270" in the config.js
// map) pyramid description.
type metadata struct {
	size     geometry.Vec2d
	tileSize uint32
	format   string
	overlap  uint32
}

func (m metadata) levelCount() uint32 {
	maxDim := m.size.X
	if m.size.Y > maxDim {
		maxDim = m.size.Y
	}
	return uint32(bits.Len32(maxDim))
}

func iterLevels(uri string, contents []byte) ([]dezoom.ZoomLevel, error) {
	if len(contents) == 0 {
		return nil, fmt.Errorf("nypl: no metadata found; this image is probably not tiled, and you can download it directly")
	}
	base := imageIDFromMetaURL(uri)
	var root metadataRoot
	if err := json.Unmarshal(contents, &root); err != nil {
		return nil, fmt.Errorf("nypl: invalid metadata: %w", err)
	}
	raw, ok := root.Configs["0"]
	if !ok {
		return nil, fmt.Errorf("nypl: no metadata found; this image is probably not tiled")
	}
	meta := raw.toMetadata()
	levelCount := meta.levelCount()
	levels := make([]dezoom.ZoomLevel, 0, levelCount+1)
	for level := uint32(0); level <= levelCount; level++ {
		levels = append(levels, &Level{meta: meta, base: base, level: level})
	}
	return levels, nil
}

// Level is one NYPL resolution tier, identified by its own "level" index
// into https://access.nypl.org/image.php/{id}/tiles/0/{level}/{x}_{y}.{fmt}.
type Level struct {
	dezoom.Base
	meta  metadata
	base  string
	level uint32
}

func (l *Level) size() geometry.Vec2d {
	reverseLevel := l.meta.levelCount() - l.level
	return l.meta.size.DivScalar(1 << reverseLevel)
}

func (l *Level) tileSizeVec() geometry.Vec2d { return geometry.Square(l.meta.tileSize) }

func (l *Level) tileURL(pos geometry.Vec2d) string {
	return fmt.Sprintf("https://access.nypl.org/image.php/%s/tiles/0/%d/%d_%d.%s",
		l.base, l.level, pos.X, pos.Y, l.meta.format)
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	tileSize := l.tileSizeVec()
	grid := l.size().CeilDiv(tileSize)
	refs := make([]tile.Reference, 0, int(grid.X)*int(grid.Y))
	for y := uint32(0); y < grid.Y; y++ {
		for x := uint32(0); x < grid.X; x++ {
			pos := geometry.Vec2d{X: x, Y: y}
			var delta geometry.Vec2d
			if x != 0 {
				delta.X = l.meta.overlap
			}
			if y != 0 {
				delta.Y = l.meta.overlap
			}
			position := tileSize.Mul(pos).Sub(delta)
			refs = append(refs, tile.Reference{URL: l.tileURL(pos), Position: position})
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size(), true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.tileSizeVec(), true }
func (l *Level) Title() (string, bool)            { return "NYPL Image", true }
