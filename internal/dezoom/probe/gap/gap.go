// Package gap probes Google Arts & Culture asset pages: an HTML page whose
// scraped image base URL and signing token are used to compute per-tile
// HMAC-signed URLs, and whose tiles are transparently AES-encrypted and
// must be decrypted after download.
package gap

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// Probe recognizes artsandculture.google.com asset pages. It needs two
// round trips: first the HTML page, to scrape the image path and signing
// token; then the tile-info XML document these identify, to learn the
// pyramid's level sizes. The page info scraped from the first round trip
// is kept on the Probe itself (mirroring the Rust dezoomer's
// Option<Arc<PageInfo>> field) so the second call can use it — AutoProbe
// keeps reusing the same Probe value across rounds for exactly this
// reason, so a fresh Probe must be constructed per input.
type Probe struct {
	page *pageInfo
}

// New returns a Probe ready for a single input's probing round trips.
func New() *Probe { return &Probe{} }

func (p *Probe) Name() string { return "google_arts_and_culture" }

func (p *Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if p.page == nil {
		if !strings.Contains(in.URI, "artsandculture.google.com") {
			return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
		}
		data, err := in.WithContents()
		if err != nil {
			return nil, err
		}
		page, err := parsePageInfo(string(data))
		if err != nil {
			return nil, dezoom.Wrap(err)
		}
		p.page = &page
		return nil, &dezoom.NeedsDataError{URI: page.tileInfoURL()}
	}

	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	var info tileInfo
	if err := xml.Unmarshal(data, &info); err != nil {
		return nil, dezoom.Wrap(fmt.Errorf("parsing tile info: %w", err))
	}
	levels := make([]dezoom.ZoomLevel, len(info.PyramidLevel))
	for z, lvl := range info.PyramidLevel {
		width := info.TileWidth*lvl.NumTilesX - lvl.EmptyPelsX
		height := info.TileHeight*lvl.NumTilesY - lvl.EmptyPelsY
		levels[z] = &Level{
			size:     geometry.Vec2d{X: width, Y: height},
			tileSize: geometry.Vec2d{X: info.TileWidth, Y: info.TileHeight},
			z:        z,
			page:     *p.page,
		}
	}
	return levels, nil
}

// tileInfo is the per-level tile grid description served from the page's
// base URL with "=g" appended.
type tileInfo struct {
	TileWidth    uint32         `xml:"tile_width,attr"`
	TileHeight   uint32         `xml:"tile_height,attr"`
	PyramidLevel []pyramidLevel `xml:"pyramid_level"`
}

type pyramidLevel struct {
	NumTilesX  uint32 `xml:"num_tiles_x,attr"`
	NumTilesY  uint32 `xml:"num_tiles_y,attr"`
	EmptyPelsX uint32 `xml:"empty_pels_x,attr"`
	EmptyPelsY uint32 `xml:"empty_pels_y,attr"`
}

// Level is one GAP pyramid resolution. Its tiles are transparently
// AES-encrypted: PostProcess attaches the decrypt step that every
// downloaded tile must pass through before it is decoded as an image.
type Level struct {
	dezoom.Base
	size     geometry.Vec2d
	tileSize geometry.Vec2d
	z        int
	page     pageInfo
}

func (l *Level) grid() geometry.Vec2d { return l.size.CeilDiv(l.tileSize) }

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	grid := l.grid()
	refs := make([]tile.Reference, 0, int(grid.X)*int(grid.Y))
	for x := uint32(0); x < grid.X; x++ {
		for y := uint32(0); y < grid.Y; y++ {
			refs = append(refs, tile.Reference{
				URL:      computeURL(l.page, x, y, l.z),
				Position: l.tileSize.Mul(geometry.Vec2d{X: x, Y: y}),
			})
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size, true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.tileSize, true }

func (l *Level) PostProcess() (dezoom.PostProcessFunc, bool) {
	return func(ref tile.Reference, data []byte) ([]byte, error) {
		return decrypt(data)
	}, true
}

func (l *Level) Title() (string, bool) {
	if l.page.Name != "" {
		return l.page.Name, true
	}
	return l.page.path(), true
}
