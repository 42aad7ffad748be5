// Package pff probes the Zoomify PFF servlet API: a single .pff file
// served behind a servlet that answers byte-range-style queries, first for
// an XML metadata header, then for a flat tile-offset index, before any
// zoom level can be produced. See
// https://github.com/lovasoa/pff-extract/wiki/Zoomify-PFF-file-format-documentation
package pff

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

const (
	requestTypeTileImage   uint8 = 0
	requestTypeMetadata    uint8 = 1
	requestTypeTileIndices uint8 = 2
)

// Probe drives the servlet's three-stage protocol: Init (only a base URL
// and file name known) asks for the metadata header; WithHeader (header
// parsed) asks for the tile-offset index; once that arrives, zoom levels
// can finally be built. Each stage depends on state from the previous
// one, so — like gap.Probe — a Probe value must be fresh per input and is
// mutated across AutoProbe's repeated calls.
type Probe struct {
	header *headerInfo
}

// New returns a Probe ready for a single input's probing round trips.
func New() *Probe { return &Probe{} }

func (p *Probe) Name() string { return "pff" }

func (p *Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	baseURL, paramsStr, ok := splitQuery(in.URI)
	if !ok {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}

	if p.header == nil {
		return p.probeInit(baseURL, paramsStr, in)
	}
	return p.probeWithHeader(in)
}

func (p *Probe) probeInit(baseURL, paramsStr string, in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	values, err := url.ParseQuery(paramsStr)
	if err != nil {
		return nil, dezoom.Wrap(fmt.Errorf("pff: invalid request parameters: %w", err))
	}
	file := values.Get("file")
	reqType, convErr := parseUint8(values.Get("requestType"))
	if convErr != nil || reqType != requestTypeMetadata {
		uri := fmt.Sprintf("%s?file=%s&requestType=%d", baseURL, url.QueryEscape(file), requestTypeMetadata)
		return nil, &dezoom.NeedsDataError{URI: uri}
	}

	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	reply, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, dezoom.Wrap(fmt.Errorf("pff: invalid meta information file: %w", err))
	}
	var header pffHeader
	if err := xml.Unmarshal([]byte(reply.Get("reply_data")), &header); err != nil {
		return nil, dezoom.Wrap(fmt.Errorf("pff: invalid meta information file: %w", err))
	}
	hi := headerInfo{BaseURL: baseURL, File: file, Header: header}
	p.header = &hi
	return nil, &dezoom.NeedsDataError{URI: hi.tilesIndexURL()}
}

func (p *Probe) probeWithHeader(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	reply, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, dezoom.Wrap(fmt.Errorf("pff: invalid meta information file: %w", err))
	}
	indices, err := parseTileIndices(reply.Get("reply_data"))
	if err != nil {
		return nil, dezoom.Wrap(err)
	}
	return zoomLevels(imageInfo{headerInfo: *p.header, tiles: indices}), nil
}

func splitQuery(uri string) (base, query string, ok bool) {
	idx := strings.Index(uri, "?")
	if idx < 0 {
		return "", "", false
	}
	return uri[:idx], uri[idx+1:], true
}

func parseUint8(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	return uint8(n), err
}

// pffHeader is the <PFFHEADER .../> metadata document.
type pffHeader struct {
	XMLName    xml.Name `xml:"PFFHEADER"`
	Width      uint32   `xml:"WIDTH,attr"`
	Height     uint32   `xml:"HEIGHT,attr"`
	TileSize   uint32   `xml:"TILESIZE,attr"`
	NumTiles   uint32   `xml:"NUMTILES,attr"`
	HeaderSize uint64   `xml:"HEADERSIZE,attr"`
	Version    uint32   `xml:"VERSION,attr"`
}

// headerInfo is everything needed to build a request against the pff
// servlet once the header is known: the servlet's base URL, the remote
// file name, and the parsed header itself.
type headerInfo struct {
	BaseURL string
	File    string
	Header  pffHeader
}

func (h headerInfo) requestURL(vers uint32, head, begin, end uint64, reqType uint8) string {
	return fmt.Sprintf("%s?file=%s&vers=%d&head=%d&begin=%d&end=%d&requestType=%d",
		h.BaseURL, url.QueryEscape(h.File), vers, head, begin, end, reqType)
}

// tilesIndexURL is the request for the flat table of byte offsets, one
// per tile, that follows the 0x424-byte PFF preamble and the header.
func (h headerInfo) tilesIndexURL() string {
	begin := 0x424 + h.Header.HeaderSize
	end := begin + 8*uint64(h.Header.NumTiles)
	return h.requestURL(h.Header.Version, h.Header.HeaderSize, begin, end, requestTypeTileIndices)
}

// imageInfo is a fully probed PFF file: its header plus the tile-offset
// index, enough to compute the byte range of any individual tile.
type imageInfo struct {
	headerInfo headerInfo
	tiles      []uint64
}

// tileURL requests the bytes between the end of the previous tile (or the
// end of the index table, for tile 0) and this tile's own recorded end
// offset.
func (info imageInfo) tileURL(tileNumber int) string {
	header := info.headerInfo.Header
	var begin uint64
	if tileNumber == 0 {
		begin = 0x424 + header.HeaderSize + 8*uint64(header.NumTiles)
	} else {
		begin = info.tiles[tileNumber-1]
	}
	end := info.tiles[tileNumber]
	return info.headerInfo.requestURL(header.Version, header.HeaderSize, begin, end, requestTypeTileImage)
}

// parseTileIndices parses the servlet's "first, offset offset offset..."
// reply_data format: every offset after the first is relative to it.
func parseTileIndices(s string) ([]uint64, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) < 2 {
		return nil, fmt.Errorf("pff: missing a part of tile indices string")
	}
	first, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pff: invalid tile index: %w", err)
	}
	fields := strings.Fields(parts[1])
	indices := make([]uint64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pff: invalid tile index: %w", err)
		}
		indices[i] = first + n
	}
	return indices, nil
}

// zoomLevels builds one level per halving of the image size down to
// (but not below) the tile size, mirroring the servlet's own pyramid —
// the servlet never serves a level smaller than one tile.
func zoomLevels(info imageInfo) []dezoom.ZoomLevel {
	header := info.headerInfo.Header
	size := geometry.Vec2d{X: header.Width, Y: header.Height}
	var tilesBefore uint32
	var levels []dezoom.ZoomLevel
	for size.X >= header.TileSize && size.Y >= header.TileSize {
		lvl := &Level{info: info, tilesBefore: tilesBefore, size: size}
		tilesBefore += lvl.tileCount()
		size = size.CeilDiv(geometry.Square(2))
		levels = append(levels, lvl)
	}
	return levels
}

// Level is one PFF resolution tier.
type Level struct {
	dezoom.Base
	info        imageInfo
	tilesBefore uint32
	size        geometry.Vec2d
}

func (l *Level) tileSizeVec() geometry.Vec2d {
	s := l.info.headerInfo.Header.TileSize
	return geometry.Vec2d{X: s, Y: s}
}

func (l *Level) grid() geometry.Vec2d { return l.size.CeilDiv(l.tileSizeVec()) }

func (l *Level) tileCount() uint32 {
	g := l.grid()
	return g.X * g.Y
}

func (l *Level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	grid := l.grid()
	tileSize := l.tileSizeVec()
	refs := make([]tile.Reference, 0, int(grid.X)*int(grid.Y))
	for x := uint32(0); x < grid.X; x++ {
		for y := uint32(0); y < grid.Y; y++ {
			i := l.tilesBefore + x + y*grid.X
			refs = append(refs, tile.Reference{
				URL:      l.info.tileURL(int(i)),
				Position: geometry.Vec2d{X: x, Y: y}.Mul(tileSize),
			})
		}
	}
	return refs, nil
}

func (l *Level) SizeHint() (geometry.Vec2d, bool) { return l.size, true }
func (l *Level) TileSize() (geometry.Vec2d, bool) { return l.tileSizeVec(), true }
func (l *Level) Title() (string, bool)            { return "Zoomify PFF", true }
