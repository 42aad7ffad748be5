package iiif

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

// imageInfo is an IIIF Image API info.json document, tolerant of both the
// version-2 "tiles" array shape and the version-1 scale_factors/tile_width
// shape.
type imageInfo struct {
	ID            string     `json:"@id"`
	Width         uint32     `json:"width"`
	Height        uint32     `json:"height"`
	Qualities     []string   `json:"qualities,omitempty"`
	Formats       []string   `json:"formats,omitempty"`
	Profile       *profile   `json:"profile,omitempty"`
	Tiles         []tileInfo `json:"tiles,omitempty"`
	ScaleFactors  []uint32   `json:"scale_factors,omitempty"`
	TileWidth     *uint32    `json:"tile_width,omitempty"`
	TileHeight    *uint32    `json:"tile_height,omitempty"`
}

func (img imageInfo) size() geometry.Vec2d {
	return geometry.Vec2d{X: img.Width, Y: img.Height}
}

// tiles returns the declared tile sizes, falling back to a single
// 512x512, scaleFactors=[1] entry built out of the version-1 fields
// (or the plain default, if none of those are set either).
func (img imageInfo) tiles() []tileInfo {
	if len(img.Tiles) > 0 {
		return img.Tiles
	}
	info := defaultTileInfo()
	if img.TileWidth != nil {
		info.Width = *img.TileWidth
	}
	if img.TileHeight != nil {
		h := *img.TileHeight
		info.Height = &h
	}
	if len(img.ScaleFactors) > 0 {
		info.ScaleFactors = img.ScaleFactors
	}
	return []tileInfo{info}
}

func defaultTileInfo() tileInfo {
	return tileInfo{Width: 512, ScaleFactors: []uint32{1}}
}

// tileInfo is one entry of the "tiles" array: a tile size plus every scale
// factor it's available at.
type tileInfo struct {
	Width        uint32   `json:"width"`
	Height       *uint32  `json:"height,omitempty"`
	ScaleFactors []uint32 `json:"scaleFactors"`
}

func (t tileInfo) size() geometry.Vec2d {
	height := t.Width
	if t.Height != nil {
		height = *t.Height
	}
	return geometry.Vec2d{X: t.Width, Y: height}
}

// qualityOrder and formatOrder list values from least to most preferred;
// bestOf picks the most preferred value present in candidates, matching
// the last tied-maximum element if several share the top rank.
var qualityOrder = []string{"bitonal", "gray", "color", "native", "default"}
var formatOrder = []string{"webp", "gif", "bmp", "tif", "png", "jpg", "jpeg"}

func bestOf(candidates []string, order []string, fallback string) string {
	found := false
	bestScore := -1
	best := ""
	for _, c := range candidates {
		score := indexOf(order, c)
		if !found || score >= bestScore {
			bestScore = score
			best = c
			found = true
		}
	}
	if !found {
		return fallback
	}
	return best
}

func indexOf(xs []string, x string) int {
	for i, s := range xs {
		if s == x {
			return i
		}
	}
	return -1
}

// bestQuality picks the most preferred quality out of this info's
// qualities plus its profile's qualities, defaulting to "default".
func (img imageInfo) bestQuality() string {
	var candidates []string
	candidates = append(candidates, img.Qualities...)
	if img.Profile != nil {
		candidates = append(candidates, img.Profile.info().Qualities...)
	}
	return bestOf(candidates, qualityOrder, "default")
}

// bestFormat picks the most preferred format out of this info's formats
// plus its profile's formats, defaulting to "jpg".
func (img imageInfo) bestFormat() string {
	var candidates []string
	candidates = append(candidates, img.Formats...)
	if img.Profile != nil {
		candidates = append(candidates, img.Profile.info().Formats...)
	}
	return bestOf(candidates, formatOrder, "jpg")
}

// profileInfo is the compliance-level data a profile reference or inline
// object carries: which formats/qualities/features the service supports.
type profileInfo struct {
	Formats   []string
	Qualities []string
	Supports  []string
}

// profile is IIIF's untagged profile union: a bare compliance URL, an
// inline capabilities object, or an array mixing both (whose capabilities
// get merged).
type profile struct {
	reference string
	inline    *profileInfo
	multiple  []profile
}

func (p *profile) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(data, &p.reference)
	case '[':
		return json.Unmarshal(data, &p.multiple)
	default:
		var raw struct {
			Formats   []string `json:"formats,omitempty"`
			Qualities []string `json:"qualities,omitempty"`
			Supports  []string `json:"supports,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		p.inline = &profileInfo{Formats: raw.Formats, Qualities: raw.Qualities, Supports: raw.Supports}
		return nil
	}
}

// info resolves this profile to its merged capabilities. A named IIIF
// Image API 2 compliance reference (".../image/2/level0.json" to
// "level2.json") contributes the "default" quality and the "jpg" format
// that every such level serves; any other named reference contributes
// nothing. Inline capability objects and array-nested ones are merged in.
func (p *profile) info() profileInfo {
	if p == nil {
		return profileInfo{}
	}
	if p.inline != nil {
		return *p.inline
	}
	ref := strings.TrimPrefix(strings.TrimPrefix(p.reference, "http://"), "https://")
	if strings.HasPrefix(ref, "iiif.io/api/image/2/level") {
		return profileInfo{Formats: []string{"jpg"}, Qualities: []string{"default"}}
	}
	var merged profileInfo
	for i := range p.multiple {
		sub := p.multiple[i].info()
		merged.Formats = append(merged.Formats, sub.Formats...)
		merged.Qualities = append(merged.Qualities, sub.Qualities...)
		merged.Supports = append(merged.Supports, sub.Supports...)
	}
	return merged
}
