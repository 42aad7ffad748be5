package krpano

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

// metadata mirrors one <krpano> (or nested <scene>) element: an unordered
// bag of recognized children plus the scene name, if any.
type metadata struct {
	children []topLevelTag
	name     string
}

type topLevelTagKind int

const (
	tagImage topLevelTagKind = iota
	tagScene
	tagSourceDetails
	tagData
	tagOther
)

// topLevelTag is one child of <krpano>/<scene>: an <image>, a nested
// <scene>, a <source_details>, a <data> blob, or anything else (ignored).
type topLevelTag struct {
	kind    topLevelTagKind
	image   krpanoImage
	scene   metadata
	subject string
	data    string
}

func parseMetadata(contents []byte) (metadata, error) {
	dec := xml.NewDecoder(bytes.NewReader(contents))
	for {
		tok, err := dec.Token()
		if err != nil {
			return metadata{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return parseMetadataBody(dec, se)
		}
	}
}

func parseMetadataBody(dec *xml.Decoder, start xml.StartElement) (metadata, error) {
	m := metadata{name: attrValue(start.Attr, "name")}
	for {
		tok, err := dec.Token()
		if err != nil {
			return m, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			tag, err := parseTopLevelTag(dec, t)
			if err != nil {
				return m, err
			}
			m.children = append(m.children, tag)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return m, nil
			}
		}
	}
}

func attrValue(attrs []xml.Attr, name string) string {
	v, _ := attrLookup(attrs, name)
	return v
}

func attrLookup(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value, true
		}
	}
	return "", false
}

func parseTopLevelTag(dec *xml.Decoder, se xml.StartElement) (topLevelTag, error) {
	switch strings.ToLower(se.Name.Local) {
	case "image":
		img, err := parseImage(dec, se)
		return topLevelTag{kind: tagImage, image: img}, err
	case "scene":
		scene, err := parseMetadataBody(dec, se)
		return topLevelTag{kind: tagScene, scene: scene}, err
	case "source_details":
		subject := attrValue(se.Attr, "subject")
		if err := dec.Skip(); err != nil {
			return topLevelTag{}, err
		}
		return topLevelTag{kind: tagSourceDetails, subject: subject}, nil
	case "data":
		text, err := readElementText(dec, se)
		return topLevelTag{kind: tagData, data: text}, err
	default:
		if err := dec.Skip(); err != nil {
			return topLevelTag{}, err
		}
		return topLevelTag{kind: tagOther}, nil
	}
}

func readElementText(dec *xml.Decoder, se xml.StartElement) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name.Local == se.Name.Local {
				return strings.TrimSpace(sb.String()), nil
			}
		}
	}
}

// getTitle looks for a <source_details subject="..."/> or a <data> element
// (whatever its name attribute) holding a JSON blob with a "title" field,
// among this element's direct children only — it does not recurse into
// scenes.
func (m metadata) getTitle() (string, bool) {
	for _, c := range m.children {
		if t, ok := c.getTitle(); ok {
			return t, true
		}
	}
	return "", false
}

func (t topLevelTag) getTitle() (string, bool) {
	switch t.kind {
	case tagSourceDetails:
		return t.subject, true
	case tagData:
		var md struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal([]byte(t.data), &md); err == nil {
			return md.Title, true
		}
		return "", false
	default:
		return "", false
	}
}

// imageInfo pairs one <image> with the scene-name path leading to it.
type imageInfo struct {
	image krpanoImage
	name  string
}

func (m metadata) imageInfos(name string) []imageInfo {
	var combined string
	if name == "" {
		combined = m.name
	} else {
		combined = name + " " + m.name
	}
	var out []imageInfo
	for _, c := range m.children {
		out = append(out, c.imageInfos(combined)...)
	}
	return out
}

func (t topLevelTag) imageInfos(name string) []imageInfo {
	switch t.kind {
	case tagImage:
		return []imageInfo{{image: t.image, name: name}}
	case tagScene:
		return t.scene.imageInfos(name)
	default:
		return nil
	}
}

// krpanoImage is one <image>: a base tile index, an optional default tile
// size, and the tree of level/shape elements beneath it.
type krpanoImage struct {
	tileSizeAttr *uint32
	baseIndex    uint32
	levels       []krpanoLevel
}

func (img krpanoImage) tileSize() (geometry.Vec2d, bool) {
	if img.tileSizeAttr == nil {
		return geometry.Vec2d{}, false
	}
	return geometry.Square(*img.tileSizeAttr), true
}

func parseImage(dec *xml.Decoder, se xml.StartElement) (krpanoImage, error) {
	img := krpanoImage{baseIndex: 1}
	if v, ok := attrLookup(se.Attr, "tilesize"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			u := uint32(n)
			img.tileSizeAttr = &u
		}
	}
	if v, ok := attrLookup(se.Attr, "baseindex"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			img.baseIndex = uint32(n)
		}
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return img, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			lvl, err := parseKrpanoLevel(dec, t)
			if err != nil {
				return img, err
			}
			img.levels = append(img.levels, lvl)
		case xml.EndElement:
			if t.Name.Local == se.Name.Local {
				return img, nil
			}
		}
	}
}

// krpanoLevelKind replaces the original's payload-carrying enum: Go has no
// such construct, so one struct carries every kind's fields and only the
// ones relevant to kind are populated.
type krpanoLevelKind int

const (
	kindLevel krpanoLevelKind = iota
	kindMobile
	kindTablet
	kindCube
	kindCylinder
	kindFlat
	kindLeft
	kindRight
	kindFront
	kindBack
	kindUp
	kindDown
	kindOther
)

var shapeKinds = map[string]krpanoLevelKind{
	"cube":     kindCube,
	"cylinder": kindCylinder,
	"flat":     kindFlat,
	"left":     kindLeft,
	"right":    kindRight,
	"front":    kindFront,
	"back":     kindBack,
	"up":       kindUp,
	"down":     kindDown,
}

var shapeNames = map[krpanoLevelKind]string{
	kindCube:     "Cube",
	kindCylinder: "Cylinder",
	kindFlat:     "Flat",
	kindLeft:     "Left",
	kindRight:    "Right",
	kindFront:    "Front",
	kindBack:     "Back",
	kindUp:       "Up",
	kindDown:     "Down",
}

type levelAttrs struct {
	width, height uint32
	shapes        []krpanoLevel
}

type shapeDesc struct {
	url      templateString
	multires *string
}

type krpanoLevel struct {
	kind     krpanoLevelKind
	attrs    levelAttrs
	children []krpanoLevel
	shape    shapeDesc
}

func parseKrpanoLevel(dec *xml.Decoder, se xml.StartElement) (krpanoLevel, error) {
	name := strings.ToLower(se.Name.Local)
	switch name {
	case "level":
		return parseLevelAttrs(dec, se)
	case "mobile":
		children, err := parseLevelChildren(dec, se)
		return krpanoLevel{kind: kindMobile, children: children}, err
	case "tablet":
		children, err := parseLevelChildren(dec, se)
		return krpanoLevel{kind: kindTablet, children: children}, err
	}
	if kind, ok := shapeKinds[name]; ok {
		shape, err := parseShapeDesc(dec, se)
		return krpanoLevel{kind: kind, shape: shape}, err
	}
	if err := dec.Skip(); err != nil {
		return krpanoLevel{}, err
	}
	return krpanoLevel{kind: kindOther}, nil
}

func parseLevelAttrs(dec *xml.Decoder, se xml.StartElement) (krpanoLevel, error) {
	var attrs levelAttrs
	if v, ok := attrLookup(se.Attr, "tiledimagewidth"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			attrs.width = uint32(n)
		}
	}
	if v, ok := attrLookup(se.Attr, "tiledimageheight"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			attrs.height = uint32(n)
		}
	}
	shapes, err := parseLevelChildren(dec, se)
	attrs.shapes = shapes
	return krpanoLevel{kind: kindLevel, attrs: attrs}, err
}

func parseLevelChildren(dec *xml.Decoder, se xml.StartElement) ([]krpanoLevel, error) {
	var out []krpanoLevel
	for {
		tok, err := dec.Token()
		if err != nil {
			return out, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			lvl, err := parseKrpanoLevel(dec, t)
			if err != nil {
				return out, err
			}
			out = append(out, lvl)
		case xml.EndElement:
			if t.Name.Local == se.Name.Local {
				return out, nil
			}
		}
	}
}

func parseShapeDesc(dec *xml.Decoder, se xml.StartElement) (shapeDesc, error) {
	tmpl, err := parseTemplateString(attrValue(se.Attr, "url"))
	if err != nil {
		return shapeDesc{}, err
	}
	var multires *string
	if v, ok := attrLookup(se.Attr, "multires"); ok {
		multires = &v
	}
	if err := dec.Skip(); err != nil {
		return shapeDesc{}, err
	}
	return shapeDesc{url: tmpl, multires: multires}, nil
}

// levelDesc is one resolved (size, tile size, url template) tier, still
// missing the base index and side name it will be completed with once its
// enclosing level chooses a tile size default.
type levelDesc struct {
	name        string
	size        geometry.Vec2d
	tileSize    geometry.Vec2d
	hasTileSize bool
	url         templateString
	levelIndex  int
}

// levelDescResult is either a levelDesc or a reason the entry was
// malformed — kept parallel to the multires index it came from.
type levelDescResult struct {
	desc levelDesc
	err  string
}

func (l krpanoLevel) levelDescriptions(size *geometry.Vec2d) []levelDescResult {
	switch l.kind {
	case kindLevel:
		s := geometry.Vec2d{X: l.attrs.width, Y: l.attrs.height}
		var out []levelDescResult
		for _, child := range l.attrs.shapes {
			out = append(out, child.levelDescriptions(&s)...)
		}
		return out
	case kindMobile, kindTablet:
		return nil
	default:
		name, ok := shapeNames[l.kind]
		if !ok {
			return nil
		}
		return shapeDescriptions(name, l.shape, size)
	}
}

func shapeDescriptions(name string, d shapeDesc, size *geometry.Vec2d) []levelDescResult {
	if d.multires != nil {
		entries := parseMultires(*d.multires)
		out := make([]levelDescResult, 0, len(entries))
		for i, e := range entries {
			if e.err != "" {
				out = append(out, levelDescResult{err: e.err})
				continue
			}
			out = append(out, levelDescResult{desc: levelDesc{
				name: name, size: e.size, tileSize: e.tileSize, hasTileSize: true,
				url: d.url, levelIndex: i,
			}})
		}
		return out
	}
	if size != nil {
		return []levelDescResult{{desc: levelDesc{name: name, size: *size, url: d.url, levelIndex: 0}}}
	}
	return []levelDescResult{{err: "missing multires attribute"}}
}

type multiresEntry struct {
	size     geometry.Vec2d
	tileSize geometry.Vec2d
	err      string
}

// parseMultires parses a "tilesize,WxH,WxHxT,..." string into one entry per
// comma-separated dimension group after the first (the shared tile size).
func parseMultires(s string) []multiresEntry {
	parts := strings.Split(s, ",")
	if len(parts) == 0 {
		return nil
	}
	tileSizeX, tileErr := strconv.ParseUint(parts[0], 10, 32)
	out := make([]multiresEntry, 0, len(parts)-1)
	for _, dimStr := range parts[1:] {
		if tileErr != nil {
			out = append(out, multiresEntry{err: "missing tile size"})
			continue
		}
		dims := strings.Split(dimStr, "x")
		if len(dims) == 0 || dims[0] == "" {
			out = append(out, multiresEntry{err: "missing width"})
			continue
		}
		x, err := strconv.ParseUint(dims[0], 10, 32)
		if err != nil {
			out = append(out, multiresEntry{err: "invalid width"})
			continue
		}
		y := x
		if len(dims) > 1 {
			if v, err := strconv.ParseUint(dims[1], 10, 32); err == nil {
				y = v
			}
		}
		tileSize := uint32(tileSizeX)
		if len(dims) > 2 {
			if v, err := strconv.ParseUint(dims[2], 10, 32); err == nil {
				tileSize = uint32(v)
			}
		}
		out = append(out, multiresEntry{
			size:     geometry.Vec2d{X: uint32(x), Y: uint32(y)},
			tileSize: geometry.Square(tileSize),
		})
	}
	return out
}

// templateString is a krpano URL template parsed into literal runs and
// "%0N<letter>" variable references (x/h/u/c => X, v/y/r => Y, s => cube
// side, l => level index).
type templateVariable int

const (
	varX templateVariable = iota
	varY
	varSide
	varLevelIndex
)

type templatePart struct {
	literal  string
	isVar    bool
	padding  int
	variable templateVariable
}

type templateString struct {
	parts []templatePart
}

func parseTemplateString(input string) (templateString, error) {
	runes := []rune(input)
	var parts []templatePart
	i := 0
	for i < len(runes) {
		start := i
		for i < len(runes) && runes[i] != '%' {
			i++
		}
		if i > start {
			parts = append(parts, templatePart{literal: string(runes[start:i])})
		}
		if i >= len(runes) {
			break
		}
		i++ // consume '%'
		if i >= len(runes) {
			return templateString{}, fmt.Errorf("krpano: invalid templating syntax in %q", input)
		}
		padding := 1
		for i < len(runes) && runes[i] == '0' {
			padding++
			i++
		}
		if i >= len(runes) {
			return templateString{}, fmt.Errorf("krpano: invalid templating syntax in %q", input)
		}
		c := runes[i]
		i++
		switch c {
		case 'h', 'x', 'u', 'c':
			parts = append(parts, templatePart{isVar: true, padding: padding, variable: varX})
		case 'v', 'y', 'r':
			parts = append(parts, templatePart{isVar: true, padding: padding, variable: varY})
		case 's':
			parts = append(parts, templatePart{isVar: true, padding: padding, variable: varSide})
		case 'l':
			parts = append(parts, templatePart{isVar: true, padding: padding, variable: varLevelIndex})
		case '%':
			parts = append(parts, templatePart{literal: "%"})
		default:
			return templateString{}, fmt.Errorf("krpano: unknown template variable '%c' in %q", c, input)
		}
	}
	return templateString{parts: parts}, nil
}

// xyPart is a templatePart with Side and LevelIndex already resolved to
// literals, leaving only X/Y references to fill in per tile.
type xyPart struct {
	literal string
	isVar   bool
	padding int
	isX     bool
}

type xyTemplate struct {
	parts []xyPart
}

type sideTemplate struct {
	name     string
	template xyTemplate
}

// allSides expands a template into one entry per cube face if it
// references the side variable, or a single unnamed entry otherwise.
func (t templateString) allSides(level int) []sideTemplate {
	hasSide := false
	for _, p := range t.parts {
		if p.isVar && p.variable == varSide {
			hasSide = true
			break
		}
	}
	sides := []string{""}
	if hasSide {
		sides = []string{"forward", "back", "left", "right", "up", "down"}
	}
	out := make([]sideTemplate, 0, len(sides))
	for _, side := range sides {
		out = append(out, sideTemplate{name: side, template: t.withSide(side, level)})
	}
	return out
}

func (t templateString) withSide(side string, level int) xyTemplate {
	parts := make([]xyPart, 0, len(t.parts))
	for _, p := range t.parts {
		if !p.isVar {
			parts = append(parts, xyPart{literal: p.literal})
			continue
		}
		switch p.variable {
		case varX:
			parts = append(parts, xyPart{isVar: true, padding: p.padding, isX: true})
		case varY:
			parts = append(parts, xyPart{isVar: true, padding: p.padding, isX: false})
		case varSide:
			first := ""
			if side != "" {
				first = side[:1]
			}
			parts = append(parts, xyPart{literal: first})
		case varLevelIndex:
			parts = append(parts, xyPart{literal: fmt.Sprintf("%0*d", p.padding, level)})
		}
	}
	return xyTemplate{parts: parts}
}

func (t xyTemplate) render(baseIndex uint32, pos geometry.Vec2d) string {
	var sb strings.Builder
	for _, p := range t.parts {
		if !p.isVar {
			sb.WriteString(p.literal)
			continue
		}
		v := baseIndex + pos.Y
		if p.isX {
			v = baseIndex + pos.X
		}
		fmt.Fprintf(&sb, "%0*d", p.padding, v)
	}
	return sb.String()
}
