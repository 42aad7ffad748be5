// Package customyaml probes a small user-authored "tiles.yaml" format: a
// set of integer variables ranging over their declared bounds, combined
// into every possible context and fed through expr-lang expressions that
// produce a tile URL and its (x, y) position.
package customyaml

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

const uriSuffix = "tiles.yaml"

// Probe recognizes any URI ending in "tiles.yaml": the whole pyramid is
// described by that single YAML document, with no further round trips.
type Probe struct{}

func (Probe) Name() string { return "custom" }

func (p Probe) Probe(in dezoom.Input) ([]dezoom.ZoomLevel, error) {
	if !strings.HasSuffix(in.URI, uriSuffix) {
		return nil, &dezoom.WrongDezoomerError{Name: p.Name()}
	}
	data, err := in.WithContents()
	if err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dezoom.Wrap(fmt.Errorf("custom: %w", err))
	}
	refs, err := doc.tileSet.tiles()
	if err != nil {
		return nil, dezoom.Wrap(err)
	}
	headers := doc.headers
	if len(headers) == 0 {
		headers = defaultHeaders()
	}
	return []dezoom.ZoomLevel{&level{refs: refs, headers: headers}}, nil
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; dezoomify)",
	}
}

// document is the whole YAML file: a tileSet plus optional extra HTTP
// headers, decoded from the same top-level mapping.
type document struct {
	tileSet tileSet
	headers map[string]string
}

func (d *document) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&d.tileSet); err != nil {
		return err
	}
	var rest struct {
		Headers map[string]string `yaml:"headers"`
	}
	if err := node.Decode(&rest); err != nil {
		return err
	}
	d.headers = rest.Headers
	return nil
}

// level is the single (and only) ZoomLevel a tiles.yaml file produces: all
// of its tile references are known up front.
type level struct {
	dezoom.Base
	refs    []tile.Reference
	headers map[string]string
}

func (l *level) NextTiles(previous *dezoom.FetchResult) ([]tile.Reference, error) {
	if previous != nil {
		return nil, nil
	}
	return l.refs, nil
}

func (l *level) HTTPHeaders() map[string]string { return l.headers }
