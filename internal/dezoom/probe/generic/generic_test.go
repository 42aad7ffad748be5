package generic

import (
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

func TestTileURLTemplating(t *testing.T) {
	lvl := &Level{urlTemplate: "http://x.com/{{x:05}}_{{y}}"}
	if got := lvl.tileURLAt(10, 11); got != "http://x.com/00010_11" {
		t.Fatalf("tileURLAt(10,11) = %q", got)
	}
	if got := lvl.tileURLAt(123, 1); got != "http://x.com/00123_1" {
		t.Fatalf("tileURLAt(123,1) = %q", got)
	}
}

func TestGenericDezoomerDiscoversGrid(t *testing.T) {
	p := Probe{}
	levels, err := p.Probe(dezoom.Input{URI: "{{X}},{{Y}}"})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("got %d levels, want 1", len(levels))
	}
	lvl := levels[0]

	existingTiles := map[string]bool{
		"0,0": true, "1,0": true, "2,0": true,
		"0,1": true, "1,1": true, "2,1": true,
	}
	allTiles := map[string]geometry.Vec2d{}

	var previous *dezoom.FetchResult
	tries := 0
	for {
		refs, err := lvl.NextTiles(previous)
		if err != nil {
			t.Fatalf("NextTiles: %v", err)
		}
		if len(refs) == 0 {
			break
		}
		successes := 0
		for _, r := range refs {
			if existingTiles[r.URL] {
				successes++
				allTiles[r.URL] = r.Position
			}
		}
		previous = &dezoom.FetchResult{
			Count:       len(refs),
			Successes:   successes,
			TileSize:    geometry.Vec2d{X: 4, Y: 5},
			HasTileSize: true,
		}
		tries++
		if tries > 10 {
			t.Fatalf("took more than 10 rounds to discover the grid")
		}
	}

	want := map[string]geometry.Vec2d{
		"0,0": {X: 0, Y: 0}, "1,0": {X: 4, Y: 0}, "2,0": {X: 8, Y: 0},
		"0,1": {X: 0, Y: 5}, "1,1": {X: 4, Y: 5}, "2,1": {X: 8, Y: 5},
	}
	if len(allTiles) != len(want) {
		t.Fatalf("got %d discovered tiles, want %d: %v", len(allTiles), len(want), allTiles)
	}
	for url, pos := range want {
		got, ok := allTiles[url]
		if !ok {
			t.Fatalf("missing expected tile %q", url)
		}
		if got != pos {
			t.Fatalf("tile %q position = %v, want %v", url, got, pos)
		}
	}
}
