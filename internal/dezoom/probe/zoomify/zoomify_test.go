package zoomify

import (
	"reflect"
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

func TestLevelsRealNumTiles(t *testing.T) {
	// An image with 3 levels: 10x5, 6x2 and 2x2.
	props := imageProperties{Width: 10, Height: 5, TileSize: 3, NumTiles: 4 * 2}
	tileSize := geometry.Vec2d{X: 3, Y: 3}
	want := []levelInfo{
		{size: geometry.Vec2d{X: 2, Y: 2}, tileSize: tileSize, tilesBefore: 0},
		{size: geometry.Vec2d{X: 6, Y: 2}, tileSize: tileSize, tilesBefore: 1},
		{size: geometry.Vec2d{X: 10, Y: 5}, tileSize: tileSize, tilesBefore: 3},
	}
	got := levels(props)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("levels() = %+v, want %+v", got, want)
	}
}

func TestLevelsRecount(t *testing.T) {
	// https://github.com/lovasoa/dezoomify-rs/issues/35
	// get_tile_counts(2052, 3185, 256, 256, 117) gives:
	// level_tile_count: [1,2,12,35,117]
	// level_widths:  [128,256,514,1026,2052]
	// level_heights: [200,398,796,1592,3185]
	props := imageProperties{Width: 2052, Height: 3185, TileSize: 256, NumTiles: 117}
	ts := geometry.Vec2d{X: 256, Y: 256}
	want := []levelInfo{
		{size: geometry.Vec2d{X: 128, Y: 200}, tileSize: ts, tilesBefore: 0},
		{size: geometry.Vec2d{X: 256, Y: 398}, tileSize: ts, tilesBefore: 1},
		{size: geometry.Vec2d{X: 514, Y: 796}, tileSize: ts, tilesBefore: 1 + 2},
		{size: geometry.Vec2d{X: 1026, Y: 1592}, tileSize: ts, tilesBefore: 1 + 2 + 12},
		{size: geometry.Vec2d{X: 2052, Y: 3185}, tileSize: ts, tilesBefore: 1 + 2 + 12 + 35},
	}
	got := levels(props)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("levels() = %+v, want %+v", got, want)
	}
}

func TestTileGroup(t *testing.T) {
	ts := geometry.Vec2d{X: 256, Y: 256}
	l := levelInfo{size: geometry.Vec2d{X: 2052, Y: 3185}, tileSize: ts, tilesBefore: 50}
	numTilesX := l.size.CeilDiv(l.tileSize).X // 9
	pos := geometry.Vec2d{X: 3, Y: 2}
	want := (50 + 3 + 2*numTilesX) / 256
	if got := l.tileGroup(pos); got != want {
		t.Fatalf("tileGroup = %d, want %d", got, want)
	}
}

func TestLoadFromPropertiesBaseURL(t *testing.T) {
	xmlDoc := []byte(`<IMAGE_PROPERTIES WIDTH="10" HEIGHT="5" TILESIZE="3" NUMTILES="8" />`)
	out, err := loadFromProperties("http://example.com/img/ImageProperties.xml", xmlDoc)
	if err != nil {
		t.Fatalf("loadFromProperties: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d levels, want 3", len(out))
	}
	// descending: largest (10x5) first, assigned level=0
	largest := out[0].(*Level)
	if largest.info.size != (geometry.Vec2d{X: 10, Y: 5}) {
		t.Fatalf("largest level size = %v", largest.info.size)
	}
	if largest.baseURL != "http://example.com/img" {
		t.Fatalf("baseURL = %q", largest.baseURL)
	}
	refs, err := largest.NextTiles(nil)
	if err != nil {
		t.Fatalf("NextTiles: %v", err)
	}
	if len(refs) == 0 {
		t.Fatal("expected tile references")
	}
	for _, r := range refs {
		if !contains(r.URL, "TileGroup") || !contains(r.URL, "0-") {
			t.Errorf("unexpected tile URL shape: %s", r.URL)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
