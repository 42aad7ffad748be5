package iip

import (
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

func TestProbeAsksForMetadataCaseInsensitive(t *testing.T) {
	uri := "https://publications-images.artic.edu/fcgi-bin/iipsrv.fcgi?fif=osci/Renoir_11/Color_Corrected/G39094sm2.ptif&jtl=4,11"
	want := "https://publications-images.artic.edu/fcgi-bin/iipsrv.fcgi?fif=osci/Renoir_11/Color_Corrected/G39094sm2.ptif" + metaRequestParams

	p := Probe{}
	_, err := p.Probe(dezoom.Input{URI: uri})
	needsData, ok := err.(*dezoom.NeedsDataError)
	if !ok {
		t.Fatalf("expected NeedsDataError, got %v", err)
	}
	if needsData.URI != want {
		t.Fatalf("metadata URI = %q, want %q", needsData.URI, want)
	}
}

func TestParseMetadataAndTileURLs(t *testing.T) {
	contents := []byte("Max-size:512 512\nTile-size:256 256\nResolution-number:2")
	levels, err := iterLevels("http://test.com/", contents)
	if err != nil {
		t.Fatalf("iterLevels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(levels))
	}
	l0 := levels[0].(*Level)
	l1 := levels[1].(*Level)
	if got := l0.tileURL(geometry.Vec2d{X: 0, Y: 0}); got != "http://test.com/&JTL=0,0" {
		t.Fatalf("level0 tile url = %q", got)
	}
	if got := l1.tileURL(geometry.Vec2d{X: 0, Y: 1}); got != "http://test.com/&JTL=1,2" {
		t.Fatalf("level1 tile url = %q", got)
	}
}

func TestParseMetadataValues(t *testing.T) {
	source := []byte("\n        Max-size:23235 23968\n        Tile-size:256 256\n        Resolution-number:9\n    ")
	meta, err := parseMetadata(source)
	if err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
	if meta.size != (geometry.Vec2d{X: 23235, Y: 23968}) {
		t.Fatalf("size = %v", meta.size)
	}
	if meta.tileSize != (geometry.Vec2d{X: 256, Y: 256}) {
		t.Fatalf("tileSize = %v", meta.tileSize)
	}
	if meta.levels != 9 {
		t.Fatalf("levels = %d", meta.levels)
	}
}
