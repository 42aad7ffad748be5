package dzi

import (
	"strings"
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
)

func loadLevels(t *testing.T, uri, contents string) []dezoom.ZoomLevel {
	t.Helper()
	levels, err := loadFromProperties(uri, []byte(contents))
	if err != nil {
		t.Fatalf("loadFromProperties: %v", err)
	}
	return levels
}

const dziXML = `<?xml version="1.0" encoding="UTF-8"?>
<Image TileSize="256" Overlap="1" Format="jpg"
	xmlns="http://schemas.microsoft.com/deepzoom/2008">
	<Size Width="5393" Height="3852"/>
</Image>`

func TestDzi(t *testing.T) {
	levels := loadLevels(t, "http://example.com/test.dzi", dziXML)
	if len(levels) == 0 {
		t.Fatal("expected at least one level")
	}
	full := levels[0].(*Level)
	size, ok := full.SizeHint()
	if !ok || size.X != 5393 || size.Y != 3852 {
		t.Fatalf("size = %v, ok=%v", size, ok)
	}
	if full.level != 13 {
		t.Fatalf("max level = %d, want 13", full.level)
	}
}

const dziJSON = `{"Image":{"xmlns":"http://schemas.microsoft.com/deepzoom/2008",
	"Url":"","Format":"jpg","Overlap":"1","TileSize":"256",
	"Size":{"Height":"3852","Width":"5393"}}}`

func TestDziJSON(t *testing.T) {
	// The top-level wrapper key "Image" means our flat `file` struct won't
	// unmarshal directly from the outer object; embeddedJSONObjects also
	// captures the inner object, which does unmarshal successfully.
	levels, err := loadFromProperties("http://example.com/test.dzi", []byte(dziJSON))
	if err != nil {
		t.Fatalf("loadFromProperties: %v", err)
	}
	found := false
	for _, lvl := range levels {
		full := lvl.(*Level)
		if size, ok := full.SizeHint(); ok && size.X == 5393 && size.Y == 3852 {
			found = true
			if full.level != 13 {
				t.Fatalf("max level = %d, want 13", full.level)
			}
		}
	}
	if !found {
		t.Fatal("no level with the expected size was produced")
	}
}

func TestPanorama(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<Image TileSize="256" Overlap="2" Format="jpg"
	xmlns="http://schemas.microsoft.com/deepzoom/2008">
	<Size Width="600" Height="300"/>
</Image>`
	levels := loadLevels(t, "http://example.com/test.dzi", xml)
	if len(levels) != 11 {
		t.Fatalf("got %d levels, want 11", len(levels))
	}
	second := levels[1].(*Level)
	refs, err := second.NextTiles(nil)
	if err != nil {
		t.Fatalf("NextTiles: %v", err)
	}
	if len(refs) < 2 {
		t.Fatalf("expected at least 2 tiles, got %d", len(refs))
	}
	if got := refs[0].URL; got != "http://example.com/test_files/9/0_0.jpg" {
		t.Fatalf("refs[0].URL = %q", got)
	}
	if got := refs[1].URL; got != "http://example.com/test_files/9/1_0.jpg" {
		t.Fatalf("refs[1].URL = %q", got)
	}
}

func TestDziWithBOM(t *testing.T) {
	bom := "\xEF\xBB\xBF"
	levels := loadLevels(t, "http://example.com/test.dzi", bom+dziXML)
	if len(levels) == 0 {
		t.Fatal("expected at least one level")
	}
}

const openSeadragonJS = `
<html><body><script>
var viewer = OpenSeadragon({
	id: "viewer",
	tileSources: {
		"Url": "http://example.com/tiles/test_files/",
		"Format": "jpg",
		"Overlap": "1",
		"TileSize": "256",
		"Size": {"Width": "7026", "Height": "9221"}
	}
});
</script></body></html>`

func TestOpenSeadragonJavascript(t *testing.T) {
	levels, err := loadFromProperties("http://example.com/viewer.html", []byte(openSeadragonJS))
	if err != nil {
		t.Fatalf("loadFromProperties: %v", err)
	}
	full := levels[0].(*Level)
	size, ok := full.SizeHint()
	if !ok || size.X != 7026 || size.Y != 9221 {
		t.Fatalf("size = %v, ok=%v", size, ok)
	}
	refs, err := full.NextTiles(nil)
	if err != nil {
		t.Fatalf("NextTiles: %v", err)
	}
	if len(refs) == 0 {
		t.Fatal("expected at least one tile")
	}
	if !strings.HasPrefix(refs[0].URL, "http://example.com/tiles/test_files/") {
		t.Fatalf("refs[0].URL = %q", refs[0].URL)
	}
}

func TestTileURLNeedsMetadata(t *testing.T) {
	p := Probe{}
	in := dezoom.Input{URI: "http://example.com/test_files/9/0_0.jpg"}
	_, err := p.Probe(in)
	nd, ok := err.(*dezoom.NeedsDataError)
	if !ok {
		t.Fatalf("expected NeedsDataError, got %T: %v", err, err)
	}
	if nd.URI != "http://example.com/test.dzi" {
		t.Fatalf("needed URI = %q", nd.URI)
	}
}

func TestOverlapShiftsInteriorTilePosition(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<Image TileSize="10" Overlap="2" Format="jpg"
	xmlns="http://schemas.microsoft.com/deepzoom/2008">
	<Size Width="30" Height="10"/>
</Image>`
	levels := loadLevels(t, "http://example.com/test.dzi", xml)
	full := levels[0].(*Level)
	refs, err := full.NextTiles(nil)
	if err != nil {
		t.Fatalf("NextTiles: %v", err)
	}
	if refs[0].Position.X != 0 {
		t.Fatalf("edge tile position.X = %d, want 0", refs[0].Position.X)
	}
	for _, r := range refs {
		if strings.Contains(r.URL, "/1_0.") {
			if r.Position.X != 10-2 {
				t.Fatalf("interior tile position.X = %d, want %d", r.Position.X, 10-2)
			}
		}
	}
}
