package nypl

import (
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

func TestProbeRewritesItemURL(t *testing.T) {
	uri := "https://digitalcollections.nypl.org/items/a14f3200-fac1-012f-f7a4-58d385a7bbd0#item-data"
	p := Probe{}
	_, err := p.Probe(dezoom.Input{URI: uri})
	needsData, ok := err.(*dezoom.NeedsDataError)
	if !ok {
		t.Fatalf("expected NeedsDataError, got %v", err)
	}
	want := "https://access.nypl.org/image.php/a14f3200-fac1-012f-f7a4-58d385a7bbd0/tiles/config.js"
	if needsData.URI != want {
		t.Fatalf("metadata URI = %q, want %q", needsData.URI, want)
	}
}

func TestParseMetadataAndLastLevel(t *testing.T) {
	contents := []byte(`{
	  "configs":{
	    "0":{
	      "size":{"width":"2422", "height":"3000"},
	      "tilesize":"256",
	      "overlap":"2",
	      "format":"png"
	    },
	    "90":{
	      "size":{"width":"3000", "height":"2422"},
	      "tilesize":"256",
	      "overlap":"2",
	      "format":"png"
	    }
	  }
	}`)
	uri := "https://access.nypl.org/image.php/a28d6e6b-b317-f008-e040-e00a1806635d/tiles/config.js"
	levels, err := iterLevels(uri, contents)
	if err != nil {
		t.Fatalf("iterLevels: %v", err)
	}
	last := levels[len(levels)-1].(*Level)
	if last.meta.size.X != 2422 || last.meta.size.Y != 3000 {
		t.Fatalf("size = %+v", last.meta.size)
	}
	if last.meta.tileSize != 256 || last.meta.overlap != 2 || last.meta.format != "png" {
		t.Fatalf("unexpected metadata: %+v", last.meta)
	}
	want := "https://access.nypl.org/image.php/a28d6e6b-b317-f008-e040-e00a1806635d/tiles/0/12/0_0.png"
	if got := last.tileURL(geometry.Vec2d{X: 0, Y: 0}); got != want {
		t.Fatalf("tileURL = %q, want %q", got, want)
	}
}
