package iiif

import (
	"testing"
)

const testInfoJSON = `{
  "@context" : "http://iiif.io/api/image/2/context.json",
  "@id" : "http://www.asmilano.it/fast/iipsrv.fcgi?IIIF=/opt/divenire/files/./tifs/05/36/536765.tif",
  "protocol" : "http://iiif.io/api/image",
  "width" : 15001,
  "height" : 48002,
  "tiles" : [
     { "width" : 512, "height" : 512, "scaleFactors" : [ 1, 2, 4, 8, 16, 32, 64, 128 ] }
  ],
  "profile" : [
     "http://iiif.io/api/image/2/level1.json",
     { "formats" : [ "jpg" ],
       "qualities" : [ "native","color","gray" ],
       "supports" : ["regionByPct","sizeByForcedWh","sizeByWh","sizeAboveFull","rotationBy90s","mirroring","gray"] }
  ]
}`

func TestZoomLevelsTileURLs(t *testing.T) {
	levels, err := zoomLevels([]byte(testInfoJSON))
	if err != nil {
		t.Fatalf("zoomLevels: %v", err)
	}
	if len(levels) != 8 {
		t.Fatalf("got %d levels, want 8 (one per scale factor)", len(levels))
	}
	level := levels[6].(*Level)
	if level.scaleFactor != 64 {
		t.Fatalf("levels[6].scaleFactor = %d, want 64", level.scaleFactor)
	}
	refs, err := level.NextTiles(nil)
	if err != nil {
		t.Fatalf("NextTiles: %v", err)
	}
	want := []string{
		"http://www.asmilano.it/fast/iipsrv.fcgi?IIIF=/opt/divenire/files/./tifs/05/36/536765.tif/0,0,15001,32768/234,512/0/default.jpg",
		"http://www.asmilano.it/fast/iipsrv.fcgi?IIIF=/opt/divenire/files/./tifs/05/36/536765.tif/0,32768,15001,15234/234,238/0/default.jpg",
	}
	if len(refs) != len(want) {
		t.Fatalf("got %d tiles, want %d", len(refs), len(want))
	}
	for i, w := range want {
		if refs[i].URL != w {
			t.Fatalf("refs[%d].URL = %q, want %q", i, refs[i].URL, w)
		}
	}
}

func TestBestQuality(t *testing.T) {
	cases := []struct {
		qualities []string
		want      string
	}{
		{nil, "default"},
		{[]string{}, "default"},
		{[]string{"color"}, "color"},
		{[]string{"grey"}, "grey"},
		{[]string{"zorglub"}, "zorglub"},
		{[]string{"zorglub", "color"}, "color"},
		{[]string{"bitonal", "gray"}, "gray"},
		{[]string{"bitonal", "gray", "color"}, "color"},
		{[]string{"default", "bitonal", "gray", "color"}, "default"},
	}
	for _, c := range cases {
		img := imageInfo{Qualities: c.qualities}
		if got := img.bestQuality(); got != c.want {
			t.Errorf("bestQuality(%v) = %q, want %q", c.qualities, got, c.want)
		}
	}
}

func TestImageInfoDeserialisation(t *testing.T) {
	data := `{
      "@context" : "http://iiif.io/api/image/2/context.json",
      "@id" : "http://www.example.org/image-service/abcd1234/1E34750D-38DB-4825-A38A-B60A345E591C",
      "protocol" : "http://iiif.io/api/image",
      "width" : 6000,
      "height" : 4000,
      "tiles": [
        {"width" : 512, "scaleFactors" : [1,2,4,8,16]}
      ],
      "profile" : [ "http://iiif.io/api/image/2/level2.json" ]
    }`
	levels, err := zoomLevels([]byte(data))
	if err != nil {
		t.Fatalf("zoomLevels: %v", err)
	}
	if len(levels) != 5 {
		t.Fatalf("got %d levels, want 5", len(levels))
	}
}

func TestProfileInfoMerge(t *testing.T) {
	var p profile
	raw := `[
		"http://iiif.io/api/image/2/level0.json",
		{"supports": ["sizeByWh"]}
	]`
	if err := p.UnmarshalJSON([]byte(raw)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	info := p.info()
	found := false
	for _, s := range info.Supports {
		if s == "sizeByWh" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected merged supports to include sizeByWh, got %v", info.Supports)
	}
}
