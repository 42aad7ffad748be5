package pff

import (
	"encoding/xml"
	"net/url"
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
)

func TestParseTileIndices(t *testing.T) {
	cases := []struct {
		in   string
		want []uint64
	}{
		{"10, 1 2 3", []uint64{11, 12, 13}},
		{"10,        0       20", []uint64{10, 30}},
	}
	for _, c := range cases {
		got, err := parseTileIndices(c.in)
		if err != nil {
			t.Fatalf("parseTileIndices(%q): %v", c.in, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("parseTileIndices(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("parseTileIndices(%q) = %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestParseTileIndicesTooShort(t *testing.T) {
	if _, err := parseTileIndices("10"); err == nil {
		t.Fatal("expected an error for a string with no offsets")
	}
}

func TestDeserializePffHeader(t *testing.T) {
	raw := []byte(`<PFFHEADER WIDTH="45616" HEIGHT="31653" TILESIZE="375" NUMTILES="5541" HEADERSIZE="15331" VERSION="106"/>`)
	var header pffHeader
	if err := xml.Unmarshal(raw, &header); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if header.Width != 45616 || header.Height != 31653 || header.TileSize != 375 ||
		header.NumTiles != 5541 || header.HeaderSize != 15331 || header.Version != 106 {
		t.Fatalf("unexpected header: %+v", header)
	}

	hi := headerInfo{BaseURL: "http://x.com/", File: "x", Header: header}
	want := "http://x.com/?file=x&vers=106&head=15331&begin=16391&end=60719&requestType=2"
	if got := hi.tilesIndexURL(); got != want {
		t.Fatalf("tilesIndexURL() = %q, want %q", got, want)
	}
}

func TestDeserializeIndicesReply(t *testing.T) {
	raw := []byte("Error=0&newSize=126&reply_data=1,  0  1  2")
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	indices, err := parseTileIndices(values.Get("reply_data"))
	if err != nil {
		t.Fatalf("parseTileIndices: %v", err)
	}
	want := []uint64{1, 2, 3}
	if len(indices) != len(want) {
		t.Fatalf("got %v, want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Fatalf("got %v, want %v", indices, want)
		}
	}
}

func TestDeserializePffHeaderReply(t *testing.T) {
	raw := []byte(`Error=0&newSize=126&reply_data=<PFFHEADER WIDTH="45616" HEIGHT="31653" TILESIZE="375" NUMTILES="5541" HEADERSIZE="15331" VERSION="106"/>`)
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	var header pffHeader
	if err := xml.Unmarshal([]byte(values.Get("reply_data")), &header); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if header.Width != 45616 || header.NumTiles != 5541 {
		t.Fatalf("unexpected header: %+v", header)
	}
}

func TestProbeThreeStageRoundTrip(t *testing.T) {
	p := New()

	_, err := p.Probe(dezoom.Input{URI: "http://x.com/pff.php?file=x"})
	needsData, ok := err.(*dezoom.NeedsDataError)
	if !ok {
		t.Fatalf("expected NeedsDataError for bare file param, got %v", err)
	}
	if needsData.URI != "http://x.com/pff.php?file=x&requestType=1" {
		t.Fatalf("metadata request URI = %q", needsData.URI)
	}

	headerReply := []byte(`Error=0&newSize=126&reply_data=<PFFHEADER WIDTH="45616" HEIGHT="31653" TILESIZE="375" NUMTILES="5541" HEADERSIZE="15331" VERSION="106"/>`)
	_, err = p.Probe(dezoom.Input{URI: needsData.URI, Contents: dezoom.Contents{Loaded: true, Bytes: headerReply}})
	needsData, ok = err.(*dezoom.NeedsDataError)
	if !ok {
		t.Fatalf("expected NeedsDataError for tile index request, got %v", err)
	}
	want := "http://x.com/pff.php?file=x&vers=106&head=15331&begin=16391&end=60719&requestType=2"
	if needsData.URI != want {
		t.Fatalf("tile index request URI = %q, want %q", needsData.URI, want)
	}

	indicesReply := []byte("Error=0&newSize=126&reply_data=1000,100 250 400 1200")
	levels, err := p.Probe(dezoom.Input{URI: needsData.URI, Contents: dezoom.Contents{Loaded: true, Bytes: indicesReply}})
	if err != nil {
		t.Fatalf("final Probe call: %v", err)
	}
	if len(levels) == 0 {
		t.Fatal("expected at least one zoom level")
	}
	full := levels[0].(*Level)
	if full.size.X != 45616 || full.size.Y != 31653 {
		t.Fatalf("full level size = %+v", full.size)
	}
}
