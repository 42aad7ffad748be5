package encode

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// In these tests we consider a 4x4 image made from three tiles like so:
//
//	  0   1   2   3
//	+---+---+---+---+
//	|  Tile |       | 0
//	|   0   |  Tile | 1
//	+---+---+   1   | 2
//	|  Tile |       | 3
//	|   2   |       | 4
//	+---+---+---+---+
//
// Tiles 0 and 2 are 2x2 and tile 1 is 2x4. Tile 3 slightly overlaps tiles 0
// and 1, with the same pixels.
func rgbTile(pos geometry.Vec2d, w, h int, rgb []byte) tile.Tile {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: rgb[i], G: rgb[i+1], B: rgb[i+2], A: 255})
			i += 3
		}
	}
	return tile.Tile{Image: img, Position: pos}
}

func streamerTestTile(i int) tile.Tile {
	switch i {
	case 0:
		return rgbTile(geometry.Vec2d{X: 0, Y: 0}, 2, 2, []byte{
			1, 2, 3, 4, 5, 6,
			7, 8, 9, 10, 11, 12,
		})
	case 1:
		return rgbTile(geometry.Vec2d{X: 2, Y: 0}, 2, 4, []byte{
			0, 0, 0, 10, 10, 10,
			1, 1, 1, 11, 11, 11,
			2, 2, 2, 12, 12, 12,
			3, 3, 3, 13, 13, 13,
		})
	case 2:
		return rgbTile(geometry.Vec2d{X: 0, Y: 2}, 2, 2, []byte{
			100, 100, 100, 200, 200, 200,
			200, 200, 200, 99, 99, 99,
		})
	case 3:
		return rgbTile(geometry.Vec2d{X: 1, Y: 0}, 2, 1, []byte{
			4, 5, 6, 0, 0, 0,
		})
	default:
		panic("bad tile index")
	}
}

var wholeImage = []byte{
	1, 2, 3, 4, 5, 6 /*            |*/, 0, 0, 0, 10, 10, 10,
	7, 8, 9, 10, 11, 12 /*         |*/, 1, 1, 1, 11, 11, 11,
	100, 100, 100, 200, 200, 200 /**/, 2, 2, 2, 12, 12, 12,
	200, 200, 200, 99, 99, 99 /*  |*/, 3, 3, 3, 13, 13, 13,
}

func assertStateAfterTiles(t *testing.T, indices []int, want []byte) {
	t.Helper()
	var out bytes.Buffer
	s := NewPixelStreamer(&out, geometry.Vec2d{X: 4, Y: 4})
	for _, i := range indices {
		if err := s.AddTile(streamerTestTile(i)); err != nil {
			t.Fatal(err)
		}
	}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("tiles %v: got %v, want %v", indices, out.Bytes(), want)
	}
}

func TestStreamerTile0Only(t *testing.T) {
	assertStateAfterTiles(t, []int{0}, []byte{1, 2, 3, 4, 5, 6})
}

func TestStreamerTile1Only(t *testing.T) {
	assertStateAfterTiles(t, []int{1}, []byte{})
}

func TestStreamerTiles0And1(t *testing.T) {
	assertStateAfterTiles(t, []int{0, 1}, []byte{
		1, 2, 3, 4, 5, 6, 0, 0, 0, 10, 10, 10,
		7, 8, 9, 10, 11, 12, 1, 1, 1, 11, 11, 11,
	})
}

func TestStreamerAllTiles(t *testing.T) {
	assertStateAfterTiles(t, []int{0, 1, 2}, wholeImage)
}

func TestStreamerAllTilesNonSorted(t *testing.T) {
	assertStateAfterTiles(t, []int{1, 2, 0}, wholeImage)
	assertStateAfterTiles(t, []int{2, 1, 0}, wholeImage)
}

func TestStreamerOverlappingTiles(t *testing.T) {
	assertStateAfterTiles(t, []int{0, 1, 0, 2}, wholeImage)
	assertStateAfterTiles(t, []int{0, 0, 1, 1, 2, 2}, wholeImage)
	assertStateAfterTiles(t, []int{2, 1, 2, 0}, wholeImage)
	assertStateAfterTiles(t, []int{0, 1, 3, 2}, wholeImage)
	assertStateAfterTiles(t, []int{0, 3, 1, 2}, wholeImage)
	assertStateAfterTiles(t, []int{3, 0, 1, 2}, wholeImage)
	assertStateAfterTiles(t, []int{0, 3, 0, 1, 2, 3}, wholeImage)
}

func TestStreamerFinalizeEmpty(t *testing.T) {
	var out bytes.Buffer
	s := NewPixelStreamer(&out, geometry.Vec2d{X: 2, Y: 2})
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("got %v, want %v", out.Bytes(), want)
	}
}

func TestStreamerFinalizeOnlyTile2(t *testing.T) {
	var out bytes.Buffer
	s := NewPixelStreamer(&out, geometry.Vec2d{X: 2, Y: 5})
	if err := s.AddTile(streamerTestTile(2)); err != nil {
		t.Fatal(err)
	}
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0,
		100, 100, 100, 200, 200, 200,
		200, 200, 200, 99, 99, 99,
		0, 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("got %v, want %v", out.Bytes(), want)
	}
}

func TestStreamerTileTooLarge(t *testing.T) {
	var out bytes.Buffer
	// 1x3 image, adding a 2x2 tile at (0,2): it must be cropped to fit.
	s := NewPixelStreamer(&out, geometry.Vec2d{X: 1, Y: 3})
	if err := s.AddTile(streamerTestTile(2)); err != nil {
		t.Fatal(err)
	}
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 100, 100, 100}
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("got %v, want %v", out.Bytes(), want)
	}
}
