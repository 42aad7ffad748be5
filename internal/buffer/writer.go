package buffer

import (
	"fmt"
	"os"

	"github.com/dezoomify/dezoomify-go/internal/encode"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// tileWriter is implemented by the two concrete ways a Buffer can turn
// tiles into an output file: a streaming writer for PNG, and a buffered
// canvas for everything else.
type tileWriter interface {
	AddTile(tile.Tile) error
	Finalize() error
}

// newTileWriter picks a tileWriter for destination's file extension: the
// streaming PNG writer never holds the whole image in RAM; every other
// format is built from a fully buffered Canvas, since their Go encoders
// require a complete image.Image.
func newTileWriter(destination string, size geometry.Vec2d) (tileWriter, error) {
	f, err := os.Create(destination)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", destination, err)
	}
	if encode.SupportsStreaming(destination) {
		sw, err := encode.NewStreamingPNGWriter(f, size)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &streamingFileWriter{f: f, sw: sw}, nil
	}
	enc, err := encode.ForName(destination)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &canvasFileWriter{f: f, canvas: encode.NewCanvas(size), enc: enc}, nil
}

type streamingFileWriter struct {
	f  *os.File
	sw *encode.StreamingPNGWriter
}

func (w *streamingFileWriter) AddTile(t tile.Tile) error { return w.sw.AddTile(t) }

func (w *streamingFileWriter) Finalize() error {
	if err := w.sw.Finalize(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

type canvasFileWriter struct {
	f      *os.File
	canvas *encode.Canvas
	enc    encode.Encoder
}

func (w *canvasFileWriter) AddTile(t tile.Tile) error { return w.canvas.AddTile(t) }

func (w *canvasFileWriter) Finalize() error {
	data, err := w.enc.Encode(w.canvas.Image())
	if err != nil {
		w.f.Close()
		return err
	}
	if _, err := w.f.Write(data); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
