// Package buffer holds tiles until the final image size is known (most
// probes only learn it once the first tile has actually been decoded),
// then hands them off to a background writer goroutine through a bounded
// channel, so a slow disk or encoder never blocks the downloader's
// producers indefinitely.
package buffer

import (
	"log"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// channelCapacity bounds how many tiles can be queued for the writer
// before AddTile blocks, giving the downloader backpressure instead of an
// unbounded buildup of decoded images in memory.
const channelCapacity = 1024

type tileMsg struct {
	tile  tile.Tile
	close bool
}

// Buffer is a two-phase tile sink: while Buffering it just accumulates
// tiles in memory, since the final image size isn't known yet; once
// SetSize (or Finalize, which infers the size from what's buffered) is
// called, it moves to Writing and streams every further tile to a
// background writer goroutine.
type Buffer struct {
	destination string
	pending     []tile.Tile
	tileCh      chan tileMsg
	errCh       chan error
	writing     bool
}

// New creates a Buffer that will eventually write to destination, once its
// size is known.
func New(destination string) *Buffer {
	return &Buffer{destination: destination}
}

// SetSize transitions from Buffering to Writing: it builds the real
// encoder for an image of the given size, flushes every tile buffered so
// far into it, and starts the background writer goroutine. Calling it
// twice is a programming error.
func (b *Buffer) SetSize(size geometry.Vec2d) error {
	if b.writing {
		panic("buffer: SetSize called twice")
	}
	w, err := newTileWriter(b.destination, size)
	if err != nil {
		return err
	}
	log.Printf("creating a tile writer for an image of size %s", size)
	for _, t := range b.pending {
		if err := w.AddTile(t); err != nil {
			return err
		}
	}
	b.pending = nil
	b.tileCh = make(chan tileMsg, channelCapacity)
	b.errCh = make(chan error, 1)
	b.writing = true
	go runWriter(w, b.tileCh, b.errCh)
	return nil
}

// AddTile queues t for encoding. Before the size is known it is held in
// memory; afterward it is sent to the writer goroutine, blocking if the
// channel is full.
func (b *Buffer) AddTile(t tile.Tile) {
	if !b.writing {
		b.pending = append(b.pending, t)
		return
	}
	b.tileCh <- tileMsg{tile: t}
}

// Finalize must be called once no more tiles will arrive. If the size was
// never set explicitly, it is inferred as the bounding box of every
// buffered tile. It blocks until the writer goroutine has finished
// encoding and closed the destination file, and returns the first error
// encountered, if any — errors from individual tiles as well as from the
// final encode step.
func (b *Buffer) Finalize() error {
	if !b.writing {
		var size geometry.Vec2d
		for _, t := range b.pending {
			size = size.Max(t.BottomRight())
		}
		if err := b.SetSize(size); err != nil {
			return err
		}
	}
	b.tileCh <- tileMsg{close: true}
	var result error
	for err := range b.errCh {
		if result == nil {
			result = err
		}
	}
	return result
}

func runWriter(w tileWriter, tileCh <-chan tileMsg, errCh chan<- error) {
	defer close(errCh)
	for m := range tileCh {
		if m.close {
			break
		}
		if err := w.AddTile(m.tile); err != nil {
			log.Printf("error adding tile: %v", err)
			errCh <- err
		}
	}
	log.Print("finalizing the encoder")
	if err := w.Finalize(); err != nil {
		log.Printf("error finalizing image: %v", err)
		errCh <- err
	}
}
