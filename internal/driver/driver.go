// Package driver wires the other packages together into one dezoom run:
// probe the input until zoom levels are found, pick one, download its
// tiles with bounded concurrency, and stream them into the output file.
package driver

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/dezoomify/dezoomify-go/internal/buffer"
	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/download"
	"github.com/dezoomify/dezoomify-go/internal/fetch"
	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// NoLevelsError means a probe succeeded but reported zero zoom levels.
type NoLevelsError struct{}

func (NoLevelsError) Error() string {
	return "a zoomable image was found, but it did not contain any zoom level"
}

// NoTileError means every tile download failed: no image could be produced.
type NoTileError struct{}

func (NoTileError) Error() string { return "could not get any tile for the image" }

// PartialDownloadError means at least one tile downloaded but not every
// one did; the output file was still written, with the missing tiles left
// blank.
type PartialDownloadError struct {
	SuccessfulTiles, TotalTiles int
}

func (e *PartialDownloadError) Error() string {
	return fmt.Sprintf(
		"only %d tiles out of %d could be downloaded; the resulting image was still created",
		e.SuccessfulTiles, e.TotalTiles,
	)
}

// Config controls one dezoom run.
type Config struct {
	Parallelism int64
	Retries     int
	RetryDelay  time.Duration
	Cache       download.Cache
}

// mergeHeaders builds the header set for one HTTP client: built-in
// defaults, then a Referer defaulting to referer, then extra overriding
// both (the order the original's client() applies them in).
func mergeHeaders(referer string, extra map[string]string) map[string]string {
	headers := fetch.DefaultHeaders()
	headers["Referer"] = referer
	for name, value := range extra {
		headers[name] = value
	}
	return headers
}

// FindZoomLevels resolves uri to its zoom levels, driving the NeedsData
// round-trip protocol through fetcher until the probe either succeeds or
// every sub-probe gives up. Every request this makes carries a Referer
// defaulting to uri, the input being probed.
func FindZoomLevels(ctx context.Context, probes []dezoom.Probe, fetcher *fetch.Fetcher, uri string) ([]dezoom.ZoomLevel, error) {
	headers := mergeHeaders(uri, nil)
	auto := dezoom.NewAutoProbe(probes)
	in := dezoom.Input{URI: uri}
	for {
		levels, err := auto.Probe(in)
		if err == nil {
			return levels, nil
		}
		needsData, ok := err.(*dezoom.NeedsDataError)
		if !ok {
			return nil, err
		}
		data, ferr := fetcher.Fetch(ctx, needsData.URI, headers)
		if ferr != nil {
			return nil, ferr
		}
		in = dezoom.Input{URI: needsData.URI, Contents: dezoom.Contents{Loaded: true, Bytes: data}}
	}
}

// ChooseLevel picks one of several zoom levels without prompting: the one
// reporting the largest size hint, or the first one if none report a size.
func ChooseLevel(levels []dezoom.ZoomLevel) (dezoom.ZoomLevel, error) {
	switch len(levels) {
	case 0:
		return nil, &NoLevelsError{}
	case 1:
		return levels[0], nil
	}
	best := levels[0]
	var bestArea uint64
	haveBest := false
	for _, l := range levels {
		size, ok := l.SizeHint()
		if !ok {
			continue
		}
		area := size.Area()
		if !haveBest || area > bestArea {
			best = l
			bestArea = area
			haveBest = true
		}
	}
	return best, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// DefaultFileName derives an output file name from a probed title, the way
// the original picks "dezoomified" when no title is known, sanitizing
// away characters that aren't valid in a filename. size, when known,
// decides the extension: images that fit in a 16-bit JPEG coordinate space
// default to .jpg, everything else to .png.
func DefaultFileName(title string, size geometry.Vec2d, hasSize bool) string {
	base := sanitizeFilename(title)
	if base == "" {
		base = "dezoomified"
	}
	ext := "png"
	if hasSize {
		const maxJPEGDim = 65535
		if size.X <= maxJPEGDim && size.Y <= maxJPEGDim {
			ext = "jpg"
		}
	}
	return base + "." + ext
}

// Run drives a complete dezoom: probing, level choice, tile download, and
// encoding to destination. It returns a *PartialDownloadError if at least
// one tile succeeded but not every one did (destination is still a valid,
// if incomplete, image); every other error means destination was not
// produced.
func Run(ctx context.Context, probes []dezoom.Probe, fetcher *fetch.Fetcher, uri, destination string, cfg Config) error {
	levels, err := FindZoomLevels(ctx, probes, fetcher, uri)
	if err != nil {
		return err
	}
	log.Printf("found %d zoom levels", len(levels))
	level, err := ChooseLevel(levels)
	if err != nil {
		return err
	}
	title, _ := level.Title()
	log.Printf("dezooming %q", title)
	return RunLevel(ctx, fetcher, level, uri, destination, cfg)
}

// RunLevel downloads every tile of an already-chosen level and writes the
// result to destination. inputURI is the original input URI, used as the
// Referer default for every tile request unless level.HTTPHeaders()
// overrides it.
func RunLevel(ctx context.Context, fetcher *fetch.Fetcher, level dezoom.ZoomLevel, inputURI, destination string, cfg Config) error {
	postProcess, _ := level.PostProcess()
	dl := download.New(fetcher, download.Config{
		Parallelism: cfg.Parallelism,
		Retries:     cfg.Retries,
		RetryDelay:  cfg.RetryDelay,
		Cache:       cfg.Cache,
		PostProcess: postProcess,
		Headers:     mergeHeaders(inputURI, level.HTTPHeaders()),
	})
	buf := buffer.New(destination)
	if size, ok := level.SizeHint(); ok {
		if err := buf.SetSize(size); err != nil {
			return err
		}
	}

	var (
		previous                 *dezoom.FetchResult
		totalTiles, successTiles int
	)
	for {
		refs, err := level.NextTiles(previous)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			break
		}
		totalTiles += len(refs)
		log.Printf("requesting %d tiles", len(refs))

		result := dl.DownloadBatch(ctx, refs)
		successTiles += len(result.Tiles)

		for _, t := range result.Tiles {
			buf.AddTile(t)
		}
		fr := &dezoom.FetchResult{Count: len(refs), Successes: len(result.Tiles)}
		if len(result.Tiles) > 0 {
			fr.TileSize = result.Tiles[0].Size()
			fr.HasTileSize = true
		}
		canvasSize, hasCanvasSize := level.SizeHint()
		for _, terr := range result.Errors {
			log.Printf("%v", terr)
			if fr.HasTileSize && hasCanvasSize {
				size := geometry.MaxSizeInRect(terr.Reference.Position, fr.TileSize, canvasSize)
				buf.AddTile(tile.Empty(terr.Reference.Position, size))
			}
		}
		previous = fr
	}

	if err := buf.Finalize(); err != nil {
		return err
	}

	if successTiles == 0 {
		return &NoTileError{}
	}
	if successTiles < totalTiles {
		return &PartialDownloadError{SuccessfulTiles: successTiles, TotalTiles: totalTiles}
	}
	return nil
}
