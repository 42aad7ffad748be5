// Package download turns tile references into decoded tiles: it fetches
// each tile's bytes (through the tile cache when one is configured),
// applies the zoom level's post-processing function, decodes the image,
// and retries failed tiles with a jittered exponential backoff so a flaky
// server doesn't get hit with synchronized bursts of retries.
package download

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	_ "github.com/dezoomify/dezoomify-go/internal/encode"
	"github.com/dezoomify/dezoomify-go/internal/fetch"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// Config controls how the Downloader paces and retries requests.
type Config struct {
	// Parallelism bounds how many tiles are in flight at once.
	Parallelism int64
	// Retries is how many additional attempts follow the first failure.
	Retries int
	// RetryDelay is the base backoff; each tile's initial wait is jittered
	// by its pixel position so retries from a batch don't all land at once,
	// and the wait doubles after every further failure.
	RetryDelay time.Duration
	// Cache persists downloaded tile bytes across runs, keyed by URL. Nil
	// disables caching.
	Cache Cache
	// PostProcess transforms raw bytes before image decoding (e.g.
	// decrypting Google Arts & Culture tiles). Nil means no transform.
	PostProcess dezoom.PostProcessFunc
	// Headers is sent with every tile request (built-in defaults, Referer,
	// and the zoom level's own HTTPHeaders(), merged by internal/driver).
	Headers map[string]string
}

// Cache persists and retrieves raw tile bytes, keyed by their source URL.
type Cache interface {
	Get(url string) ([]byte, bool)
	Put(url string, data []byte)
}

// TileError reports which tile reference failed to download and why, after
// every retry has been exhausted.
type TileError struct {
	Reference tile.Reference
	Cause     error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("downloading tile at %s (%s): %v", e.Reference.Position, e.Reference.URL, e.Cause)
}
func (e *TileError) Unwrap() error { return e.Cause }

// Downloader fetches and decodes tile references with bounded concurrency.
type Downloader struct {
	fetcher *fetch.Fetcher
	cfg     Config
	sem     *semaphore.Weighted
}

// New builds a Downloader. cfg.Parallelism <= 0 is treated as 1.
func New(fetcher *fetch.Fetcher, cfg Config) *Downloader {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Downloader{
		fetcher: fetcher,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.Parallelism),
	}
}

// Result is the outcome of downloading one batch of tile references: the
// tiles that succeeded, and the errors for the ones that, after every
// retry, still failed.
type Result struct {
	Tiles  []tile.Tile
	Errors []*TileError
}

// DownloadBatch downloads every reference in refs concurrently, bounded by
// cfg.Parallelism, retrying each failed tile independently.
func (d *Downloader) DownloadBatch(ctx context.Context, refs []tile.Reference) Result {
	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
	)
	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, &TileError{Reference: ref, Cause: err})
				mu.Unlock()
				return
			}
			defer d.sem.Release(1)

			t, err := d.downloadOne(ctx, ref)
			mu.Lock()
			if err != nil {
				result.Errors = append(result.Errors, &TileError{Reference: ref, Cause: err})
			} else {
				result.Tiles = append(result.Tiles, t)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return result
}

// downloadOne fetches, post-processes and decodes one tile, retrying on
// failure. The initial backoff is jittered by the tile's pixel position:
// wait = retry_delay + ((x+y) mod 100)/100 * retry_delay, doubling after
// every subsequent failure, for up to 1+Retries total attempts.
func (d *Downloader) downloadOne(ctx context.Context, ref tile.Reference) (tile.Tile, error) {
	const jitterBuckets = 100
	idx := (ref.Position.X + ref.Position.Y) % jitterBuckets
	wait := d.cfg.RetryDelay + time.Duration(float64(idx)*d.cfg.RetryDelay.Seconds()/jitterBuckets*float64(time.Second))

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		img, err := d.loadImage(ctx, ref)
		if err == nil {
			return tile.Tile{Image: img, Position: ref.Position}, nil
		}
		lastErr = err
		if attempt == d.cfg.Retries {
			break
		}
		log.Printf("%v. retrying tile download in %s", err, wait)
		select {
		case <-ctx.Done():
			return tile.Tile{}, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return tile.Tile{}, lastErr
}

func (d *Downloader) loadImage(ctx context.Context, ref tile.Reference) (image.Image, error) {
	data, err := d.loadBytes(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func (d *Downloader) loadBytes(ctx context.Context, ref tile.Reference) ([]byte, error) {
	if d.cfg.Cache != nil {
		if data, ok := d.cfg.Cache.Get(ref.URL); ok {
			return data, nil
		}
	}
	data, err := d.fetcher.Fetch(ctx, ref.URL, d.cfg.Headers)
	if err != nil {
		return nil, err
	}
	if d.cfg.PostProcess != nil {
		data, err = d.cfg.PostProcess(ref, data)
		if err != nil {
			return nil, fmt.Errorf("post-processing tile: %w", err)
		}
	}
	if d.cfg.Cache != nil {
		d.cfg.Cache.Put(ref.URL, data)
	}
	return data, nil
}
