// Command dezoomify reconstructs one large image from the tiles of a
// zoomable-image viewer (IIIF, Deep Zoom, Zoomify, Google Arts & Culture,
// KRPano, IIP, NYPL, PFF, a YAML tile template, or a generic probe).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dezoomify/dezoomify-go/internal/dezoom"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/customyaml"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/dzi"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/gap"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/generic"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/iiif"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/iip"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/krpano"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/nypl"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/pff"
	"github.com/dezoomify/dezoomify-go/internal/dezoom/probe/zoomify"
	"github.com/dezoomify/dezoomify-go/internal/download"
	"github.com/dezoomify/dezoomify-go/internal/driver"
	"github.com/dezoomify/dezoomify-go/internal/fetch"
)

func main() {
	var (
		outfile     string
		parallelism int64
		retries     int
		retryDelay  time.Duration
		timeout     time.Duration
		cacheDir    string
		verbose     bool
	)

	flag.StringVar(&outfile, "outfile", "", "Output file path (default: derived from the image title)")
	flag.Int64Var(&parallelism, "parallelism", 4, "Number of tiles downloaded at once")
	flag.IntVar(&retries, "retries", 3, "Number of retries per failed tile")
	flag.DurationVar(&retryDelay, "retry-delay", 2*time.Second, "Base delay before retrying a failed tile")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")
	flag.StringVar(&cacheDir, "cache", "", "Directory to cache downloaded tiles in (default: no cache)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose progress output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dezoomify [flags] <input-uri-or-file> [output-file]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if !verbose {
		log.SetOutput(os.Stderr)
		log.SetFlags(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	uri := args[0]
	if len(args) > 1 {
		outfile = args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpClient := &http.Client{Timeout: timeout}
	fetcher := fetch.New(httpClient)

	var cache download.Cache
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Fatalf("creating tile cache directory: %v", err)
		}
		cache = download.DiskCache{Root: cacheDir}
	}

	start := time.Now()
	levels, err := driver.FindZoomLevels(ctx, defaultProbes(), fetcher, uri)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("found %d zoom level(s)", len(levels))

	level, err := driver.ChooseLevel(levels)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if outfile == "" {
		title, hasTitle := level.Title()
		if !hasTitle {
			title = ""
		}
		size, hasSize := level.SizeHint()
		outfile = driver.DefaultFileName(title, size, hasSize)
	}

	cfg := driver.Config{
		Parallelism: parallelism,
		Retries:     retries,
		RetryDelay:  retryDelay,
		Cache:       cache,
	}

	err = driver.RunLevel(ctx, fetcher, level, uri, outfile, cfg)
	elapsed := time.Since(start).Round(time.Millisecond)
	switch {
	case err == nil:
		fmt.Printf("Saved to %s in %v\n", outfile, elapsed)
	case isPartialDownload(err):
		fmt.Printf("%v\n", err)
		fmt.Printf("Saved to %s in %v\n", outfile, elapsed)
	default:
		log.Fatalf("%v", err)
	}
}

func isPartialDownload(err error) bool {
	_, ok := err.(*driver.PartialDownloadError)
	return ok
}

// defaultProbes builds a fresh set of probes for one run: probes like
// gap and pff keep state across NeedsData round trips, so they must not be
// shared between runs.
func defaultProbes() []dezoom.Probe {
	return []dezoom.Probe{
		zoomify.Probe{},
		dzi.Probe{},
		iiif.Probe{},
		gap.New(),
		pff.New(),
		krpano.Probe{},
		iip.Probe{},
		nypl.Probe{},
		customyaml.Probe{},
		generic.Probe{},
	}
}
