// Package dezoom defines the polymorphic probing contract: a Probe inspects
// an input URI (plus optionally already-fetched bytes) and either returns
// zoom levels, says it doesn't recognize the format, or asks the caller to
// fetch more bytes before it can decide (the "NeedsData" protocol).
//
// Probes are pure state machines: they never perform I/O themselves. The
// caller (normally internal/driver, via internal/fetch) owns the network
// and feeds bytes back in, which keeps every probe testable against static
// fixtures.
package dezoom

import (
	"fmt"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

// Contents is the (possibly absent) bytes fetched for a probe's input URI.
type Contents struct {
	Loaded bool
	Bytes  []byte
}

// Input is what a Probe consumes: the URI currently under consideration,
// plus its contents if the caller has already fetched them.
type Input struct {
	URI      string
	Contents Contents
}

// WithContents returns the input's bytes with a nil error if its contents
// were loaded, or a NeedsDataError for this URI otherwise. Probes call this as their
// first step once their fast syntactic check has passed.
func (in Input) WithContents() ([]byte, error) {
	if in.Contents.Loaded {
		return in.Contents.Bytes, nil
	}
	return nil, &NeedsDataError{URI: in.URI}
}

// NeedsDataError means the caller must fetch the bytes at URI and re-invoke
// Probe with them loaded into a new Input.
type NeedsDataError struct {
	URI string
}

func (e *NeedsDataError) Error() string {
	return fmt.Sprintf("need to download data from %s", e.URI)
}

// WrongDezoomerError means this probe's fast syntactic check rejected the
// URI; the auto-probe should try the next one without paying any parsing
// cost.
type WrongDezoomerError struct {
	Name string
}

func (e *WrongDezoomerError) Error() string {
	return fmt.Sprintf("the %q probe cannot handle this URI", e.Name)
}

// OtherError wraps a probe-specific parsing or semantic failure.
type OtherError struct {
	Cause error
}

func (e *OtherError) Error() string { return e.Cause.Error() }
func (e *OtherError) Unwrap() error { return e.Cause }

// Wrap builds an OtherError from any error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &OtherError{Cause: err}
}

// ZoomLevel is a lazy producer of tile references for one resolution of one
// image. Implementations only need to implement NextTiles; the rest of the
// methods have zero-value defaults available by embedding Base.
type ZoomLevel interface {
	// NextTiles is given the outcome of the previous round (nil on the
	// first call) and returns the next batch of tile references. An empty,
	// nil-error return means the level is exhausted.
	NextTiles(previous *FetchResult) ([]tile.Reference, error)

	// SizeHint returns the known final image dimensions, if any.
	SizeHint() (geometry.Vec2d, bool)

	// TileSize returns the known tile dimensions, if any.
	TileSize() (geometry.Vec2d, bool)

	// HTTPHeaders returns extra request headers this level needs (e.g. a
	// referer override, an auth token).
	HTTPHeaders() map[string]string

	// PostProcess returns the byte-level transform to apply before
	// decoding a tile's bytes into an image, if any.
	PostProcess() (PostProcessFunc, bool)

	// Title returns a human-readable label for this level, if any.
	Title() (string, bool)
}

// PostProcessFunc transforms raw downloaded bytes before image decoding
// (e.g. decrypting GAP tiles). It must be a pure function of its inputs —
// it is represented as a value, not a method override, so formats that need
// it can attach it to a level without subclassing.
type PostProcessFunc func(ref tile.Reference, data []byte) ([]byte, error)

// FetchResult summarizes the outcome of one round of tile downloads, fed
// back into NextTiles so a level can decide its next batch (used by the
// generic probe's dichotomy search).
type FetchResult struct {
	Count      int
	Successes  int
	TileSize   geometry.Vec2d
	HasTileSize bool
}

// Base implements every ZoomLevel method except NextTiles with its
// zero-value default. Embed it in a concrete level type and override only
// what that format actually knows.
type Base struct{}

func (Base) SizeHint() (geometry.Vec2d, bool)        { return geometry.Vec2d{}, false }
func (Base) TileSize() (geometry.Vec2d, bool)        { return geometry.Vec2d{}, false }
func (Base) HTTPHeaders() map[string]string          { return nil }
func (Base) PostProcess() (PostProcessFunc, bool)    { return nil, false }
func (Base) Title() (string, bool)                   { return "", false }

// Probe turns a URI (plus lazily fetched metadata) into zoom levels. A
// probe's fast syntactic check (extension, substring, regex against the
// URI) must reject unrelated URIs before doing any real parsing, so the
// auto-probe can cheaply fan out across every registered probe.
type Probe interface {
	// Name identifies the probe in logs and aggregated errors.
	Name() string
	// Probe consumes one (uri, contents) pair and returns zoom levels, or
	// one of NeedsDataError / WrongDezoomerError / OtherError.
	Probe(in Input) ([]ZoomLevel, error)
}
