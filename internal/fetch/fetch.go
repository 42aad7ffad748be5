// Package fetch loads the bytes behind a probe's NeedsData requests and a
// tile's download URL: either an http(s) URL or a local file path. Building
// the *http.Client itself (timeouts, header defaults, TLS policy) is left
// to the caller — this package only dispatches a URI to the right source.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher loads raw bytes for a URI, either over HTTP(S) or from the local
// filesystem.
type Fetcher struct {
	Client *http.Client
}

// New builds a Fetcher around client. A nil client falls back to
// http.DefaultClient.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client}
}

// DefaultHeaders returns the built-in headers sent with every HTTP request
// unless overridden by a level's own HTTPHeaders(): a browser-like
// User-Agent, since many tile servers reject headerless or bot-looking
// requests.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; dezoomify)",
	}
}

// Fetch loads the contents at uri. If uri doesn't start with http:// or
// https://, it is treated as a path to a local file and headers is
// ignored. headers is sent as-is; building the default-headers/Referer
// merge for a particular zoom level is the caller's job (internal/driver).
func (f *Fetcher) Fetch(ctx context.Context, uri string, headers map[string]string) ([]byte, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return f.fetchHTTP(ctx, uri, headers)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("reading local file %q: %w", uri, err)
	}
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, uri string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", uri, err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %q: server returned status %s", uri, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body for %q: %w", uri, err)
	}
	return data, nil
}

// ResolveRelative joins path against base: if path is already an absolute
// URL it is returned unchanged; if base parses as a URL, path is resolved
// relative to it; otherwise path is joined onto base's parent directory as
// a filesystem path.
func ResolveRelative(base, path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if baseURL, err := url.Parse(base); err == nil && baseURL.IsAbs() {
		if joined, err := baseURL.Parse(path); err == nil {
			return joined.String()
		}
	}
	dir := filepath.Dir(base)
	return filepath.Join(dir, path)
}

// RemoveBOM strips a leading UTF-8 byte order mark, working around XML
// parsers that choke on it.
func RemoveBOM(contents []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if len(contents) >= len(bom) && string(contents[:len(bom)]) == string(bom) {
		return contents[len(bom):]
	}
	return contents
}
