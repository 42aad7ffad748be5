package gap

import (
	"fmt"
	"strings"
)

// pageInfo is the data scraped out of an artsandculture.google.com asset
// page: the base URL of its tile images, and the token that signs every
// tile request.
type pageInfo struct {
	BaseURL string
	Token   string
	Name    string
}

// tileInfoURL is where the per-level tile grid dimensions live.
func (p pageInfo) tileInfoURL() string { return p.BaseURL + "=g" }

// path is the last path segment of the base URL, used as part of the
// HMAC-signed material.
func (p pageInfo) path() string {
	idx := strings.LastIndex(p.BaseURL, "/")
	return p.BaseURL[idx+1:]
}

// parsePageInfo scrapes an asset page's HTML for its image base URL (the
// og:image meta tag) and the signing token that sits next to it in an
// inline JS array literal.
func parsePageInfo(html string) (pageInfo, error) {
	path, ok := extractBetween(html, `<meta property="og:image" content="`, `"`)
	if !ok {
		return pageInfo{}, fmt.Errorf("gap: unable to find the page's image path")
	}
	pathNoProtocol, ok := splitProtocol(path)
	if !ok {
		return pageInfo{}, fmt.Errorf("gap: the image path has an invalid form")
	}
	beforeToken := fmt.Sprintf(`,"%s","`, pathNoProtocol)
	token, ok := extractBetween(html, beforeToken, `"`)
	if !ok {
		return pageInfo{}, fmt.Errorf("gap: unable to find the signing token")
	}
	return pageInfo{BaseURL: path, Token: token}, nil
}

// splitProtocol drops the "scheme:" prefix off a URL, mirroring Rust's
// `path.split(':').nth(1)`.
func splitProtocol(url string) (string, bool) {
	idx := strings.Index(url, ":")
	if idx < 0 {
		return "", false
	}
	return url[idx+1:], true
}

func extractBetween(s, start, end string) (string, bool) {
	startIdx := strings.Index(s, start)
	if startIdx < 0 {
		return "", false
	}
	startPos := startIdx + len(start)
	endIdx := strings.Index(s[startPos:], end)
	if endIdx < 0 {
		return "", false
	}
	return s[startPos : startPos+endIdx], true
}
