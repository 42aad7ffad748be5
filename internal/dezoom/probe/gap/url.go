package gap

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
)

var hmacKey = []byte{123, 43, 78, 35, 222, 44, 197, 197}

// computeURL builds the signed tile URL for position (x,y) at zoom level z:
// the base URL plus an "=x{x}-y{y}-z{z}-t{signature}" suffix, where the
// signature is an HMAC-SHA1 of the page's path, the same suffix (without
// the signature), and the page's token.
func computeURL(page pageInfo, x, y uint32, z int) string {
	suffix := fmt.Sprintf("=x%d-y%d-z%d-t", x, y, z)

	signPath := page.path() + suffix + page.Token
	digest := macDigest([]byte(signPath))

	return page.BaseURL + suffix + customBase64(digest)
}

func macDigest(b []byte) []byte {
	mac := hmac.New(sha1.New, hmacKey)
	mac.Write(b)
	return mac.Sum(nil)
}

func customBase64(digest []byte) string {
	encoded := base64.RawURLEncoding.EncodeToString(digest)
	return strings.ReplaceAll(encoded, "-", "_")
}
