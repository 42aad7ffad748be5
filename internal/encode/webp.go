package encode

import (
	"bytes"
	"image"

	"github.com/gen2brain/webp"
)

// WebPEncoder encodes the output canvas as WebP using gen2brain/webp, a
// pure-Go libwebp build running under wazero — no cgo toolchain or system
// libwebp install required, which matters for a tool that ships as a
// single cross-platform binary.
type WebPEncoder struct {
	Quality float32
}

func newWebPEncoder(quality int) (Encoder, error) {
	q := float32(quality)
	if q <= 0 {
		q = 85
	}
	return &WebPEncoder{Quality: q}, nil
}

func (e *WebPEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: e.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Format() string        { return "webp" }
func (e *WebPEncoder) FileExtension() string { return ".webp" }

func init() {
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}
