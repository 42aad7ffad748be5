// Package encode assembles the pixels pulled in by internal/download into
// a single output image: either a fully buffered in-memory canvas, or,
// when the output is PNG, a streaming row-major encoder that never holds
// the whole image in RAM at once.
package encode

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// Encoder turns a finished image into bytes in some file format.
type Encoder interface {
	// Encode encodes img to bytes in the target format.
	Encode(img image.Image) ([]byte, error)
	// Format returns the format name (e.g. "jpeg", "png", "webp").
	Format() string
	// FileExtension returns the file extension this encoder produces,
	// including the leading dot.
	FileExtension() string
}

// ForName picks the Encoder matching name's file extension, the same way
// the original CLI dispatches on the output path the user chose.
func ForName(name string) (Encoder, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return &JPEGEncoder{Quality: 85}, nil
	case ".png":
		return &PNGEncoder{}, nil
	case ".webp":
		return newWebPEncoder(85)
	default:
		return nil, fmt.Errorf("unsupported output extension %q (supported: .jpg, .png, .webp)", ext)
	}
}

// SupportsStreaming reports whether name's format has a streaming encoder
// (see StreamingPNGWriter) that can write rows as they become available
// instead of buffering the whole canvas first.
func SupportsStreaming(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".png")
}
