// Package imaging shrinks user uploads that exceed the service's size
// policy before they go on the wire.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
)

// Upload policy. Files at or under MaxUploadBytes are sent untouched;
// larger files are resized to MaxDimension on the longest side and
// re-encoded until they fit.
const (
	MaxUploadBytes = 1 << 20
	MaxDimension   = 1024

	startQuality = 85
	qualityStep  = 10
	minQuality   = 40
)

// Shrink returns upload bytes within policy, plus the filename to submit.
// Within-policy files pass through unchanged. Oversized files come back as
// JPEG, so the filename extension is rewritten. A file that cannot be
// decoded returns an error; the caller decides whether the original is
// still usable.
func Shrink(filename string, data []byte) (string, []byte, error) {
	if len(data) <= MaxUploadBytes {
		return filename, data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		// Fit preserves aspect ratio and never upscales.
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	encoded, err := encodeUnderLimit(img)
	if err != nil {
		return "", nil, err
	}
	return jpegName(filename), encoded, nil
}

// encodeUnderLimit re-encodes at decreasing JPEG quality until the result
// fits the byte limit, returning the smallest attempt if none does.
func encodeUnderLimit(img image.Image) ([]byte, error) {
	var best []byte
	for quality := startQuality; quality >= minQuality; quality -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
		if best == nil || buf.Len() < len(best) {
			best = buf.Bytes()
		}
		if buf.Len() <= MaxUploadBytes {
			return buf.Bytes(), nil
		}
	}
	return best, nil
}

func jpegName(filename string) string {
	if filename == "" {
		return "upload.jpg"
	}
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		filename = filename[:idx]
	}
	return filename + ".jpg"
}
