// Package processor holds the size-bounded re-encoder. Given a stored image
// and a byte budget it searches decreasing resolutions crossed with a
// format-appropriate quality ladder for the cheapest encoding that fits,
// never changing the file's format.
package processor

import (
	"bytes"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// minWidth is the resolution floor of the search; below this the image is no
// longer useful regardless of how small it gets.
const minWidth = 64

// widthStep shrinks the target width between steps.
const widthStep = 0.85

// EnsureMaxSize rewrites the file at path in place so it fits maxBytes,
// if any width/quality combination achieves that. When nothing in the search
// space fits, the smallest encoding found still replaces the original
// (best effort). Unsupported formats and codec failures leave the file
// untouched. The returned size is the file's current on-disk size.
func EnsureMaxSize(path string, maxBytes int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() <= maxBytes {
		return info.Size(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	format := detectFormat(data, path)
	enc, err := newEncoder(format, data)
	if err != nil {
		// Corrupt input or a format with no re-encode path: keep the
		// original bytes rather than change the file's format.
		log.Printf("re-encode skipped for %s: %v", filepath.Base(path), err)
		return info.Size(), nil
	}

	best := search(enc, maxBytes)
	if best == nil || len(best) >= len(data) {
		return info.Size(), nil
	}
	if err := os.WriteFile(path, best, 0644); err != nil {
		log.Printf("re-encode write failed for %s: %v", filepath.Base(path), err)
		return info.Size(), nil
	}
	return int64(len(best)), nil
}

// search walks target widths from the original down to the floor, trying the
// whole quality ladder at each width, and returns the first encoding that
// fits the budget or else the smallest one seen.
func search(enc tryEncoder, maxBytes int64) []byte {
	var best []byte
	w := enc.OriginalWidth()
	for {
		for rung := 0; rung < enc.Rungs(); rung++ {
			out, err := enc.TryEncode(w, rung)
			if err != nil {
				log.Printf("encode attempt failed at width %d: %v", w, err)
				continue
			}
			if best == nil || len(out) < len(best) {
				best = out
			}
			if int64(len(out)) <= maxBytes {
				return best
			}
		}
		next := int(float64(w) * widthStep)
		if next < minWidth || next >= w {
			return best
		}
		w = next
	}
}

// detectFormat prefers the decoded container format and falls back to the
// file extension when the bytes cannot be sniffed.
func detectFormat(data []byte, path string) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return format
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	case "png", "gif", "webp", "bmp":
		return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	}
	return ""
}
