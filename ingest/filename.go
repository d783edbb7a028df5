package ingest

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile("[\x00-\x1f\\\\/:*?\"<>|]")

// Sanitize makes an untrusted display name safe for response headers: any
// query string or fragment is stripped, path components are dropped and
// unsafe characters are replaced.
func Sanitize(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return name
}

// EnsureExt guarantees a download name carries an extension, synthesizing one
// from the resolved MIME type when the sanitized name lacks it.
func EnsureExt(name, contentType string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	return name + extForMIME(contentType)
}

// extForMIME maps a MIME type to a file extension, preferring the
// conventional image extensions over whatever the platform MIME db says.
func extForMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tif"
	case "image/bmp", "image/x-ms-bmp":
		return ".bmp"
	case "image/svg+xml":
		return ".svg"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// extForFetched derives the stored extension for a remote fetch from the
// response content type. Anything that is not an image gets the generic
// fallback; the body is stored as-is either way.
func extForFetched(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	main, sub, ok := strings.Cut(mediaType, "/")
	if !ok || main != "image" {
		return ".bin"
	}
	if ext := extForMIME(mediaType); ext != ".bin" {
		return ext
	}
	return "." + sub
}

// ContentDisposition builds an inline disposition carrying both an ASCII-safe
// filename and the RFC 5987 UTF-8 form.
func ContentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 126 || r < 32 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf(`inline; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(name))
}
