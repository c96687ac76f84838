package photostore

import (
	"context"
	"io"
	"net/http"
)

// PhotoSource loads the image behind an image reference.
type PhotoSource interface {
	// Get returns the image bytes and their detected MIME type, one of
	// image/jpeg, image/png, image/gif or image/webp.
	Get(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

// allowedImageTypes is the set of MIME types accepted for meal photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing algorithm (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// DetectImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func DetectImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}
