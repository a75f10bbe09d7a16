package imageprep

import "errors"

// Errors surfaced by loading and encoding. Unsupported and undecodable
// files are skipped by the engine, not fatal.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrUndecodable       = errors.New("failed to decode image")
)

// supportedExtensions lists the formats the decode stack can open, keyed by
// lower-case file extension.
var supportedExtensions = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".gif":  "gif",
	".webp": "webp",
	".heic": "heic",
	".heif": "heic",
}

// Source is an original image file loaded into memory. ContentHash is the
// SHA-256 of the raw bytes and is the cache identity of the photo: renaming
// or moving the file does not change it, re-encoding does.
type Source struct {
	Path        string
	Raw         []byte
	ContentHash string
	Format      string
}
