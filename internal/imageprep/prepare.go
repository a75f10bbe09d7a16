// Package imageprep turns photo files into vision API payloads: it
// enumerates supported images deterministically, computes their content
// identity, and re-encodes them to fit provider size limits.
package imageprep

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/webp"

	"github.com/smegmarip/photo-organizer/internal/vision"
)

// ============================================================================
// Payload Preparation
// ============================================================================

const (
	startQuality = 85
	minQuality   = 25
	qualityStep  = 10
	minDimension = 64
)

// LoadSource reads a photo file and computes its content hash. The decode
// work is deferred to Encode so that cache hits never pay for it.
func LoadSource(path string) (*Source, error) {
	format, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %q: %w", path, err)
	}
	sum := sha256.Sum256(raw)
	return &Source{
		Path:        path,
		Raw:         raw,
		ContentHash: hex.EncodeToString(sum[:]),
		Format:      format,
	}, nil
}

// Encode produces the vision payload for the source: decoded, orientation
// normalized, fitted within maxDim on the long edge, and re-encoded as JPEG
// under maxBytes. The quality walks down first; dimensions halve only when
// the lowest quality still overflows.
func (s *Source) Encode(maxDim int, maxBytes int64) (*vision.Payload, error) {
	decoded, err := s.decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, s.Path, err)
	}

	// Clone converts any source color model to NRGBA, which is what the
	// JPEG encoder wants.
	img := imaging.Clone(decoded)
	bounds := img.Bounds()
	if bounds.Dx() > maxDim || bounds.Dy() > maxDim {
		log.Debugf("downscaling %s from %dx%d to fit %d", filepath.Base(s.Path), bounds.Dx(), bounds.Dy(), maxDim)
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	for {
		for quality := startQuality; quality >= minQuality; quality -= qualityStep {
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
				return nil, fmt.Errorf("failed to encode image %q: %w", s.Path, err)
			}
			if int64(buf.Len()) <= maxBytes {
				data := buf.Bytes()
				return &vision.Payload{
					MIME:   "image/jpeg",
					Data:   data,
					Base64: base64.StdEncoding.EncodeToString(data),
				}, nil
			}
		}

		width := img.Bounds().Dx()
		height := img.Bounds().Dy()
		if width/2 < minDimension || height/2 < minDimension {
			return nil, fmt.Errorf("image %q does not fit under %d bytes at any usable size", s.Path, maxBytes)
		}
		log.Debugf("halving %s to %dx%d to fit size cap", filepath.Base(s.Path), width/2, height/2)
		img = imaging.Resize(img, width/2, 0, imaging.Lanczos)
	}
}

// decode picks the decoder for the source container. JPEG, PNG and GIF go
// through imaging with automatic EXIF orientation; HEIC orientation is
// applied by hand because goheif does not.
func (s *Source) decode() (image.Image, error) {
	switch s.Format {
	case "heic":
		img, err := goheif.Decode(bytes.NewReader(s.Raw))
		if err != nil {
			return nil, err
		}
		return applyOrientation(img, heicOrientation(s.Raw)), nil
	case "webp":
		return webp.Decode(bytes.NewReader(s.Raw))
	default:
		return imaging.Decode(bytes.NewReader(s.Raw), imaging.AutoOrientation(true))
	}
}

// heicOrientation extracts the EXIF orientation of a HEIC container,
// defaulting to 1 (upright) when absent.
func heicOrientation(raw []byte) int {
	exifBytes, err := goheif.ExtractExif(bytes.NewReader(raw))
	if err != nil || len(exifBytes) == 0 {
		return 1
	}
	meta, err := exif.Decode(bytes.NewReader(exifBytes))
	if err != nil {
		return 1
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orient, err := tag.Int(0)
	if err != nil || orient < 1 || orient > 8 {
		return 1
	}
	return orient
}

// applyOrientation maps the eight EXIF orientation values onto transforms.
func applyOrientation(img image.Image, orient int) image.Image {
	switch orient {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
