// Package capturetime extracts the capture instant of a photograph.
//
// Sources, in priority order: the EXIF DateTimeOriginal tag (refined by
// SubSecTimeOriginal when present), then the extended attribute written by
// StampFile. Filesystem modification time is never consulted: re-encoding
// and copying workflows rewrite it, and a wrong instant is worse than none.
// A photo without a capture instant simply skips the timestamp rules during
// clustering.
package capturetime

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jdeng/goheif"
	"github.com/pkg/xattr"
	"github.com/rwcarlsen/goexif/exif"
)

// Attr is the extended attribute holding an RFC 3339 capture instant. It
// survives re-encoding pipelines that strip EXIF, as long as the tool that
// rewrites the file preserves user xattrs or the organizer re-stamps it.
const Attr = "user.photo_organizer.capture_time"

// exifTimeLayout is the EXIF ASCII datetime format. It carries no zone;
// values are interpreted in the local zone, matching how cameras record
// wall-clock time.
const exifTimeLayout = "2006:01:02 15:04:05"

// FromFile returns the capture instant of the photo at path, or nil when no
// trusted source has one. An error is returned only when the file itself
// cannot be opened.
func FromFile(path string) (*time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	if t := fromEXIF(f, path); t != nil {
		return t, nil
	}
	if t := fromXattr(path); t != nil {
		return t, nil
	}
	return nil, nil
}

// StampFile writes the capture instant into the extended attribute so that
// later runs can recover it even if EXIF is gone.
func StampFile(path string, t time.Time) error {
	if err := xattr.Set(path, Attr, []byte(t.Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("failed to stamp capture time on %q: %w", path, err)
	}
	return nil
}

// fromEXIF reads DateTimeOriginal (plus sub-second precision) out of the
// file's EXIF block. HEIC containers need the block extracted first.
func fromEXIF(f *os.File, path string) *time.Time {
	var meta *exif.Exif
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".heic" || ext == ".heif" {
		exifBytes, err := goheif.ExtractExif(f)
		if err != nil || len(exifBytes) == 0 {
			return nil
		}
		meta, err = exif.Decode(bytes.NewReader(exifBytes))
		if err != nil {
			return nil
		}
	} else {
		var err error
		meta, err = exif.Decode(f)
		if err != nil {
			return nil
		}
	}

	tag, err := meta.Get(exif.DateTimeOriginal)
	if err != nil {
		return nil
	}
	raw, err := tag.StringVal()
	if err != nil {
		return nil
	}
	t, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return nil
	}

	if frac := subSeconds(meta); frac > 0 {
		t = t.Add(frac)
	}
	return &t
}

// subSeconds converts the SubSecTimeOriginal digit string ("3" = 0.3s,
// "345" = 0.345s) into a duration.
func subSeconds(meta *exif.Exif) time.Duration {
	tag, err := meta.Get(exif.SubSecTimeOriginal)
	if err != nil {
		return 0
	}
	raw, err := tag.StringVal()
	if err != nil {
		return 0
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	frac := 0.0
	scale := 0.1
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0
		}
		frac += float64(r-'0') * scale
		scale /= 10
	}
	return time.Duration(frac * float64(time.Second))
}

// fromXattr reads the instant stamped by a previous run.
func fromXattr(path string) *time.Time {
	data, err := xattr.Get(path, Attr)
	if err != nil {
		return nil
	}
	raw := strings.TrimSpace(string(data))
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
