// media/types.go
package media

import (
	"context"
	"errors"
	"time"

	"github.com/camden-git/photoingest/models"
)

var (
	// ErrUnsupportedFileType is returned for extensions that are neither
	// JPEG nor a known RAW format.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrExtractionFailed wraps every failure to read or parse a file.
	ErrExtractionFailed = errors.New("metadata extraction failed")
)

// Tag keys consumed by the ingest core. Both extractors emit these names.
const (
	TagDateTimeOriginal     = "DateTimeOriginal"
	TagGPSLatitude          = "GPSLatitude"
	TagGPSLatitudeRef       = "GPSLatitudeRef"
	TagGPSLongitude         = "GPSLongitude"
	TagGPSLongitudeRef      = "GPSLongitudeRef"
	TagBracketMode          = "BracketMode"
	TagBracketShotCount     = "AEBShotCount"
	TagBracketValue         = "AEBBracketValue"
	TagExposureCompensation = "ExposureCompensation"
)

// Metadata is what an Extractor returns for one file
type Metadata struct {
	Path       string
	Kind       models.FileKind
	CapturedAt time.Time
	// CapturedAtFromFile is set when no embedded timestamp was found and the
	// file modification time was used instead.
	CapturedAtFromFile bool
	Tags               map[string]string

	BracketMode          int
	BracketShotCount     int
	BracketExposureValue float64

	Thumbnail []byte // JPEG, longest side <= the configured maximum
}

// Extractor reads metadata from a photo file. Implementations must be safe
// for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Metadata, error)
}
