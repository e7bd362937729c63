package media

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/barasher/go-exiftool"
	"go.uber.org/zap"

	"github.com/camden-git/photoingest/models"
)

// ExifToolExtractor drives one long-lived exiftool process. It reads every
// format exiftool knows, CR3 and maker-note bracket tags included.
type ExifToolExtractor struct {
	mu               sync.Mutex
	et               *exiftool.Exiftool
	thumbnailMaxSize int
	log              *zap.Logger
}

// NewExifToolExtractor starts exiftool. binaryPath may be empty to use the
// exiftool found on PATH.
func NewExifToolExtractor(binaryPath string, thumbnailMaxSize int, log *zap.Logger) (*ExifToolExtractor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []func(*exiftool.Exiftool) error{exiftool.NoPrintConversion()}
	if binaryPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binaryPath))
	}

	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}
	log.Info("exiftool started", zap.String("binary", binaryPath))
	return &ExifToolExtractor{et: et, thumbnailMaxSize: thumbnailMaxSize, log: log}, nil
}

func (x *ExifToolExtractor) Extract(ctx context.Context, path string) (*Metadata, error) {
	kind, err := KindForPath(path)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	results := x.et.ExtractMetadata(path)
	x.mu.Unlock()

	if len(results) != 1 {
		return nil, fmt.Errorf("%w: %s: exiftool returned %d results", ErrExtractionFailed, path, len(results))
	}
	fm := results[0]
	if fm.Err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, fm.Err)
	}
	if msg, ok := fm.Fields["Error"]; ok {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtractionFailed, path, msg)
	}

	tags := make(map[string]string, len(fm.Fields))
	for k, v := range fm.Fields {
		tags[k] = fieldString(v)
	}

	meta := &Metadata{Path: path, Kind: kind, Tags: tags}
	meta.CapturedAt, meta.CapturedAtFromFile, err = captureTime(path, tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}
	meta.BracketMode, meta.BracketShotCount, meta.BracketExposureValue = BracketFields(tags)

	switch kind {
	case models.FileKindJPEG:
		meta.Thumbnail, err = thumbnailFromFile(path, x.thumbnailMaxSize)
		if err != nil {
			x.log.Warn("thumbnail generation failed", zap.String("path", path), zap.Error(err))
		}
	case models.FileKindRAW:
		meta.Thumbnail = rawPreviewFromFile(path, x.thumbnailMaxSize, x.log)
	}
	return meta, nil
}

// Close stops the exiftool process
func (x *ExifToolExtractor) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.et.Close()
}

func fieldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
