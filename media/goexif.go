package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"go.uber.org/zap"

	"github.com/camden-git/photoingest/models"
)

// GoExifExtractor reads EXIF in-process. It handles JPEG and TIFF-based RAW
// files (CR2, NEF, DNG); it knows no vendor bracket tags, so only the
// exposure bias is reported for those.
type GoExifExtractor struct {
	ThumbnailMaxSize int
	Log              *zap.Logger
}

func NewGoExifExtractor(thumbnailMaxSize int, log *zap.Logger) *GoExifExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &GoExifExtractor{ThumbnailMaxSize: thumbnailMaxSize, Log: log}
}

// tagCollector implements exif.Walker
type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag == nil {
		return nil
	}
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			// string values may have null chars at the end
			c[string(name)] = strings.TrimRight(s, "\x00 ")
			return nil
		}
	}
	c[string(name)] = tag.String()
	return nil
}

func (g *GoExifExtractor) Extract(ctx context.Context, path string) (*Metadata, error) {
	kind, err := KindForPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}
	defer file.Close()

	tags := tagCollector{}
	exifData, exifErr := exif.Decode(file)
	if exifErr != nil {
		if kind == models.FileKindRAW {
			return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, exifErr)
		}
		// not necessarily fatal for a JPEG, it might just lack EXIF data
		g.Log.Debug("no EXIF data", zap.String("path", path), zap.Error(exifErr))
	} else {
		if err := exifData.Walk(tags); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
		}
		normaliseGoExifTags(exifData, tags)
	}

	meta := &Metadata{Path: path, Kind: kind, Tags: tags}
	meta.CapturedAt, meta.CapturedAtFromFile, err = captureTime(path, tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}
	meta.BracketMode, meta.BracketShotCount, meta.BracketExposureValue = BracketFields(tags)

	switch kind {
	case models.FileKindJPEG:
		meta.Thumbnail, err = thumbnailFromFile(path, g.ThumbnailMaxSize)
		if err != nil {
			// a JPEG that neither carries EXIF nor decodes is unreadable
			if exifErr != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
			}
			g.Log.Warn("thumbnail generation failed", zap.String("path", path), zap.Error(err))
		}
	case models.FileKindRAW:
		meta.Thumbnail = rawPreviewThumbnail(exifData, g.ThumbnailMaxSize, g.Log, path)
	}

	return meta, nil
}

// normaliseGoExifTags rewrites the GPS and exposure tags that goexif reports
// as rational arrays into the decimal form the ingest core reads.
func normaliseGoExifTags(exifData *exif.Exif, tags tagCollector) {
	if lat, lng, err := exifData.LatLong(); err == nil && !math.IsNaN(lat) && !math.IsNaN(lng) {
		tags[TagGPSLatitude] = strconv.FormatFloat(math.Abs(lat), 'f', 7, 64)
		tags[TagGPSLongitude] = strconv.FormatFloat(math.Abs(lng), 'f', 7, 64)
		tags[TagGPSLatitudeRef] = "N"
		if lat < 0 {
			tags[TagGPSLatitudeRef] = "S"
		}
		tags[TagGPSLongitudeRef] = "E"
		if lng < 0 {
			tags[TagGPSLongitudeRef] = "W"
		}
	}

	if tag, err := exifData.Get(exif.ExposureBiasValue); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			tags[TagExposureCompensation] = strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
		}
	}

	if dt, err := exifData.DateTime(); err == nil {
		if _, ok := tags[TagDateTimeOriginal]; !ok {
			tags[TagDateTimeOriginal] = dt.Format("2006:01:02 15:04:05")
		}
	}
}

// rawPreviewThumbnail uses the JPEG preview embedded in a TIFF-based RAW.
func rawPreviewThumbnail(exifData *exif.Exif, maxSize int, log *zap.Logger, path string) []byte {
	if exifData == nil {
		return nil
	}
	preview, err := exifData.JpegThumbnail()
	if err != nil {
		log.Debug("no embedded preview", zap.String("path", path), zap.Error(err))
		return nil
	}
	thumb, err := thumbnailFromPreview(preview, maxSize)
	if err != nil {
		log.Warn("embedded preview unusable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return thumb
}

// rawPreviewFromFile decodes just enough of a RAW file to reach its preview.
func rawPreviewFromFile(path string, maxSize int, log *zap.Logger) []byte {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	exifData, err := exif.Decode(file)
	if err != nil {
		log.Debug("no TIFF structure for preview", zap.String("path", path), zap.Error(err))
		return nil
	}
	return rawPreviewThumbnail(exifData, maxSize, log, path)
}
