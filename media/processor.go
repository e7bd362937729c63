package media

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	DefaultThumbnailMaxSize = 512
	ThumbnailJpegQuality    = 85
)

// EncodeThumbnail scales img so its longest side is at most maxSize and
// returns it JPEG-encoded. Smaller images are not upscaled.
func EncodeThumbnail(img image.Image, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultThumbnailMaxSize
	}
	origBounds := img.Bounds()
	origWidth := origBounds.Dx()
	origHeight := origBounds.Dy()
	if origWidth <= 0 || origHeight <= 0 {
		return nil, fmt.Errorf("invalid original image dimensions: %dx%d", origWidth, origHeight)
	}

	newWidth, newHeight := origWidth, origHeight
	if origWidth > origHeight && origWidth > maxSize {
		newWidth = maxSize
		newHeight = int(math.Round(float64(origHeight) * (float64(maxSize) / float64(origWidth))))
	} else if origHeight >= origWidth && origHeight > maxSize {
		newHeight = maxSize
		newWidth = int(math.Round(float64(origWidth) * (float64(maxSize) / float64(origHeight))))
	}
	newWidth = max(1, newWidth)
	newHeight = max(1, newHeight)

	thumb := img
	if newWidth != origWidth || newHeight != origHeight {
		thumb = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality)); err != nil {
		return nil, fmt.Errorf("thumbnail encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnailFromFile decodes a JPEG from disk, honouring its EXIF orientation.
func thumbnailFromFile(path string, maxSize int) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return EncodeThumbnail(img, maxSize)
}

// thumbnailFromPreview re-encodes an embedded JPEG preview (RAW files).
func thumbnailFromPreview(preview []byte, maxSize int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(preview), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedded preview: %w", err)
	}
	return EncodeThumbnail(img, maxSize)
}
