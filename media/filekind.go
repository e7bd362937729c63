package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/camden-git/photoingest/models"
)

var jpegExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

var rawExtensions = map[string]bool{
	".cr2": true,
	".cr3": true,
	".nef": true,
	".arw": true,
	".dng": true,
	".raf": true,
	".orf": true,
	".rw2": true,
}

// KindForPath maps a file extension (case-insensitive) to its FileKind.
func KindForPath(path string) (models.FileKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case jpegExtensions[ext]:
		return models.FileKindJPEG, nil
	case rawExtensions[ext]:
		return models.FileKindRAW, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}
