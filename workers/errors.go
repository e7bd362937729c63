package workers

import (
	"errors"
	"fmt"

	"github.com/camden-git/photoingest/locations"
	"github.com/camden-git/photoingest/media"
)

// ErrorCategory represents the type of per-file error encountered
type ErrorCategory string

const (
	CategoryUnsupportedFileType ErrorCategory = "unsupported_file_type" // extension not recognised
	CategoryExtractionFailure   ErrorCategory = "extraction_failure"    // extractor could not read or parse the file
	CategoryLocationUnavailable ErrorCategory = "location_unavailable"  // no history to resolve against
	CategoryWriteFailure        ErrorCategory = "write_failure"         // store rejected the record
	CategoryUnknown             ErrorCategory = "unknown_error"
)

// FileError is a failure confined to one file. It never aborts a scan.
type FileError struct {
	Path     string
	Category ErrorCategory
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// CategorizeError wraps err in a FileError with its category
func CategorizeError(path string, err error) *FileError {
	if err == nil {
		return nil
	}
	var fe *FileError
	if errors.As(err, &fe) {
		return fe
	}

	category := CategoryUnknown
	switch {
	case errors.Is(err, media.ErrUnsupportedFileType):
		category = CategoryUnsupportedFileType
	case errors.Is(err, media.ErrExtractionFailed):
		category = CategoryExtractionFailure
	case errors.Is(err, locations.ErrNoLocationData):
		category = CategoryLocationUnavailable
	case errors.Is(err, ErrSerializerStopped):
		category = CategoryWriteFailure
	}
	return &FileError{Path: path, Category: category, Err: err}
}
