package models

import "time"

// FileKind distinguishes JPEG files from camera RAW files.
type FileKind string

const (
	FileKindJPEG FileKind = "JPEG"
	FileKindRAW  FileKind = "RAW"
)

// Photo is one processed file. It corresponds to the 'photos' table and is
// keyed by the absolute path of the source file.
type Photo struct {
	Path       string            `gorm:"primaryKey" json:"path"`
	FileKind   FileKind          `gorm:"not null;index" json:"file_kind"`
	CapturedAt int64             `gorm:"not null;index" json:"captured_at"` // Unix milliseconds
	Tags       map[string]string `gorm:"type:text;serializer:json" json:"tags,omitempty"`
	Thumbnail  []byte            `gorm:"" json:"-"`

	Latitude  *float64 `gorm:"" json:"latitude,omitempty"`  // Nullable
	Longitude *float64 `gorm:"" json:"longitude,omitempty"` // Nullable

	BracketMode          int     `gorm:"not null;default:0" json:"bracket_mode"`
	BracketShotCount     int     `gorm:"not null;default:1" json:"bracket_shot_count"`
	BracketExposureValue float64 `gorm:"not null;default:0" json:"bracket_exposure_value"`

	IngestedAt int64  `gorm:"not null" json:"ingested_at"` // Unix seconds
	RunID      string `gorm:"index" json:"run_id,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Photo) TableName() string {
	return "photos"
}

// CapturedTime returns CapturedAt as a time.Time.
func (p *Photo) CapturedTime() time.Time {
	return time.UnixMilli(p.CapturedAt)
}

// HasLocation reports whether both coordinates are set.
func (p *Photo) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}
