package repository

import (
	"context"
	"errors"

	"github.com/camden-git/photoingest/models"
)

// ErrNotFound is returned when a photo or bracket group does not exist.
var ErrNotFound = errors.New("record not found")

// PhotoRepositoryInterface defines the persistent store of processed photos
// and bracket-group membership.
type PhotoRepositoryInterface interface {
	// Upsert replaces the record stored under photo.Path in one statement.
	Upsert(ctx context.Context, photo *models.Photo) error
	SetLocation(ctx context.Context, path string, lat, lng float64) error
	// ReplaceBracketGroup makes members (in order) the only members of
	// groupID. Any other group holding one of them is dissolved.
	ReplaceBracketGroup(ctx context.Context, groupID string, members []string) error
	SaveRun(ctx context.Context, run *models.IngestRun) error

	Exists(ctx context.Context, path string) (bool, error)
	GetByPath(ctx context.Context, path string) (*models.Photo, error)
	ListPaths(ctx context.Context) ([]string, error)
	ListRawPaths(ctx context.Context) ([]string, error)
	ListByCaptureRange(ctx context.Context, start, end int64) ([]string, error)
	ListMissingLocation(ctx context.Context) ([]models.Photo, error)
	ListAll(ctx context.Context) ([]models.Photo, error)
	ListBracketCandidates(ctx context.Context) ([]models.Photo, error)
	GetBracketGroup(ctx context.Context, groupID string) (*models.BracketGroup, error)
	ListBracketGroups(ctx context.Context) ([]models.BracketGroup, error)
	GetRun(ctx context.Context, id string) (*models.IngestRun, error)

	// Flush makes every committed write durable in the main database file.
	Flush(ctx context.Context) error
}
