package repository

import (
	"context"
	"sync"

	"github.com/camden-git/photoingest/models"
)

// LockedPhotoRepository serializes every call to the wrapped repository with
// one mutex, so a read never interleaves with a partially applied write on
// the shared handle.
type LockedPhotoRepository struct {
	mu    sync.Mutex
	inner PhotoRepositoryInterface
}

func NewLockedPhotoRepository(inner PhotoRepositoryInterface) *LockedPhotoRepository {
	return &LockedPhotoRepository{inner: inner}
}

func (l *LockedPhotoRepository) Upsert(ctx context.Context, photo *models.Photo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Upsert(ctx, photo)
}

func (l *LockedPhotoRepository) SetLocation(ctx context.Context, path string, lat, lng float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.SetLocation(ctx, path, lat, lng)
}

func (l *LockedPhotoRepository) ReplaceBracketGroup(ctx context.Context, groupID string, members []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ReplaceBracketGroup(ctx, groupID, members)
}

func (l *LockedPhotoRepository) SaveRun(ctx context.Context, run *models.IngestRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.SaveRun(ctx, run)
}

func (l *LockedPhotoRepository) Exists(ctx context.Context, path string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Exists(ctx, path)
}

func (l *LockedPhotoRepository) GetByPath(ctx context.Context, path string) (*models.Photo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.GetByPath(ctx, path)
}

func (l *LockedPhotoRepository) ListPaths(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListPaths(ctx)
}

func (l *LockedPhotoRepository) ListRawPaths(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListRawPaths(ctx)
}

func (l *LockedPhotoRepository) ListByCaptureRange(ctx context.Context, start, end int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListByCaptureRange(ctx, start, end)
}

func (l *LockedPhotoRepository) ListMissingLocation(ctx context.Context) ([]models.Photo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListMissingLocation(ctx)
}

func (l *LockedPhotoRepository) ListAll(ctx context.Context) ([]models.Photo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListAll(ctx)
}

func (l *LockedPhotoRepository) ListBracketCandidates(ctx context.Context) ([]models.Photo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListBracketCandidates(ctx)
}

func (l *LockedPhotoRepository) GetBracketGroup(ctx context.Context, groupID string) (*models.BracketGroup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.GetBracketGroup(ctx, groupID)
}

func (l *LockedPhotoRepository) ListBracketGroups(ctx context.Context) ([]models.BracketGroup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListBracketGroups(ctx)
}

func (l *LockedPhotoRepository) GetRun(ctx context.Context, id string) (*models.IngestRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.GetRun(ctx, id)
}

func (l *LockedPhotoRepository) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Flush(ctx)
}
