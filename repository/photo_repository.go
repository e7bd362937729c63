package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/camden-git/photoingest/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PhotoRepository handles database operations for Photo and BracketGroupMember entities
type PhotoRepository struct {
	DB *gorm.DB
}

// NewPhotoRepository creates a new instance of PhotoRepository
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{DB: db}
}

// liteColumns skips the thumbnail and tag blobs for listing queries.
var liteColumns = []string{
	"path", "file_kind", "captured_at", "latitude", "longitude",
	"bracket_mode", "bracket_shot_count", "bracket_exposure_value",
}

func (r *PhotoRepository) Upsert(ctx context.Context, photo *models.Photo) error {
	if photo.Path == "" {
		return errors.New("photo path is empty")
	}
	result := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			UpdateAll: true,
		}).
		Create(photo)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert photo %s: %w", photo.Path, result.Error)
	}
	return nil
}

func (r *PhotoRepository) SetLocation(ctx context.Context, path string, lat, lng float64) error {
	result := r.DB.WithContext(ctx).Model(&models.Photo{}).
		Where("path = ?", path).
		Updates(map[string]interface{}{"latitude": lat, "longitude": lng})
	if result.Error != nil {
		return fmt.Errorf("failed to set location for %s: %w", path, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to set location for %s: %w", path, ErrNotFound)
	}
	return nil
}

func (r *PhotoRepository) ReplaceBracketGroup(ctx context.Context, groupID string, members []string) error {
	if groupID == "" || len(members) == 0 {
		return errors.New("bracket group needs an id and at least one member")
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a group losing a member no longer matches its id, so it goes entirely
		var stale []string
		if err := tx.Model(&models.BracketGroupMember{}).
			Distinct("group_id").
			Where("member_path IN ?", members).
			Pluck("group_id", &stale).Error; err != nil {
			return fmt.Errorf("failed to find previous groups of %s: %w", groupID, err)
		}
		stale = append(stale, groupID)

		if err := tx.Where("group_id IN ?", stale).
			Delete(&models.BracketGroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous membership for group %s: %w", groupID, err)
		}

		rows := make([]models.BracketGroupMember, len(members))
		for i, m := range members {
			rows[i] = models.BracketGroupMember{GroupID: groupID, MemberPath: m, Position: i}
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to create bracket group %s: %w", groupID, err)
		}
		return nil
	})
}

func (r *PhotoRepository) SaveRun(ctx context.Context, run *models.IngestRun) error {
	if err := r.DB.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to save ingest run %s: %w", run.ID, err)
	}
	return nil
}

func (r *PhotoRepository) Exists(ctx context.Context, path string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Photo{}).
		Where("path = ?", path).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check if %s was processed: %w", path, err)
	}
	return count > 0, nil
}

// GetByPath retrieves the full record, thumbnail included
func (r *PhotoRepository) GetByPath(ctx context.Context, path string) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.WithContext(ctx).Where("path = ?", path).First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get photo by path %s: %w", path, err)
	}
	return &photo, nil
}

// ListPaths returns every path ordered by filename then capture time
func (r *PhotoRepository) ListPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.DB.WithContext(ctx).Model(&models.Photo{}).
		Order("path, captured_at").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photo paths: %w", err)
	}
	return paths, nil
}

func (r *PhotoRepository) ListRawPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.DB.WithContext(ctx).Model(&models.Photo{}).
		Where("file_kind = ?", models.FileKindRAW).
		Order("path, captured_at").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list raw photo paths: %w", err)
	}
	return paths, nil
}

// ListByCaptureRange returns paths captured in [start, end] (Unix milliseconds)
func (r *PhotoRepository) ListByCaptureRange(ctx context.Context, start, end int64) ([]string, error) {
	var paths []string
	err := r.DB.WithContext(ctx).Model(&models.Photo{}).
		Where("captured_at BETWEEN ? AND ?", start, end).
		Order("captured_at, path").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos between %d and %d: %w", start, end, err)
	}
	return paths, nil
}

// ListMissingLocation returns photos without coordinates, tags included so
// embedded GPS can be consulted.
func (r *PhotoRepository) ListMissingLocation(ctx context.Context) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.WithContext(ctx).
		Omit("thumbnail").
		Where("latitude IS NULL OR longitude IS NULL").
		Order("path, captured_at").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos missing a location: %w", err)
	}
	return photos, nil
}

func (r *PhotoRepository) ListAll(ctx context.Context) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.WithContext(ctx).
		Omit("thumbnail").
		Order("path, captured_at").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// ListBracketCandidates returns bracket-flagged photos in capture order. Ties
// are left to the caller, which orders them by natural filename.
func (r *PhotoRepository) ListBracketCandidates(ctx context.Context) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.WithContext(ctx).
		Select(liteColumns).
		Where("bracket_mode <> 0").
		Order("captured_at, path").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bracket candidates: %w", err)
	}
	return photos, nil
}

func (r *PhotoRepository) GetBracketGroup(ctx context.Context, groupID string) (*models.BracketGroup, error) {
	var rows []models.BracketGroupMember
	err := r.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get bracket group %s: %w", groupID, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	group := &models.BracketGroup{GroupID: groupID}
	for _, row := range rows {
		group.Members = append(group.Members, row.MemberPath)
	}
	return group, nil
}

func (r *PhotoRepository) ListBracketGroups(ctx context.Context) ([]models.BracketGroup, error) {
	var rows []models.BracketGroupMember
	err := r.DB.WithContext(ctx).
		Order("group_id, position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bracket groups: %w", err)
	}

	var groups []models.BracketGroup
	for _, row := range rows {
		if n := len(groups); n == 0 || groups[n-1].GroupID != row.GroupID {
			groups = append(groups, models.BracketGroup{GroupID: row.GroupID})
		}
		last := &groups[len(groups)-1]
		last.Members = append(last.Members, row.MemberPath)
	}
	return groups, nil
}

func (r *PhotoRepository) GetRun(ctx context.Context, id string) (*models.IngestRun, error) {
	var run models.IngestRun
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingest run %s: %w", id, err)
	}
	return &run, nil
}

// Flush checkpoints the write-ahead log into the database file
func (r *PhotoRepository) Flush(ctx context.Context) error {
	if err := r.DB.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return fmt.Errorf("failed to checkpoint photo store: %w", err)
	}
	return nil
}

