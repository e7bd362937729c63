package locations

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/camden-git/photoingest/database"
)

// ErrNoLocationData is returned by Resolve when no samples are loaded.
var ErrNoLocationData = errors.New("no location data loaded")

// Index answers nearest-timestamp coordinate queries over a location history
// stored in the location database. The table is read-only between loads.
type Index struct {
	mu  sync.RWMutex
	db  *sql.DB
	log *zap.Logger
}

func NewIndex(db *sql.DB, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{db: db, log: log}
}

// Load replaces the stored samples with those in historyFile unless the
// stored version already matches it. A file whose modification time changed
// but whose checksum did not only has its version row refreshed. Load
// reports whether samples were (re)loaded.
func (ix *Index) Load(ctx context.Context, historyFile string) (bool, error) {
	fi, err := os.Stat(historyFile)
	if err != nil {
		return false, fmt.Errorf("failed to stat location history %s: %w", historyFile, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored, err := database.GetHistoryVersion(ix.db)
	haveStored := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	current := database.HistoryVersion{
		SourcePath:   historyFile,
		ModifiedUnix: fi.ModTime().Unix(),
		Size:         fi.Size(),
	}
	if haveStored && stored.ModifiedUnix == current.ModifiedUnix && stored.Size == current.Size {
		ix.log.Debug("location history unchanged", zap.String("file", historyFile))
		return false, nil
	}

	current.Checksum, err = fileChecksum(historyFile)
	if err != nil {
		return false, err
	}
	if haveStored && stored.Checksum == current.Checksum {
		// same content, touched file
		current.SampleCount = stored.SampleCount
		if err := database.SetHistoryVersion(ix.db, current); err != nil {
			return false, err
		}
		ix.log.Debug("location history checksum unchanged", zap.String("file", historyFile))
		return false, nil
	}

	ix.log.Warn("location database is out of date, reloading", zap.String("file", historyFile))
	f, err := os.Open(historyFile)
	if err != nil {
		return false, fmt.Errorf("failed to open location history %s: %w", historyFile, err)
	}
	defer f.Close()

	samples, err := ParseHistory(f)
	if err != nil {
		return false, fmt.Errorf("failed to parse location history %s: %w", historyFile, err)
	}
	current.SampleCount = len(samples)

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin location reload: %w", err)
	}
	defer tx.Rollback()

	if err := database.ReplaceLocations(tx, samples); err != nil {
		return false, err
	}
	if err := database.SetHistoryVersion(tx, current); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit location reload: %w", err)
	}

	ix.log.Info("locations loaded", zap.String("file", historyFile), zap.Int("count", len(samples)))
	return true, nil
}

// Resolve returns the midpoint of the nearest samples at or before and at or
// after ts. When ts lies outside the loaded range the single bounding
// sample is returned unmodified.
func (ix *Index) Resolve(ts time.Time) (lat, lng float64, err error) {
	t := ts.UnixMilli()

	ix.mu.RLock()
	after, okAfter, err := database.NearestAtOrAfter(ix.db, t)
	if err != nil {
		ix.mu.RUnlock()
		return 0, 0, err
	}
	before, okBefore, err := database.NearestAtOrBefore(ix.db, t)
	ix.mu.RUnlock()
	if err != nil {
		return 0, 0, err
	}

	switch {
	case okAfter && okBefore:
		lat = float64(after.LatitudeE7+before.LatitudeE7) / 2 / 1e7
		lng = float64(after.LongitudeE7+before.LongitudeE7) / 2 / 1e7
	case okAfter:
		lat, lng = after.Latitude(), after.Longitude()
	case okBefore:
		lat, lng = before.Latitude(), before.Longitude()
	default:
		return 0, 0, ErrNoLocationData
	}

	ix.log.Debug("location at timestamp", zap.Time("ts", ts), zap.Float64("lat", lat), zap.Float64("lng", lng))
	return lat, lng, nil
}

// Count returns the number of loaded samples
func (ix *Index) Count() (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return database.CountLocations(ix.db)
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
