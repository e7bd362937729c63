package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/photoingest/config"
	"github.com/camden-git/photoingest/database"
	"github.com/camden-git/photoingest/locations"
	"github.com/camden-git/photoingest/logging"
	"github.com/camden-git/photoingest/media"
	"github.com/camden-git/photoingest/repository"
	"github.com/camden-git/photoingest/workers"
)

// app holds what every command opens: config, logger and the photo store.
// The location index is opened on demand.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	db    *gorm.DB
	store repository.PhotoRepositoryInterface

	locDB *sql.DB
	index *locations.Index

	closeExtractor func() error
}

func newApp(cmd *cobra.Command, args []string) (*app, error) {
	cfg, err := config.LoadConfig(configFileFlag, bindFlags(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.IngestPaths = cfg.IngestPaths[:0]
		for _, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %s: %w", a, err)
			}
			cfg.IngestPaths = append(cfg.IngestPaths, abs)
		}
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		log.Warn("configuration: " + w)
	}

	if err := os.MkdirAll(cfg.DatabaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", cfg.DatabaseDir, err)
	}

	db, err := database.OpenPhotoStore(cfg.PhotoStorePath(), log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: repository.NewLockedPhotoRepository(repository.NewPhotoRepository(db)),
	}
	log.Debug("using photo store", zap.String("path", cfg.PhotoStorePath()))
	return a, nil
}

// openIndex opens the location index and, when a history file is
// configured, brings it up to date with that file.
func (a *app) openIndex(cmd *cobra.Command) error {
	if a.index != nil {
		return nil
	}
	locDB, err := database.InitLocationDB(a.cfg.LocationStorePath())
	if err != nil {
		return err
	}
	a.locDB = locDB
	a.index = locations.NewIndex(locDB, a.log.Named("locations"))

	if a.cfg.LocationHistoryFile == "" {
		return nil
	}
	if _, err := a.index.Load(cmd.Context(), a.cfg.LocationHistoryFile); err != nil {
		return err
	}
	return nil
}

// resolver returns the index as a Resolver, or nil when it holds no samples.
func (a *app) resolver() locations.Resolver {
	if a.index == nil {
		return nil
	}
	n, err := a.index.Count()
	if err != nil || n == 0 {
		return nil
	}
	return a.index
}

func (a *app) extractor() (media.Extractor, error) {
	switch a.cfg.Extractor {
	case config.ExtractorGoExif:
		return media.NewGoExifExtractor(a.cfg.ThumbnailMaxSize, a.log.Named("goexif")), nil
	default:
		et, err := media.NewExifToolExtractor(a.cfg.ExifToolPath, a.cfg.ThumbnailMaxSize, a.log.Named("exiftool"))
		if err != nil {
			return nil, fmt.Errorf("%w (install exiftool or use --extractor %s)", err, config.ExtractorGoExif)
		}
		a.closeExtractor = et.Close
		return et, nil
	}
}

func (a *app) orchestrator(ext media.Extractor) *workers.Orchestrator {
	return workers.NewOrchestrator(a.store, ext, a.resolver(), workers.Options{
		NumWorkers:         a.cfg.NumWorkers,
		WriteQueueSize:     a.cfg.WriteQueueSize,
		Extensions:         a.cfg.Extensions,
		DetectBrackets:     a.cfg.DetectBrackets,
		BracketMaxDuration: a.cfg.BracketMaxDuration,
	}, a.log.Named("ingest"))
}

func (a *app) Close() {
	if a.closeExtractor != nil {
		if err := a.closeExtractor(); err != nil {
			a.log.Warn("closing extractor", zap.Error(err))
		}
	}
	if a.locDB != nil {
		a.locDB.Close()
	}
	if err := database.ClosePhotoStore(a.db); err != nil {
		a.log.Warn("closing photo store", zap.Error(err))
	}
	_ = a.log.Sync()
}
