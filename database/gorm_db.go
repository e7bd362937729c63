package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/photoingest/models"
)

// photoStoreDSNParams enables foreign keys on every connection so bracket
// group members must reference persisted photos.
const photoStoreDSNParams = "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"

// InitGormDB initializes and returns a GORM database instance for the photo store
func InitGormDB(dbPath string, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dbPath+photoStoreDSNParams), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	// one handle shared by the readers and the writer loop
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	log.Info("GORM database initialized", zap.String("path", dbPath))
	return db, nil
}

// AutoMigrateModels creates or updates the photo store schema
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Photo{},
		&models.BracketGroupMember{},
		&models.IngestRun{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}

// OpenPhotoStore initializes the store and migrates its schema.
func OpenPhotoStore(dbPath string, log *zap.Logger) (*gorm.DB, error) {
	db, err := InitGormDB(dbPath, log)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateModels(db); err != nil {
		ClosePhotoStore(db)
		return nil, err
	}
	return db, nil
}

// ClosePhotoStore closes the connection pool behind db.
func ClosePhotoStore(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	return sqlDB.Close()
}
