package database

import (
	"fmt"
	"time"

	"escrow-market/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open opens a gorm handle for driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect establishes the process-wide database connection
func Connect(driver, dsn string, log *zap.Logger) error {
	db, err := Open(driver, dsn)
	if err != nil {
		return err
	}
	DB = db

	log.Info("database connection established", zap.String("driver", driver))
	return nil
}

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.AdminUser{},
		&models.Deal{},
		&models.DealEvent{},
		&models.Transaction{},
		&models.IdempotencyKey{},
		&models.Dispute{},
		&models.Message{},
		&models.Notification{},
		&models.AdminLog{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates all tables on db
func Migrate(db *gorm.DB) error {
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(log *zap.Logger) error {
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Info("database migrations completed")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
