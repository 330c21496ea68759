package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/lumenmedia/dvdstore/internal/catalog"
	"github.com/lumenmedia/dvdstore/internal/config"
)

// Open establishes the record-store connection for the configured driver and
// performs schema migrations. The deployed system of record is MySQL; the
// embedded SQLite driver backs development and tests.
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		// SQLite leaves referential constraints off unless asked; the
		// dvd->director reference depends on them.
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}

	if err := db.AutoMigrate(&catalog.Director{}, &catalog.DVD{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("record store initialized", zap.String("driver", driver))
	}

	return db, nil
}
