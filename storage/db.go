package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"wikicite/config"
	"wikicite/models"
)

// AllModels listet alle Tabellen in Migrationsreihenfolge.
func AllModels() []interface{} {
	return []interface{}{
		&models.Concept{},
		&models.Domain{},
		&models.Container{},
		&models.Document{},
		&models.WebResource{},
		&models.Citation{},
		&models.NormalizedCitation{},
		&models.CitationHistory{},
		&models.ReferencedDocument{},
		&models.SourceFile{},
	}
}

// Open verbindet sich je nach DB_DRIVER mit PostgreSQL oder SQLite.
func Open(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return OpenSQLite(cfg.SQLitePath)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Jeder Worker braucht während des Schreibens eine eigene Verbindung.
	sqlDB.SetMaxOpenConns(max(cfg.DBMaxOpenConns, cfg.Workers+2))
	return db, nil
}

// OpenSQLite öffnet eine SQLite-Datei über den reinen Go-Treiber (modernc.org/sqlite).
// SQLite erlaubt nur einen Schreiber, daher genau eine Verbindung mit Busy-Timeout.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// Migrate legt alle Tabellen und Indizes an.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// DropAll entfernt alle Tabellen.
func DropAll(db *gorm.DB) error {
	return db.Migrator().DropTable(AllModels()...)
}
