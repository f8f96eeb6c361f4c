// Package testutil provides the database fixtures shared by package tests: a
// uniquely named in-memory SQLite database per test and a process-wide embedded
// Postgres for the storage suite.
package testutil

import (
	"log"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bobotlabs/bobot/internal/storage"
)

// SQLiteTestDatabase describes one disposable in-memory SQLite database. The
// shared-cache name keeps every connection of a test on the same database while
// isolating it from all other tests in the process.
type SQLiteTestDatabase struct {
	configuration storage.Config
}

// NewSQLiteTestDatabase reserves a uniquely named in-memory SQLite database.
func NewSQLiteTestDatabase(testingT *testing.T) SQLiteTestDatabase {
	testingT.Helper()

	dataSourceName := "file:bobot-test-" + storage.NewID() + "?mode=memory&cache=shared&_foreign_keys=on"

	return SQLiteTestDatabase{
		configuration: storage.Config{
			DriverName:     storage.DriverNameSQLite,
			DataSourceName: dataSourceName,
		},
	}
}

// Configuration returns the storage configuration for the database.
func (database SQLiteTestDatabase) Configuration() storage.Config {
	return database.configuration
}

// DataSourceName returns the shared-cache data source name for the database.
func (database SQLiteTestDatabase) DataSourceName() string {
	return database.configuration.DataSourceName
}

// MustOpenDatabase opens a fresh in-memory database and runs the schema
// migration, failing the test on any error.
func MustOpenDatabase(testingT *testing.T) *gorm.DB {
	testingT.Helper()

	database, openErr := storage.OpenDatabase(NewSQLiteTestDatabase(testingT).Configuration())
	if openErr != nil {
		testingT.Fatalf("open test database: %v", openErr)
	}
	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		testingT.Fatalf("migrate test database: %v", migrateErr)
	}
	return database
}

// ConfigureDatabaseLogger routes gorm logging through the test log and drops
// record-not-found noise.
func ConfigureDatabaseLogger(testingT *testing.T, database *gorm.DB) *gorm.DB {
	testingT.Helper()
	if database == nil {
		testingT.Fatalf("configure database logger: nil database")
	}

	gormLogger := logger.New(
		log.New(testLogWriter{testingT: testingT}, "", 0),
		logger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  logger.Error,
		},
	)
	return database.Session(&gorm.Session{Logger: gormLogger})
}

type testLogWriter struct {
	testingT *testing.T
}

func (writer testLogWriter) Write(data []byte) (int, error) {
	if line := strings.TrimSpace(string(data)); line != "" {
		writer.testingT.Log(line)
	}
	return len(data), nil
}
