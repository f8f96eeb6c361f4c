package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobotlabs/bobot/internal/model"
	"github.com/bobotlabs/bobot/internal/storage"
	"github.com/bobotlabs/bobot/internal/testutil"
)

func TestOpenDatabaseRejectsMissingDriverName(t *testing.T) {
	_, err := storage.OpenDatabase(storage.Config{DataSourceName: "file:test?mode=memory"})
	require.ErrorIs(t, err, storage.ErrMissingDatabaseDriverName)
}

func TestOpenDatabaseRejectsUnsupportedDriver(t *testing.T) {
	_, err := storage.OpenDatabase(storage.Config{DriverName: "oracle", DataSourceName: "dsn"})
	require.ErrorIs(t, err, storage.ErrUnsupportedDatabaseDriver)
}

func TestOpenDatabaseAndMigrateSQLite(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)
	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(t, openErr)
	require.NoError(t, storage.AutoMigrate(database))

	company, companyErr := model.NewCompany(model.CompanyInput{ID: "acme", Name: "Acme AB"})
	require.NoError(t, companyErr)
	require.NoError(t, database.Create(&company).Error)

	widgetConfig, configErr := model.NewWidgetConfig(model.WidgetConfigInput{
		CompanyID:          company.ID,
		SuggestedQuestions: []string{"Opening hours?", "Pricing?"},
	})
	require.NoError(t, configErr)
	require.NoError(t, database.Create(&widgetConfig).Error)

	var reloaded model.WidgetConfig
	require.NoError(t, database.First(&reloaded, "company_id = ?", company.ID).Error)
	require.Equal(t, widgetConfig.WidgetKey, reloaded.WidgetKey)
	require.Equal(t, []string{"Opening hours?", "Pricing?"}, reloaded.SuggestedQuestions)
}

func TestAutoMigrateReportsErrorOnClosedDatabase(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)
	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(t, openErr)

	sqlDatabase, sqlErr := database.DB()
	require.NoError(t, sqlErr)
	require.NoError(t, sqlDatabase.Close())

	require.Error(t, storage.AutoMigrate(database))
}

func TestNewIDProducesUniqueIdentifiers(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		identifier := storage.NewID()
		require.NotEmpty(t, identifier)
		_, duplicate := seen[identifier]
		require.False(t, duplicate)
		seen[identifier] = struct{}{}
	}
}
