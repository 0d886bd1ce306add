package database_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/database"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/testhelpers"
)

func TestRunMigrationsPostgres(t *testing.T) {
	cfg := testhelpers.StartPostgres(t)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.HealthCheck(context.Background()))

	gdb, err := db.Gorm(false)
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(gdb, "../../migrations"))
	require.NoError(t, database.RunMigrations(gdb, "../../migrations"))

	var applied int64
	require.NoError(t, gdb.Table("migrations").Count(&applied).Error)
	assert.EqualValues(t, 1, applied)

	ent := models.UserEntitlements{UID: "user-1", Tier: models.TierFree, MealGenerationsLimit: 30}
	require.NoError(t, gdb.Create(&ent).Error)
	var found models.UserEntitlements
	require.NoError(t, gdb.First(&found, "uid = ?", "user-1").Error)
	assert.Equal(t, 30, found.MealGenerationsLimit)
}

func TestRunMigrationsSQLiteSkipsSQLFiles(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(gdb, "does-not-exist"))
	assert.True(t, gdb.Migrator().HasTable(&models.RecipeImage{}))
	assert.False(t, gdb.Migrator().HasTable("migrations"))
}
