package database

import (
	"context"
	"testing"

	"tdh/internal/config"
	"tdh/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBDriver:                 "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, configurePool(db, &config.Config{DBDriver: "sqlite"}))
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantSQL bool
		wantAut bool
		wantErr bool
	}{
		{"hybrid dev", config.Config{DBDriver: "postgres", DBSchemaMode: "hybrid", Env: "development"}, true, true, false},
		{"hybrid prod", config.Config{DBDriver: "postgres", DBSchemaMode: "hybrid", Env: "production"}, true, false, false},
		{"sql only", config.Config{DBDriver: "postgres", DBSchemaMode: "sql", Env: "development"}, true, false, false},
		{"auto prod refused", config.Config{DBDriver: "postgres", DBSchemaMode: "auto", Env: "production"}, false, false, true},
		{"auto prod allowed", config.Config{DBDriver: "postgres", DBSchemaMode: "auto", Env: "production", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{DBDriver: "sqlite", DBSchemaMode: "sql", Env: "production"}, false, true, false},
		{"unknown mode", config.Config{DBDriver: "postgres", DBSchemaMode: "magic"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAut, runAuto)
		})
	}
}

func TestApplySchema_SQLiteCascades(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := &config.Config{DBDriver: "sqlite", Env: "test"}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	user := models.User{Username: "amal", Password: "x", Status: models.StatusApproved}
	require.NoError(t, db.Create(&user).Error)
	post := models.Post{UserID: user.ID, Content: "hello"}
	require.NoError(t, db.Create(&post).Error)
	require.NoError(t, db.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error)

	require.NoError(t, db.Delete(&models.User{}, user.ID).Error)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConnectWithOptions_SQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver: "sqlite",
		DBPath:   t.TempDir() + "/tdh.db",
	}

	bare, err := ConnectWithOptions(cfg, ConnectOptions{ApplySchema: false})
	require.NoError(t, err)
	assert.False(t, bare.Migrator().HasTable(&models.User{}))
	require.NoError(t, Close(bare))

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.Like{}))
	require.NoError(t, Ping(context.Background(), db))
}
