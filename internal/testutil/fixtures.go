// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"tdh/internal/cache"
	"tdh/internal/database"
	"tdh/internal/models"
	"tdh/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns an isolated in-memory SQLite database with the full schema.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewRedis starts a miniredis server, installs it as the shared cache client
// and restores the previous state when the test ends.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr, rdb
}

// CreateUser inserts an account whose password is "password1".
func CreateUser(t testing.TB, db *gorm.DB, username string, status models.AccountStatus) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Username: username, Password: string(hash), Status: status}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateAdmin inserts an approved administrator.
func CreateAdmin(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := CreateUser(t, db, username, models.StatusApproved)
	require.NoError(t, db.Model(u).Update("is_admin", true).Error)
	u.IsAdmin = true
	return u
}

func CreatePost(t testing.TB, db *gorm.DB, userID uint, content string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: userID, Content: content}
	require.NoError(t, db.Omit("User", "Comments").Create(p).Error)
	return p
}

// PNG encodes a w x h test image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	UserID uint // zero for broadcasts
	Event  notifications.Event
}

func (p *RecordingPublisher) Broadcast(_ context.Context, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, RecordedEvent{Event: ev})
	return nil
}

func (p *RecordingPublisher) NotifyUser(_ context.Context, userID uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, RecordedEvent{UserID: userID, Event: ev})
	return nil
}

// Types returns the recorded event types in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Event.Type
	}
	return out
}
