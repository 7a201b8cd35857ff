package main

import (
	"context"
	"testing"
	"time"

	"tdh/internal/config"
	"tdh/internal/models"
	"tdh/internal/notifications"
	"tdh/internal/storage"
	"tdh/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproveFromCLI_NotifiesMember(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewRedis(t)
	cfg := &config.Config{MediaBackend: "local", MediaDir: t.TempDir(), MediaMaxUploadSizeMB: 2}
	store, err := storage.New(ctx, cfg)
	require.NoError(t, err)

	admin := testutil.CreateAdmin(t, db, "operator")
	waiting := testutil.CreateUser(t, db, "newcomer", models.StatusPending)

	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe(notifications.UserChannel(waiting.ID))

	accounts := newAccountService(cfg, db, rdb, store)
	require.NoError(t, accounts.TransitionStatus(ctx, admin, waiting.ID, models.StatusApproved))

	select {
	case msg := <-sub.Messages():
		assert.Contains(t, msg.Message, notifications.EventAccountApproved)
	case <-time.After(2 * time.Second):
		t.Fatal("approval was not published")
	}
}

func TestPublisherFor_WithoutRedis(t *testing.T) {
	assert.Nil(t, publisherFor(nil))
}
