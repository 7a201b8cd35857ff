package service

import (
	"context"
	"testing"

	"tdh/internal/cache"
	"tdh/internal/models"
	"tdh/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenterService(t *testing.T) {
	mr, _ := testutil.NewRedis(t)
	f := newFixture(t)
	ctx := context.Background()
	admin := f.adminUser(t, "admin")
	member := f.user(t, "member", models.StatusApproved)
	pending := f.user(t, "pending", models.StatusPending)

	center, err := f.centers.Create(ctx, admin, CenterInput{
		Name:     "مركز TDH القاهرة",
		Location: "القاهرة - شارع التحرير",
		Hours:    "9 صباحاً - 5 مساءً",
		Link:     "https://tdh.example.com/cairo",
	})
	require.NoError(t, err)

	list, err := f.centers.List(ctx, member)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, center.Name, list[0].Name)
	assert.True(t, mr.Exists(cache.CentersKey))

	_, err = f.centers.List(ctx, pending)
	assertCode(t, err, models.CodePendingApproval)

	_, err = f.centers.Create(ctx, member, CenterInput{Name: "x"})
	assertCode(t, err, models.CodeForbidden)

	_, err = f.centers.Create(ctx, admin, CenterInput{Name: "  "})
	assertCode(t, err, models.CodeValidation)

	_, err = f.centers.Create(ctx, admin, CenterInput{Name: "Bad link", Link: "not-a-url"})
	assertCode(t, err, models.CodeValidation)

	require.NoError(t, f.centers.Delete(ctx, admin, center.ID))
	assert.False(t, mr.Exists(cache.CentersKey))
	assertCode(t, f.centers.Delete(ctx, admin, center.ID), models.CodeNotFound)

	list, err = f.centers.List(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, list)
}
