package database

import (
	"testing"

	modelspkg "tdh/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_UsersBeforeDependents(t *testing.T) {
	models := PersistentModels()
	require.NotEmpty(t, models)
	_, ok := models[0].(*modelspkg.User)
	require.True(t, ok, "users must be created before tables referencing them")

	found := false
	for _, model := range models {
		if _, ok := model.(*modelspkg.Like); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include Like")
}
