package database

import "tdh/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for SQLite, which creates foreign keys inline.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Center{},
	}
}
