package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tdh/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

// CURRENT_TIMESTAMP keeps the log table portable between PostgreSQL and SQLite.
const ensureMigrationLogTableSQL = `CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migrator applies a fixed list of migrations to one database. Each migration
// runs in a transaction together with its log row, so a failed script leaves
// neither a half-applied schema nor a false log entry behind.
type Migrator struct {
	db   *gorm.DB
	list []Migration
}

// NewMigrator returns a Migrator for list, which must be sorted by version.
func NewMigrator(db *gorm.DB, list []Migration) *Migrator {
	return &Migrator{db: db, list: list}
}

// Applied returns the logged versions, oldest first. A missing log table means none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := m.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the migrations not yet logged.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var pending []Migration
	for _, mig := range m.list {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration in order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.db.WithContext(ctx).Exec(ensureMigrationLogTableSQL).Error; err != nil {
		return 0, fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}
	if err := validateAppliedVersions(applied, m.list); err != nil {
		return 0, err
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		middleware.Logger.Info("Applying migration", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", mig, err)
			}
			if err := tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name}).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", mig, err)
			}
			return nil
		})
		if err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Down reverts version, which must be the newest applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	var target *Migration
	for i := range m.list {
		if m.list[i].Version == version {
			target = &m.list[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 || applied[len(applied)-1] != version {
		if !containsVersion(applied, version) {
			return fmt.Errorf("migration %d has not been applied", version)
		}
		return fmt.Errorf("migration %d is not the latest applied (latest is %06d)", version, applied[len(applied)-1])
	}

	middleware.Logger.Info("Rolling back migration", slog.Int("version", version), slog.String("name", target.Name))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.DownScript).Error; err != nil {
			return fmt.Errorf("failed to run rollback SQL for migration %s: %w", target, err)
		}
		if err := tx.Where("version = ?", version).Delete(&MigrationLog{}).Error; err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", version, err)
		}
		return nil
	})
}

// RunMigrations applies the embedded TDH migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	n, err := NewMigrator(db, migrations).Up(ctx)
	if n > 0 {
		middleware.Logger.Info("Migrations applied", slog.Int("count", n))
	}
	return err
}

// RollbackMigration reverts the newest embedded migration, identified by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db, migrations).Down(ctx, version)
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

func containsVersion(versions []int, v int) bool {
	for _, x := range versions {
		if x == v {
			return true
		}
	}
	return false
}

// validateAppliedVersions refuses to run against a database that has seen
// migrations this build does not know about.
func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]struct{}, len(registered))
	for _, m := range registered {
		known[m.Version] = struct{}{}
	}

	var unknown []string
	sorted := append([]int(nil), applied...)
	sort.Ints(sorted)
	for _, version := range sorted {
		if _, ok := known[version]; !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf(
		"migration_logs contains unknown versions not present in code: %s (run `migrate down` or reset the development database)",
		strings.Join(unknown, ", "),
	)
}
