package database

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	migrationNameRegex  = regexp.MustCompile(`^(\d{8})_.+\.sql$`)
	migrationTableRegex = regexp.MustCompile(`(?i)\bON\s+([a-z_][a-z0-9_]*)\s*\(`)
)

type migration struct {
	filename string
	name     string
	sql      string
}

// RunMigrations applies embedded SQL migrations that have not been recorded yet.
// It runs after AutoMigrate, so migrations only add indexes and data fixes.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.filename, err)
		}
	}

	return nil
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := migrationsFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, migration{
			filename: entry.Name(),
			name:     migrationName(entry.Name()),
			sql:      string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].filename < migrations[j].filename
	})

	return migrations, nil
}

// migrationName keys a migration by its YYYYMMDD_description.sql filename
func migrationName(filename string) string {
	if matches := migrationNameRegex.FindStringSubmatch(filename); len(matches) == 2 {
		return strings.TrimSuffix(filename, ".sql")
	}
	return filename
}

func appliedMigrations(db *gorm.DB) (map[string]bool, error) {
	var names []string
	if err := db.Table("schema_migrations").Pluck("name", &names).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(names))
	for _, name := range names {
		applied[name] = true
	}
	return applied, nil
}

func applyMigration(db *gorm.DB, m migration) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if table := migrationTable(m.sql); table != "" {
			var count int64
			if err := tx.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("table %s does not exist", table)
			}
		}

		if err := tx.Exec(m.sql).Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO schema_migrations (name) VALUES (?)", m.name).Error
	})
}

// migrationTable returns the table an index migration targets, if any
func migrationTable(sql string) string {
	if matches := migrationTableRegex.FindStringSubmatch(sql); len(matches) == 2 {
		return matches[1]
	}
	return ""
}
