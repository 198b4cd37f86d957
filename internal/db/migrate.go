package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cencori/gateway/internal/models"
)

// Open connects to the database described by the DSN. A DSN ending in
// `.db` or equal to `:memory:` selects SQLite, everything else Postgres.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if strings.HasSuffix(dsn, ".db") || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		conn, errOpen := gorm.Open(sqlite.Open(dsn), gormCfg)
		if errOpen != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
		}
		return conn, nil
	}
	conn, errOpen := gorm.Open(postgres.Open(dsn), gormCfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open postgres: %w", errOpen)
	}
	return conn, nil
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrate(conn, sqliteIndexes)
	case DialectPostgres, "":
		return migrate(conn, postgresIndexes)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

func migrate(conn *gorm.DB, indexes []ddl) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Organization{},
		&models.Project{},
		&models.APIKey{},
		&models.ProviderCredential{},
		&models.Webhook{},
		&models.Usage{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	for _, item := range indexes {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}

// ddl defines an index or DDL statement to apply.
type ddl struct {
	name string // Human-readable name for error reporting.
	sql  string // SQL to execute.
}

var postgresIndexes = []ddl{
	{
		name: "idx_api_keys_project_id_created_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_api_keys_project_id_created_at
			ON api_keys (project_id, created_at DESC)
		`,
	},
	{
		name: "idx_api_keys_hash_not_revoked",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_api_keys_hash_not_revoked
			ON api_keys (key_hash)
			WHERE revoked_at IS NULL
		`,
	},
	{
		name: "idx_webhooks_project_id_active",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_webhooks_project_id_active
			ON webhooks (project_id)
			WHERE is_active = true
		`,
	},
	{
		name: "idx_usages_project_id_requested_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_usages_project_id_requested_at
			ON usages (project_id, requested_at DESC)
		`,
	},
	{
		name: "idx_usages_project_id_status",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_usages_project_id_status
			ON usages (project_id, status)
		`,
	},
	{
		name: "idx_projects_organization_id",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_projects_organization_id
			ON projects (organization_id)
		`,
	},
}

var sqliteIndexes = []ddl{
	{
		name: "idx_api_keys_project_id_created_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_api_keys_project_id_created_at
			ON api_keys (project_id, created_at DESC)
		`,
	},
	{
		name: "idx_api_keys_hash_not_revoked",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_api_keys_hash_not_revoked
			ON api_keys (key_hash)
			WHERE revoked_at IS NULL
		`,
	},
	{
		name: "idx_webhooks_project_id_active",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_webhooks_project_id_active
			ON webhooks (project_id)
			WHERE is_active = true
		`,
	},
	{
		name: "idx_usages_project_id_requested_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_usages_project_id_requested_at
			ON usages (project_id, requested_at DESC)
		`,
	},
	{
		name: "idx_usages_project_id_status",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_usages_project_id_status
			ON usages (project_id, status)
		`,
	},
	{
		name: "idx_projects_organization_id",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_projects_organization_id
			ON projects (organization_id)
		`,
	},
}
