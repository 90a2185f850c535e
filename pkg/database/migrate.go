package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"

	"wxstats/pkg/logging"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

const migrationsTable = "schema_migrations"

var migrationFileRe = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one embedded schema change.
type Migration struct {
	Version string
	Name    string
	body    string
}

// Migrate applies every embedded migration for the active dialect that has
// not been recorded in schema_migrations yet, in version order. It returns
// the migrations applied by this call.
func (d *DB) Migrate(ctx context.Context) ([]Migration, error) {
	if err := d.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := d.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	all, err := loadMigrations(d.dialect)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range all {
		if applied[m.Version] {
			continue
		}
		if err := d.apply(ctx, m); err != nil {
			return done, fmt.Errorf("apply %s_%s.sql: %w", m.Version, m.Name, err)
		}
		d.logger.Info(ctx, "[DB_MIGRATE] Migration applied", logging.Fields{
			"version": m.Version,
			"name":    m.Name,
			"driver":  d.dialect.String(),
		})
		done = append(done, m)
	}

	return done, nil
}

// AppliedMigrations lists recorded migration versions in order.
func (d *DB) AppliedMigrations(ctx context.Context) ([]string, error) {
	if err := d.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	var versions []string
	err := d.SelectContext(ctx, "list_migrations", &versions,
		`SELECT version FROM `+migrationsTable+` ORDER BY version`)
	return versions, err
}

func loadMigrations(dialect Dialect) ([]Migration, error) {
	dir := "migrations/" + dialect.String()
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := migrationFileRe.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		body, err := fs.ReadFile(migrationsFS, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: match[1], Name: match[2], body: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (d *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := d.ExecContext(ctx, "create_migrations_table", `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version    VARCHAR(16) PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (d *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	versions, err := d.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

func (d *DB) apply(ctx context.Context, m Migration) error {
	tx, err := d.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO `+migrationsTable+` (version, name) VALUES (?, ?)`),
		m.Version, m.Name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
