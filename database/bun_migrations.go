package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type migration struct {
	version string
	name    string
	up      func(context.Context, *bun.DB) error
}

// migrations are applied in order and recorded in bun_schema_migrations
var migrations = []migration{
	{"001", "create_jobs_table", init001CreateJobsTable},
	{"002", "create_prepared_pages_table", init002CreatePreparedPagesTable},
	{"003", "add_indexes", init003AddIndexes},
}

// runMigrations runs all Bun migrations not yet recorded
func runMigrations(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*bunSchemaMigration)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []bunSchemaMigration
	if err := db.NewSelect().Model(&applied).Scan(ctx); err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		_, err = db.NewInsert().
			Model(&bunSchemaMigration{Version: m.version, Name: m.name, AppliedAt: time.Now()}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

// Migration 001: jobs table
func init001CreateJobsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunJob)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}

// Migration 002: one row per prepared page, keyed by job
func init002CreatePreparedPagesTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunPreparedPage)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create prepared_pages table: %w", err)
	}
	return nil
}

// Migration 003: lookup indexes
func init003AddIndexes(ctx context.Context, db *bun.DB) error {
	indexes := []struct {
		model  interface{}
		name   string
		column string
	}{
		{(*BunJob)(nil), "idx_jobs_status", "status"},
		{(*BunJob)(nil), "idx_jobs_created_at", "created_at"},
		{(*BunPreparedPage)(nil), "idx_prepared_pages_job_id", "job_id"},
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}
