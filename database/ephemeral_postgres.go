package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/stapelberg/postgrestest"
)

// startEphemeralPostgres starts a throwaway PostgreSQL server and opens a fresh
// database on it through lib/pq. The caller must Cleanup the server.
func startEphemeralPostgres(ctx context.Context) (*postgrestest.Server, *sql.DB, error) {
	Logger.Info("Starting ephemeral PostgreSQL server...")

	pgt, err := postgrestest.Start(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start ephemeral postgres: %w", err)
	}
	Logger.Info("Ephemeral PostgreSQL server started", "dsn", pgt.DefaultDatabase())

	dsn, err := pgt.CreateDatabase(ctx)
	if err != nil {
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to create pagevision database: %w", err)
	}
	Logger.Info("Created ephemeral database", "dsn", dsn)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to open ephemeral database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		pgt.Cleanup()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	Logger.Info("Connected to ephemeral PostgreSQL database successfully")
	return pgt, sqlDB, nil
}
