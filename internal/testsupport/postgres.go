// Package testsupport starts throwaway PostgreSQL and Redis containers for
// integration tests and reads Prometheus series for metric assertions.
package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rafaeljc/tipsengine/internal/config"
	"github.com/rafaeljc/tipsengine/internal/database"
)

const postgresImage = "postgres:16-alpine"

// PostgresContainer is a migrated database and a pool connected to it.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// Terminate closes the pool and removes the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

// StartPostgresContainer starts Postgres with every *.sql file of
// migrationsDir applied as an init script, in file name order, and opens a
// pool through database.NewPostgresPool.
func StartPostgresContainer(ctx context.Context, migrationsDir string) (*PostgresContainer, error) {
	scripts, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no migrations found in %s", migrationsDir)
	}
	slices.Sort(scripts)
	for i, s := range scripts {
		if scripts[i], err = filepath.Abs(s); err != nil {
			return nil, fmt.Errorf("failed to resolve migration %s: %w", s, err)
		}
	}

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("tipsengine_test"),
		postgres.WithUsername("tipsengine"),
		postgres.WithPassword("tipsengine"),
		postgres.WithInitScripts(scripts...),
		// The server restarts once after running the init scripts.
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to read connection string: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:             dsn,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 10 * time.Minute,
		MaxConnIdleTime: time.Minute,
		ConnectTimeout:  5 * time.Second,
		PingMaxRetries:  5,
		PingBackoff:     200 * time.Millisecond,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	return &PostgresContainer{Container: ctr, DB: pool, ConnectionString: dsn}, nil
}
