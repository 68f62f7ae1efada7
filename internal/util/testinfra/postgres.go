package testinfra

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresOnce sync.Once

// NewPostgresConfig creates an empty database for the test and returns its
// URL. The database is dropped on cleanup.
func NewPostgresConfig(t *testing.T) string {
	t.Helper()
	adminURL := EnsurePostgres()
	ctx := context.Background()

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}

	t.Cleanup(func() {
		conn, err := pgx.Connect(ctx, adminURL)
		if err != nil {
			log.Printf("failed to connect for cleanup: %s", err)
			return
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName+" WITH (FORCE)"); err != nil {
			log.Printf("failed to drop database %s: %s", dbName, err)
		}
	})

	u, err := url.Parse(adminURL)
	if err != nil {
		t.Fatalf("parse postgres url: %v", err)
	}
	u.Path = "/" + dbName
	return u.String()
}

func EnsurePostgres() string {
	cfg := ReadConfig()
	if cfg.PostgresURL == "" {
		postgresOnce.Do(func() {
			startPostgresTestContainer(cfg)
		})
	}
	return cfg.PostgresURL
}

func startPostgresTestContainer(cfg *Config) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("relaycursor"),
		postgres.WithUsername("relaycursor"),
		postgres.WithPassword("relaycursor"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		panic(err)
	}

	endpoint, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	log.Printf("Postgres running at %s", endpoint)
	cfg.PostgresURL = endpoint
	cfg.cleanupFns = append(cfg.cleanupFns, func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	})
}
