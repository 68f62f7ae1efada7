package testinfra

import (
	"context"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hookdeck/relaycursor/internal/clickhouse"
	chmodule "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

var clickhouseOnce sync.Once

const (
	clickhouseUser     = "default"
	clickhousePassword = "relaycursor"
)

// NewClickHouseConfig creates an empty database for the test. The database
// is dropped on cleanup.
func NewClickHouseConfig(t *testing.T) clickhouse.ClickHouseConfig {
	t.Helper()
	addr := EnsureClickHouse()
	ctx := context.Background()

	admin := clickhouse.ClickHouseConfig{Addr: addr, Username: clickhouseUser, Password: clickhousePassword, Database: "default"}
	conn, err := clickhouse.Open(ctx, &admin)
	if err != nil {
		t.Fatalf("connect clickhouse: %v", err)
	}
	defer conn.Close()

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}

	t.Cleanup(func() {
		conn, err := clickhouse.New(&admin)
		if err != nil {
			log.Printf("failed to connect for cleanup: %s", err)
			return
		}
		defer conn.Close()
		if err := conn.Exec(context.Background(), "DROP DATABASE IF EXISTS "+dbName); err != nil {
			log.Printf("failed to drop database %s: %s", dbName, err)
		}
	})

	cfg := admin
	cfg.Database = dbName
	return cfg
}

func EnsureClickHouse() string {
	cfg := ReadConfig()
	if cfg.ClickHouseURL == "" {
		clickhouseOnce.Do(func() {
			startClickHouseTestContainer(cfg)
		})
	}
	return cfg.ClickHouseURL
}

func startClickHouseTestContainer(cfg *Config) {
	ctx := context.Background()

	container, err := chmodule.Run(ctx,
		"clickhouse/clickhouse-server:24-alpine",
		chmodule.WithUsername(clickhouseUser),
		chmodule.WithPassword(clickhousePassword),
	)
	if err != nil {
		panic(err)
	}

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		panic(err)
	}
	log.Printf("ClickHouse running at %s", endpoint)
	cfg.ClickHouseURL = endpoint
	cfg.cleanupFns = append(cfg.cleanupFns, func() {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	})
}
