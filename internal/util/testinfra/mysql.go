package testinfra

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// NewMySQLConfig creates an empty database on the server at TEST_MYSQL_DSN
// and returns its DSN. Tests are skipped when no server is configured.
func NewMySQLConfig(t *testing.T) string {
	t.Helper()
	cfg := ReadConfig()
	if cfg.MySQLDSN == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}

	admin, err := mysql.ParseDSN(cfg.MySQLDSN)
	if err != nil {
		t.Fatalf("parse mysql dsn: %v", err)
	}
	db, err := sql.Open("mysql", admin.FormatDSN())
	if err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}

	t.Cleanup(func() {
		db, err := sql.Open("mysql", admin.FormatDSN())
		if err != nil {
			log.Printf("failed to connect for cleanup: %s", err)
			return
		}
		defer db.Close()
		if _, err := db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+dbName); err != nil {
			log.Printf("failed to drop database %s: %s", dbName, err)
		}
	})

	test := admin.Clone()
	test.DBName = dbName
	return test.FormatDSN()
}
