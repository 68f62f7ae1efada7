// Package clickhouse opens ClickHouse connections for the ClickHouse source
// and its migrations.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	chdriver "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type (
	DB   = driver.Conn
	Rows = driver.Rows
)

type ClickHouseConfig struct {
	Addr       string
	Username   string
	Password   string
	Database   string
	TLSEnabled bool
}

func (c *ClickHouseConfig) options() *chdriver.Options {
	opts := &chdriver.Options{
		Addr: []string{c.Addr},
		Auth: chdriver.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		DialTimeout: 10 * time.Second,
	}
	if c.TLSEnabled {
		opts.TLS = &tls.Config{}
	}
	return opts
}

// New opens a connection. The driver connects lazily; use Open to fail fast.
func New(config *ClickHouseConfig) (DB, error) {
	return chdriver.Open(config.options())
}

// Open opens a connection and pings the server.
func Open(ctx context.Context, config *ClickHouseConfig) (DB, error) {
	conn, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", config.Addr, err)
	}
	return conn, nil
}
