// Package testinfra provides databases for integration tests. Set TESTINFRA=1
// in .env.test with TEST_POSTGRES_URL / TEST_CLICKHOUSE_URL to use running
// services; otherwise containers are started on first use.
package testinfra

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hookdeck/relaycursor/internal/util/testutil"
	"github.com/spf13/viper"
)

var (
	suiteCounter int64
	suiteCleanup sync.Once
	cfgSync      sync.Once
	cfg          *Config
)

type Config struct {
	TestInfra     bool
	PostgresURL   string
	ClickHouseURL string
	MySQLDSN      string
	cleanupFns    []func()
}

func initConfig() {
	v := viper.New()
	v.AutomaticEnv()

	configFile := os.Getenv("TEST_CONFIG_FILE")
	if configFile == "" {
		configFile = ".env.test"
	}
	if projectRoot, err := findProjectRoot(configFile); err == nil {
		v.SetConfigFile(filepath.Join(projectRoot, configFile))
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			panic(err)
		}
	}

	cfg = &Config{TestInfra: v.GetBool("TESTINFRA")}
	if cfg.TestInfra {
		cfg.PostgresURL = v.GetString("TEST_POSTGRES_URL")
		cfg.ClickHouseURL = v.GetString("TEST_CLICKHOUSE_URL")
		cfg.MySQLDSN = v.GetString("TEST_MYSQL_DSN")
	}
}

func ReadConfig() *Config {
	cfgSync.Do(initConfig)
	return cfg
}

// Start marks the beginning of an integration test package run. The
// returned func stops containers once the last caller is done.
func Start(t *testing.T) func() {
	testutil.CheckIntegrationTest(t)
	atomic.AddInt64(&suiteCounter, 1)
	return func() {
		if atomic.AddInt64(&suiteCounter, -1) == 0 {
			suiteCleanup.Do(func() {
				if cfg == nil {
					return
				}
				for _, fn := range cfg.cleanupFns {
					if fn != nil {
						fn()
					}
				}
			})
		}
	}
}

func findProjectRoot(marker string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir, nil
		}
		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			return "", os.ErrNotExist
		}
		dir = parentDir
	}
}
