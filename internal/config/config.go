package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func getConfigLocations() []string {
	return []string{
		".env",
		".relaycursor.yaml",
		"config/relaycursor.yaml",
		"config/relaycursor/.env",

		"/config/relaycursor.yaml",
		"/config/relaycursor/.env",
	}
}

type Config struct {
	LogLevel   string           `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error fatal"`
	Connection ConnectionConfig `yaml:"connection"`
	Source     SourceConfig     `yaml:"source"`

	OpenTelemetry OpenTelemetryConfig `yaml:"open_telemetry"`

	configPath string
}

// ConnectionConfig configures how connections are resolved.
type ConnectionConfig struct {
	// Resource scopes the cursors minted by this connection.
	Resource         string   `yaml:"resource" env:"CONNECTION_RESOURCE" validate:"required,alphanum"`
	DefaultPageSize  int      `yaml:"default_page_size" env:"CONNECTION_DEFAULT_PAGE_SIZE" validate:"gte=1,ltefield=MaxPageSize"`
	MaxPageSize      int      `yaml:"max_page_size" env:"CONNECTION_MAX_PAGE_SIZE" validate:"gte=1"`
	StrictCursors    bool     `yaml:"strict_cursors" env:"CONNECTION_STRICT_CURSORS"`
	DefaultOrder     []string `yaml:"default_order" env:"CONNECTION_DEFAULT_ORDER" envSeparator:","`
	DefaultDirection string   `yaml:"default_direction" env:"CONNECTION_DEFAULT_DIRECTION" validate:"omitempty,oneof=ASC DESC asc desc"`
}

// SourceConfig selects and locates the backing store.
type SourceConfig struct {
	Driver      string           `yaml:"driver" env:"SOURCE_DRIVER" validate:"oneof=memory postgres mysql clickhouse"`
	PostgresURL string           `yaml:"postgres_url" env:"POSTGRES_URL" validate:"required_if=Driver postgres"`
	MySQLDSN    string           `yaml:"mysql_dsn" env:"MYSQL_DSN" validate:"required_if=Driver mysql"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Table       TableConfig      `yaml:"table"`
	// AutoMigrate applies the bundled migrations when the source opens.
	AutoMigrate bool `yaml:"auto_migrate" env:"SOURCE_AUTO_MIGRATE"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr" env:"CLICKHOUSE_ADDR"`
	Username     string `yaml:"username" env:"CLICKHOUSE_USERNAME"`
	Password     string `yaml:"password" env:"CLICKHOUSE_PASSWORD"`
	Database     string `yaml:"database" env:"CLICKHOUSE_DATABASE"`
	TLSEnabled   bool   `yaml:"tls_enabled" env:"CLICKHOUSE_TLS_ENABLED"`
	DeploymentID string `yaml:"deployment_id" env:"CLICKHOUSE_DEPLOYMENT_ID"`
}

// TableConfig names the record and metadata tables of SQL sources.
type TableConfig struct {
	Name         string   `yaml:"name" env:"TABLE_NAME" validate:"required"`
	IDColumn     string   `yaml:"id_column" env:"TABLE_ID_COLUMN" validate:"required"`
	Columns      []string `yaml:"columns" env:"TABLE_COLUMNS" envSeparator:","`
	MetaTable    string   `yaml:"meta_table" env:"TABLE_META_TABLE"`
	MetaIDColumn string   `yaml:"meta_id_column" env:"TABLE_META_ID_COLUMN"`
	MetaRecord   string   `yaml:"meta_record_column" env:"TABLE_META_RECORD_COLUMN"`
	MetaKey      string   `yaml:"meta_key_column" env:"TABLE_META_KEY_COLUMN"`
	MetaValue    string   `yaml:"meta_value_column" env:"TABLE_META_VALUE_COLUMN"`
	MetaColumn   string   `yaml:"meta_column" env:"TABLE_META_COLUMN"`
}

type Flags struct {
	Config string
}

// OSInterface abstracts the process environment for tests.
type OSInterface interface {
	Getenv(key string) string
	Environ() []string
	Stat(name string) (os.FileInfo, error)
	ReadFile(filename string) ([]byte, error)
}

type osAdapter struct{}

func (osAdapter) Getenv(key string) string                 { return os.Getenv(key) }
func (osAdapter) Environ() []string                        { return os.Environ() }
func (osAdapter) Stat(name string) (os.FileInfo, error)    { return os.Stat(name) }
func (osAdapter) ReadFile(filename string) ([]byte, error) { return os.ReadFile(filename) }

func (c *Config) initDefaults() {
	c.LogLevel = "info"
	c.Connection = ConnectionConfig{
		Resource:         "node",
		DefaultPageSize:  10,
		MaxPageSize:      100,
		DefaultDirection: "ASC",
	}
	c.Source = SourceConfig{
		Driver:      "memory",
		AutoMigrate: true,
		Table: TableConfig{
			Name:         "records",
			IDColumn:     "id",
			Columns:      []string{"title", "category", "price", "published_at"},
			MetaTable:    "record_meta",
			MetaIDColumn: "meta_id",
			MetaRecord:   "record_id",
			MetaKey:      "meta_key",
			MetaValue:    "meta_value",
			MetaColumn:   "meta",
		},
	}
}

func (c *Config) parseConfigFile(flagPath string, osInterface OSInterface) error {
	configPath := flagPath
	if envPath := osInterface.Getenv("CONFIG"); envPath != "" {
		if configPath != "" && configPath != envPath {
			return fmt.Errorf("conflicting config paths: flag=%s env=%s", configPath, envPath)
		}
		configPath = envPath
	}

	if configPath == "" {
		for _, loc := range getConfigLocations() {
			if _, err := osInterface.Stat(loc); err == nil {
				configPath = loc
				break
			}
		}
	}
	if configPath == "" {
		return nil
	}

	data, err := osInterface.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	c.configPath = configPath

	if strings.HasSuffix(strings.ToLower(configPath), ".env") {
		envMap, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return fmt.Errorf("error loading .env file: %w", err)
		}
		if err := env.ParseWithOptions(c, env.Options{Environment: envMap}); err != nil {
			return fmt.Errorf("error parsing .env file: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing yaml config: %w", err)
	}
	return nil
}

func (c *Config) parseEnvVariables(osInterface OSInterface) error {
	return env.ParseWithOptions(c, env.Options{Environment: env.ToMap(osInterface.Environ())})
}

func Parse(flags Flags) (*Config, error) {
	return ParseWithOS(flags, osAdapter{})
}

// ParseWithOS loads defaults, then the config file, then environment
// variables, which take precedence, and validates the result.
func ParseWithOS(flags Flags, osInterface OSInterface) (*Config, error) {
	var config Config
	config.initDefaults()

	if err := config.parseConfigFile(flags.Config, osInterface); err != nil {
		return nil, err
	}
	if err := config.parseEnvVariables(osInterface); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ConfigFilePath returns the file the config was read from, if any.
func (c *Config) ConfigFilePath() string {
	return c.configPath
}
