// Package relaycursor resolves Relay-style cursor connections over ordered
// records held in memory, PostgreSQL, MySQL or ClickHouse.
package relaycursor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hookdeck/relaycursor/internal/config"
	"github.com/hookdeck/relaycursor/internal/connection"
	"github.com/hookdeck/relaycursor/internal/cursor"
	"github.com/hookdeck/relaycursor/internal/logging"
	"github.com/hookdeck/relaycursor/internal/migrator"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/otel"
	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"go.uber.org/zap"
)

type (
	Config     = config.Config
	Flags      = config.Flags
	Request    = connection.Request
	Resolver   = connection.Resolver
	Option     = connection.Option
	Page       = connection.Page
	Edge       = connection.Edge
	PageInfo   = pagination.PageInfo
	PageReq    = pagination.PageRequest
	Record     = driver.Record
	Filter     = driver.Filter
	Condition  = driver.Condition
	Source     = driver.Source
	Store      = driver.Store
	Field      = order.Field
	Key        = order.Key
	Spec       = order.Spec
	Value      = order.Value
	RawInput   = order.RawInput
	Threshold  = predicate.Threshold
	Direction  = order.Direction
	ValueType  = order.ValueType
	FilterOp   = driver.FilterOp
	Comparator = order.Comparator
)

var (
	ErrFirstAndLast    = pagination.ErrFirstAndLast
	ErrInvalidAmount   = pagination.ErrInvalidAmount
	ErrInvalidCursor   = pagination.ErrInvalidCursor
	ErrMalformedCursor = cursor.ErrInvalidCursor
	ErrSpecMismatch    = cursor.ErrSpecMismatch
	ErrUnknownField    = driver.ErrUnknownField
	ErrInvalidFilter   = driver.ErrInvalidFilter
	ErrInvalidArgument = connection.ErrInvalidArgument
	ErrAmbiguousOrder  = order.ErrAmbiguousOrder
)

var (
	New                  = connection.New
	ParseArgs            = connection.ParseArgs
	ParseConfig          = config.Parse
	WithResource         = connection.WithResource
	WithDefaultOrder     = connection.WithDefaultOrder
	WithNormalizeOptions = connection.WithNormalizeOptions
	WithPageSize         = connection.WithPageSize
	WithStrictCursors    = connection.WithStrictCursors
	WithLogger           = connection.WithLogger
	WithConfig           = connection.WithConfig
)

// Engine is a Resolver over the store described by a Config.
type Engine struct {
	*connection.Resolver
	store        driver.Store
	logger       *logging.Logger
	otelShutdown func(context.Context) error
}

// Open installs OpenTelemetry when configured, migrates the configured
// database when auto-migrate is on, opens the store and builds a resolver
// from cfg.Connection. opts are applied after the configured options.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Engine, error) {
	logger, err := logging.NewLogger(logging.WithLogLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	return open(ctx, cfg, logger, opts...)
}

func open(ctx context.Context, cfg *Config, logger *logging.Logger, opts ...Option) (*Engine, error) {
	logger.Info("opening connection engine", cfg.LogConfigurationSummary()...)

	otelShutdown, err := otel.SetupOTelSDK(ctx, cfg.OpenTelemetry.ToConfig())
	if err != nil {
		logger.Error("failed to set up OpenTelemetry", zap.Error(err))
		return nil, err
	}
	fail := func(err error) (*Engine, error) {
		if shutdownErr := otelShutdown(ctx); shutdownErr != nil {
			logger.Error("failed to shut down OpenTelemetry", zap.Error(shutdownErr))
		}
		return nil, err
	}

	if cfg.Source.AutoMigrate {
		if migrationOpts, ok := cfg.ToMigratorOpts(); ok {
			if err := migrator.Run(ctx, migrationOpts, logger); err != nil {
				return fail(fmt.Errorf("migrate: %w", err))
			}
		}
	}

	driverOpts, err := source.MakeDriverOpts(ctx, source.ConfigFrom(cfg))
	if err != nil {
		logger.Error("failed to open source", zap.String("driver", cfg.Source.Driver), zap.Error(err))
		return fail(err)
	}
	store, err := source.NewSource(ctx, driverOpts)
	if err != nil {
		driverOpts.Close()
		return fail(err)
	}

	base := []Option{connection.WithConfig(cfg.Connection), connection.WithLogger(logger)}
	return &Engine{
		Resolver:     connection.New(store, append(base, opts...)...),
		store:        store,
		logger:       logger,
		otelShutdown: otelShutdown,
	}, nil
}

// Store returns the backing store, for seeding records.
func (e *Engine) Store() Store {
	return e.store
}

// Close closes the store and flushes telemetry.
func (e *Engine) Close() error {
	err := errors.Join(e.store.Close(), e.otelShutdown(context.Background()))
	_ = e.logger.Sync()
	return err
}
