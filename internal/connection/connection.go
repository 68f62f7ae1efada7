// Package connection resolves Relay connections over a driver.Source: it
// normalizes the requested ordering, plans the page, fetches and assembles
// edges and page info.
package connection

import (
	"context"
	"fmt"

	"github.com/hookdeck/relaycursor/internal/config"
	"github.com/hookdeck/relaycursor/internal/logging"
	"github.com/hookdeck/relaycursor/internal/order"
	"github.com/hookdeck/relaycursor/internal/pagination"
	"github.com/hookdeck/relaycursor/internal/predicate"
	"github.com/hookdeck/relaycursor/internal/source/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/hookdeck/relaycursor/internal/connection"

type (
	Page = pagination.Page[driver.Record]
	Edge = pagination.Edge[driver.Record]
)

// Request is one connection query. Thresholds supply cursor values for
// ordering keys computed outside the records.
type Request struct {
	Page       pagination.PageRequest
	Order      []order.RawInput
	Filter     driver.Filter
	Thresholds []predicate.Threshold
}

// Resolver is safe for concurrent use; it keeps no state between calls.
type Resolver struct {
	source     driver.Source
	defaults   order.Spec
	defaultRaw []order.RawInput
	normalize  []order.NormalizeOption
	opts       pagination.Options
	logger     *logging.Logger
	tracer     trace.Tracer
	metrics    *metrics
}

type Option func(*Resolver)

// WithResource scopes cursors to one connection type.
func WithResource(resource string) Option {
	return func(r *Resolver) { r.opts.Resource = resource }
}

// WithDefaultOrder sets the ordering used when a request names none.
func WithDefaultOrder(spec order.Spec) Option {
	return func(r *Resolver) { r.defaults = spec }
}

func WithNormalizeOptions(opts ...order.NormalizeOption) Option {
	return func(r *Resolver) { r.normalize = append(r.normalize, opts...) }
}

// WithPageSize sets the default and maximum page size.
func WithPageSize(defaultLimit, maxLimit int) Option {
	return func(r *Resolver) {
		r.opts.DefaultLimit = defaultLimit
		r.opts.MaxLimit = maxLimit
	}
}

// WithStrictCursors rejects requests with invalid cursors instead of
// ignoring the cursor.
func WithStrictCursors() Option {
	return func(r *Resolver) { r.opts.Strict = true }
}

func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithConfig applies a ConnectionConfig.
func WithConfig(cfg config.ConnectionConfig) Option {
	return func(r *Resolver) {
		r.opts.Resource = cfg.Resource
		r.opts.DefaultLimit = cfg.DefaultPageSize
		r.opts.MaxLimit = cfg.MaxPageSize
		r.opts.Strict = cfg.StrictCursors

		dir, err := order.ParseDirection(cfg.DefaultDirection, order.Asc)
		if err == nil {
			r.normalize = append(r.normalize, order.WithDefaultDirection(dir))
		}
		if len(cfg.DefaultOrder) > 0 {
			raw := make([]order.RawInput, len(cfg.DefaultOrder))
			for i, f := range cfg.DefaultOrder {
				raw[i] = order.RawInput{Field: f, Direction: cfg.DefaultDirection}
			}
			r.defaultRaw = raw
		}
	}
}

func New(source driver.Source, opts ...Option) *Resolver {
	r := &Resolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	r.tracer = otel.Tracer(instrumentationName)
	r.metrics = newMetrics(otel.Meter(instrumentationName), r.logger)
	return r
}

// Resolve returns the page of records selected by req.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Page, error) {
	ctx, span := r.tracer.Start(ctx, "connection.Resolve", trace.WithAttributes(
		attribute.String("connection.resource", r.opts.Resource),
	))
	defer span.End()

	page, err := r.resolve(ctx, span, req)
	r.metrics.resolved(ctx, r.opts.Resource, page, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("connection.edges", len(page.Edges)),
		attribute.Bool("connection.has_next_page", page.PageInfo.HasNextPage),
		attribute.Bool("connection.has_previous_page", page.PageInfo.HasPreviousPage),
	)
	r.logger.Ctx(ctx).Debug("connection resolved",
		zap.String("resource", r.opts.Resource),
		zap.Int("edges", len(page.Edges)),
		zap.Bool("has_next_page", page.PageInfo.HasNextPage),
		zap.Bool("has_previous_page", page.PageInfo.HasPreviousPage))
	return page, nil
}

func (r *Resolver) resolve(ctx context.Context, span trace.Span, req Request) (*Page, error) {
	spec, err := r.Spec(req.Order)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("connection.order", spec.String()))

	opts := r.opts
	opts.OnInvalidCursor = func(arg string, err error) {
		span.AddEvent("invalid cursor ignored", trace.WithAttributes(attribute.String("argument", arg)))
		r.metrics.invalidCursor(ctx, r.opts.Resource, arg)
		r.logger.Ctx(ctx).Warn("ignoring invalid cursor",
			zap.String("resource", r.opts.Resource),
			zap.String("argument", arg),
			zap.Error(err))
	}

	return pagination.Run(ctx, pagination.Config[driver.Record]{
		Request:    req.Page,
		Spec:       spec,
		Thresholds: req.Thresholds,
		Options:    opts,
		Fetch: func(ctx context.Context, q pagination.QueryInput) ([]driver.Record, error) {
			span.SetAttributes(
				attribute.String("connection.direction", q.Direction.String()),
				attribute.Int("connection.limit", q.Limit-1),
			)
			records, err := r.source.Fetch(ctx, driver.FetchRequest{
				Filter:    req.Filter,
				Spec:      q.Spec,
				Predicate: q.Predicate,
				Limit:     q.Limit,
				Direction: driver.Direction(q.Direction),
			})
			if err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
			return records, nil
		},
		ID:    func(rec driver.Record) string { return rec.ID },
		Value: driver.Record.Value,
	})
}

// Spec returns the normalized ordering for raw order input.
func (r *Resolver) Spec(raw []order.RawInput) (order.Spec, error) {
	defaults := r.defaults
	if defaults == nil && r.defaultRaw != nil {
		spec, err := order.Normalize(r.defaultRaw, nil, r.normalize...)
		if err != nil {
			return nil, fmt.Errorf("default order: %w", err)
		}
		defaults = spec
	}
	return order.Normalize(raw, defaults, r.normalize...)
}
