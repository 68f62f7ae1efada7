package connection

import (
	"context"

	"github.com/hookdeck/relaycursor/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type metrics struct {
	resolutions    metric.Int64Counter
	pageSize       metric.Int64Histogram
	invalidCursors metric.Int64Counter
}

// newMetrics creates the resolver instruments. An instrument that fails to
// register stays nil and is skipped.
func newMetrics(meter metric.Meter, logger *logging.Logger) *metrics {
	m := &metrics{}
	var err error
	if m.resolutions, err = meter.Int64Counter("relaycursor.connection.resolutions",
		metric.WithDescription("Connections resolved, by outcome")); err != nil {
		logger.Warn("failed to create metric", zap.String("metric", "resolutions"), zap.Error(err))
	}
	if m.pageSize, err = meter.Int64Histogram("relaycursor.connection.edges",
		metric.WithDescription("Edges returned per page")); err != nil {
		logger.Warn("failed to create metric", zap.String("metric", "edges"), zap.Error(err))
	}
	if m.invalidCursors, err = meter.Int64Counter("relaycursor.connection.invalid_cursors",
		metric.WithDescription("Cursors ignored because they were malformed or minted under another ordering")); err != nil {
		logger.Warn("failed to create metric", zap.String("metric", "invalid_cursors"), zap.Error(err))
	}
	return m
}

func (m *metrics) resolved(ctx context.Context, resource string, page *Page, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if m.resolutions != nil {
		m.resolutions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("resource", resource),
			attribute.String("outcome", outcome)))
	}
	if m.pageSize != nil && page != nil {
		m.pageSize.Record(ctx, int64(len(page.Edges)), metric.WithAttributes(attribute.String("resource", resource)))
	}
}

func (m *metrics) invalidCursor(ctx context.Context, resource, arg string) {
	if m.invalidCursors != nil {
		m.invalidCursors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("resource", resource),
			attribute.String("argument", arg)))
	}
}
