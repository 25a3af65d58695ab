package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/SigNoz/storefront-go-app/pkg/config"
)

// AppMetrics holds all application metrics
type AppMetrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestsErrors  metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Database Metrics
	DBQueriesTotal  metric.Int64Counter
	DBQueryDuration metric.Float64Histogram

	// Cart and stock
	CartMutations     metric.Int64Counter
	CartItemsCount    metric.Int64Gauge
	StockReservations metric.Int64Counter
	LockWaitDuration  metric.Float64Histogram

	// Favorites and derived counters
	FavoriteChanges       metric.Int64Counter
	CounterAdjustFailures metric.Int64Counter
	ReconcileCorrections  metric.Int64Counter

	// Catalog
	ProductsViewed metric.Int64Counter
	CacheHits      metric.Int64Counter
	CacheMisses    metric.Int64Counter

	// Service name for adding to all metrics
	serviceName string
}

// InitMetrics initializes the OTLP meter provider and the application instruments
func InitMetrics(ctx context.Context, cfg *config.Config) (*AppMetrics, *sdkmetric.MeterProvider, error) {
	// Explicit attributes take precedence over OTEL_RESOURCE_ATTRIBUTES
	envRes, err := resource.New(ctx, resource.WithFromEnv())
	if err != nil {
		envRes = resource.Empty()
	}

	explicitRes, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(cfg.OTELServiceVersion),
			attribute.String("deployment.environment", cfg.OTELDeploymentEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create explicit resource: %w", err)
	}

	res, err := resource.Merge(envRes, explicitRes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	// WithEndpoint expects host:port without a scheme
	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.OTELExporterOTLPHeaders != "" {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(parseHeaders(cfg.OTELExporterOTLPHeaders)))
	}
	if cfg.OTELExporterOTLPInsecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	log.Info().
		Str("endpoint", cfg.OTELExporterOTLPEndpoint).
		Bool("insecure", cfg.OTELExporterOTLPInsecure).
		Str("service_name", cfg.OTELServiceName).
		Msg("metrics exporter configured, exporting every 10s")

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	appMetrics, err := NewAppMetrics(meterProvider.Meter(cfg.OTELServiceName), cfg.OTELServiceName)
	if err != nil {
		return nil, nil, err
	}
	return appMetrics, meterProvider, nil
}

// NewNoop returns instruments that record nothing
func NewNoop() *AppMetrics {
	m, _ := NewAppMetrics(noop.NewMeterProvider().Meter("noop"), "noop")
	return m
}

// NewAppMetrics creates the application instruments on meter
func NewAppMetrics(meter metric.Meter, serviceName string) (*AppMetrics, error) {
	// SigNoz default histogram buckets in milliseconds, expanded to 60s
	buckets := []float64{2, 4, 6, 8, 10, 50, 100, 200, 400, 800, 1000, 1400, 2000, 5000, 10000, 15000, 20000, 30000, 45000, 60000}

	m := &AppMetrics{serviceName: serviceName}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestsTotal, "http.server.request.count", "Total number of HTTP requests"},
		{&m.HTTPRequestsErrors, "http.server.request.error.count", "Total number of HTTP error requests"},
		{&m.DBQueriesTotal, "db.client.queries.count", "Total number of database queries"},
		{&m.CartMutations, "cart_mutations_total", "Cart mutations by operation and outcome"},
		{&m.StockReservations, "stock_reservations_total", "Stock reserved or released by cart mutations"},
		{&m.FavoriteChanges, "favorite_changes_total", "Favorites added or removed"},
		{&m.CounterAdjustFailures, "favorite_counter_failures_total", "Favorite counter adjustments abandoned after retries"},
		{&m.ReconcileCorrections, "reconcile_corrections_total", "Derived counters corrected by reconciliation"},
		{&m.ProductsViewed, "products_viewed_total", "Total number of product views"},
		{&m.CacheHits, "cache_hits_total", "Total number of cache hits"},
		{&m.CacheMisses, "cache_misses_total", "Total number of cache misses"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.HTTPRequestDuration, "http.server.request.duration", "HTTP request duration in milliseconds"},
		{&m.DBQueryDuration, "db.client.queries.duration", "Database query duration in milliseconds"},
		{&m.LockWaitDuration, "lock_wait_duration", "Time spent acquiring per-key mutation locks in milliseconds"},
	}
	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("ms"),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	m.CartItemsCount, err = meter.Int64Gauge(
		"cart_items_count",
		metric.WithDescription("Current number of lines in user carts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart items gauge: %w", err)
	}

	return m, nil
}

// WithServiceName adds service.name to attributes
func (m *AppMetrics) WithServiceName(attrs []attribute.KeyValue) []attribute.KeyValue {
	return append(attrs, attribute.String("service.name", m.serviceName))
}

// RecordDBQuery records database query metrics including the SQL statement
func (m *AppMetrics) RecordDBQuery(ctx context.Context, operation, table, statement string, start time.Time, success bool) {
	duration := time.Since(start).Milliseconds()

	status := "success"
	if !success {
		status = "error"
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
		attribute.String("db.statement", statement),
		attribute.String("db.system", "mysql"),
		attribute.String("status", status),
	}

	m.DBQueriesTotal.Add(ctx, 1, metric.WithAttributes(m.WithServiceName(attrs)...))
	m.DBQueryDuration.Record(ctx, float64(duration), metric.WithAttributes(m.WithServiceName(attrs)...))
}

// RecordCartMutation counts a cart engine call by operation and outcome
func (m *AppMetrics) RecordCartMutation(ctx context.Context, operation, outcome string) {
	m.CartMutations.Add(ctx, 1, metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	})...))
}

// RecordStock counts units reserved or released
func (m *AppMetrics) RecordStock(ctx context.Context, direction string, productID int64, quantity int) {
	m.StockReservations.Add(ctx, int64(quantity), metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("direction", direction),
		attribute.Int64("product_id", productID),
	})...))
}

// RecordLockWait records how long a mutation waited for its key
func (m *AppMetrics) RecordLockWait(ctx context.Context, scope string, start time.Time, acquired bool) {
	m.LockWaitDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("scope", scope),
		attribute.Bool("acquired", acquired),
	})...))
}

// parseHeaders parses header string in format "key1=value1,key2=value2"
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	pairs := strings.Split(headerStr, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
