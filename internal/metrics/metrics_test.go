package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestParseHeaders(t *testing.T) {
	h := parseHeaders(" signoz-ingestion-key = abc , x=1,broken")
	assert.Equal(t, map[string]string{"signoz-ingestion-key": "abc", "x": "1"}, h)
	assert.Empty(t, parseHeaders(""))
}

func TestNewAppMetricsRecords(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewAppMetrics(provider.Meter("test"), "storefront-test")
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordCartMutation(ctx, "add", "ok")
	m.RecordStock(ctx, "reserved", 1, 3)
	m.RecordDBQuery(ctx, "SELECT", "carts", "SELECT 1", time.Now(), true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}
	assert.True(t, names["cart_mutations_total"])
	assert.True(t, names["stock_reservations_total"])
	assert.True(t, names["db.client.queries.count"])
}

func TestNewNoop(t *testing.T) {
	m := NewNoop()
	require.NotNil(t, m)
	m.RecordLockWait(context.Background(), "cart", time.Now(), true)
}
