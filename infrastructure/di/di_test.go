package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphstore/infrastructure/config"
	"graphstore/pkg/observability"
)

func TestInitializeContainerMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "error"

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "memory", container.Store.Name())
	require.NotNil(t, container.Collector)

	rec := httptest.NewRecorder()
	container.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsSinkSelection(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.MetricsSink = config.MetricsNone
		assert.Nil(t, ProvideCollector(cfg))

		metrics, err := ProvideMetrics(context.Background(), cfg, nil, ProvideAWSConfigLoader(cfg), nil)
		require.NoError(t, err)
		assert.IsType(t, observability.NoopMetrics{}, metrics)
	})

	t.Run("prometheus", func(t *testing.T) {
		cfg := config.Defaults()
		collector := ProvideCollector(cfg)
		metrics, err := ProvideMetrics(context.Background(), cfg, collector, ProvideAWSConfigLoader(cfg), nil)
		require.NoError(t, err)
		assert.Same(t, collector, metrics)
	})
}

func TestProvideDomainConfigOverrides(t *testing.T) {
	cfg := config.Defaults()
	cfg.DefaultTake = 10
	cfg.MaxTake = 100
	cfg.EventTypeID = "custom.event"

	domain, err := ProvideDomainConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, domain.DefaultTake)
	assert.Equal(t, 100, domain.MaxTake)
	assert.Equal(t, "custom.event", domain.EventTypeID)
}

func TestSanitizeNamespace(t *testing.T) {
	tests := map[string]string{
		"GraphStore":      "graphstore",
		"GraphStore/prod": "graphstore_prod",
		"":                "graphstore",
		"9lives":          "_9lives",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeNamespace(in), in)
	}
}
