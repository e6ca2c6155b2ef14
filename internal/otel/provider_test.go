package otel

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/tacticsboard/choreo/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, p.Meter("choreo"))
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_WritesRecordsToLogWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{Enabled: true, ServiceName: "choreo-test", LogWriter: &buf})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	logger := slog.New(otelslog.NewHandler("choreo", otelslog.WithLoggerProvider(p.LoggerProvider())))
	logger.Info("export finished", "frames", 31)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "export finished")
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "svc",
		BatchTimeout: 2 * time.Second,
		Endpoint:     "collector:4318",
		Insecure:     true,
	}, &buf)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, 2*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Same(t, &buf, cfg.LogWriter)
}
