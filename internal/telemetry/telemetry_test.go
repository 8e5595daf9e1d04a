// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), types.TelemetryConfig{}, discard())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := Init(context.Background(), types.TelemetryConfig{Enabled: true, Protocol: "zipkin"}, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OTLP protocol")
}

func TestInitHTTPExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:1")
	shutdown, err := Init(context.Background(), types.TelemetryConfig{
		Enabled:     true,
		Protocol:    ProtocolHTTP,
		SampleRatio: 0.5,
	}, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing was recorded, so shutdown has no spans to push.
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
