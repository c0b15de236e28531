package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracer_ExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(Config{ServiceName: "tier-router-test", Version: "v1.2.3"}, zap.NewNop(), &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "router.attempt")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "router.attempt")
	assert.Contains(t, buf.String(), "tier-router-test")
}

func TestInitTracer_RegistersPropagator(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(Config{ServiceName: "svc", SampleRatio: 0.5}, zap.NewNop(), &buf)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}
