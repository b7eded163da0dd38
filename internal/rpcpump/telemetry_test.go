package rpcpump

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_TelemetryRecordsCompletedCalls(t *testing.T) {
	h := newHarness(t, echoHandler)

	_, err := h.client.Call(context.Background(), "ping", nil, time.Second)
	require.NoError(t, err)

	metrics := h.client.Telemetry()
	assert.Equal(t, int64(1), metrics.Completed)
	assert.Equal(t, int64(0), metrics.Failed)

	records := h.client.DrainTelemetry()
	require.Len(t, records, 1)
	assert.Equal(t, "ping", records[0].Method)
	assert.NoError(t, records[0].Err)
	assert.GreaterOrEqual(t, records[0].Duration, time.Duration(0))
}

func TestClient_TelemetryRecordsFailures(t *testing.T) {
	h := newHarness(t, func(method string, args []any) (any, string, error) {
		return nil, "BAD", assert.AnError
	})

	_, err := h.client.Call(context.Background(), "broken", nil, time.Second)
	require.Error(t, err)

	metrics := h.client.Telemetry()
	assert.Equal(t, int64(0), metrics.Completed)
	assert.Equal(t, int64(1), metrics.Failed)
}

func TestClient_DrainTelemetryEmptiesRing(t *testing.T) {
	h := newHarness(t, echoHandler)

	_, err := h.client.Call(context.Background(), "ping", nil, time.Second)
	require.NoError(t, err)

	first := h.client.DrainTelemetry()
	require.Len(t, first, 1)

	second := h.client.DrainTelemetry()
	assert.Empty(t, second)
}
