package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "achievements", "http://localhost:4318", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "achievements", "", true)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracer_NotNil(t *testing.T) {
	assert.NotNil(t, Tracer())
}
