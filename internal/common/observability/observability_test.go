package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordWorkflow(context.Background(), "newsletter", true, time.Second)
		o.Shutdown()
	})
}

func TestNewTracing_NoEndpoint(t *testing.T) {
	tr, err := NewTracing("charity-automation-test", "")
	require.NoError(t, err)
	defer tr.Shutdown()

	_, span := Tracer("test").Start(context.Background(), "stage")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
}
