package contextutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceIDFromContext(t *testing.T) {
	require.Equal(t, "unknown-trace-id", TraceIDFromContext(context.Background()))

	ctx := WithTraceID(context.Background(), "abc-123")
	require.Equal(t, "abc-123", TraceIDFromContext(ctx))
}
