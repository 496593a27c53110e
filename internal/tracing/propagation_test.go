package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	// Create context with tracing
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithRunID(ctx, "run-456")

	// Create logger
	var buf bytes.Buffer
	baseLogger := zerolog.New(&buf)

	// Propagate to logger
	logger := PropagateToLogger(ctx, baseLogger)

	// Log a message
	logger.Info().Msg("test message")

	// Verify tracing fields are in log output
	output := buf.String()

	if !contains(output, "trace-123") {
		t.Error("Trace ID not in log output")
	}
	if !contains(output, "run-456") {
		t.Error("Run ID not in log output")
	}
}

func TestPropagateToLoggerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := zerolog.New(&buf)

	logger := PropagateToLogger(context.Background(), baseLogger)
	logger.Info().Msg("test message")

	output := buf.String()
	if contains(output, "trace_id") {
		t.Error("Empty context should not add a trace_id field")
	}
	if contains(output, "run_id") {
		t.Error("Empty context should not add a run_id field")
	}
}

func TestLoggerFromContext(t *testing.T) {
	// Create context with tracing
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-xyz")

	// Create logger
	var buf bytes.Buffer
	baseLogger := zerolog.New(&buf)

	// Get logger from context
	logger := LoggerFromContext(ctx, baseLogger)

	// Log a message
	logger.Info().Msg("test")

	// Verify trace ID is in output
	output := buf.String()
	if !contains(output, "trace-xyz") {
		t.Error("Trace ID not in log output")
	}
}

// Helper function to check if string contains substring
func contains(s, substr string) bool {
	return bytes.Contains([]byte(s), []byte(substr))
}
