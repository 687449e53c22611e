package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agencykit/intake/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	// Capture the global logger's output for the duration of the test
	buf := &bytes.Buffer{}
	old := *logging.Default()
	logger := zerolog.New(buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	logging.SetDefault(logger)
	t.Cleanup(func() { logging.SetDefault(old) })

	logging.Debug().Msg("debug message")
	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")
	logging.Error().Msg("error message")
	logging.Err(nil).Msg("err helper message")

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "warning message", "error message", "err helper message"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

func TestNewWritesStructuredOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf)

	logger.Error().Str("key", "lead:smith.j.02134").Msg("row failed")

	output := buf.String()
	if !strings.Contains(output, `"level":"error"`) {
		t.Errorf("Expected JSON level field, got: %s", output)
	}
	if !strings.Contains(output, "lead:smith.j.02134") {
		t.Errorf("Expected key field in output, got: %s", output)
	}
}

func TestNewJSONNilWriterDefaultsToStderr(t *testing.T) {
	// Must not panic with a nil writer
	logger := logging.NewJSON(nil)
	logger.Debug().Msg("discarded or written, never panics")
}

func TestNopDiscards(t *testing.T) {
	// Nop must silently accept events at any level
	logging.Nop.Error().Msg("never seen")
	logging.Nop.Info().Msg("never seen")
}

func TestTestLoggerCapture(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	testLogger.Info().Str("tenant_id", "t1").Msg("first line")
	testLogger.Warn().Msg("second line")

	if !testLogger.Contains("first line") {
		t.Errorf("Expected capture to contain first line, got: %s", testLogger.Output())
	}
	if !testLogger.Contains("tenant_id") {
		t.Errorf("Expected capture to contain field name, got: %s", testLogger.Output())
	}
	if lines := testLogger.Lines(); len(lines) != 2 {
		t.Errorf("Expected 2 captured lines, got %d: %v", len(lines), lines)
	}
}

func TestTestLoggerEmpty(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	if testLogger.Output() != "" {
		t.Errorf("Expected empty output, got: %s", testLogger.Output())
	}
	if lines := testLogger.Lines(); len(lines) != 0 {
		t.Errorf("Expected no lines, got %d", len(lines))
	}
	if testLogger.Contains("anything") {
		t.Error("Empty capture must not contain anything")
	}
}
