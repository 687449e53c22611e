package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agencykit/intake/pkg/logging"
)

func TestContextFunctions(t *testing.T) {
	t.Run("WithLogger and FromContext round-trip", func(t *testing.T) {
		testLogger := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), testLogger.Logger)

		logging.FromContext(ctx).Info().Msg("through context")

		assert.True(t, testLogger.Contains("through context"))
	})

	t.Run("FromContext falls back to default", func(t *testing.T) {
		assert.NotNil(t, logging.FromContext(context.Background()))
		assert.NotNil(t, logging.FromContext(nil)) //nolint:staticcheck // nil-safety is the contract under test
	})

	t.Run("Ctx is an alias for FromContext", func(t *testing.T) {
		testLogger := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), testLogger.Logger)

		logging.Ctx(ctx).Info().Msg("via alias")

		assert.True(t, testLogger.Contains("via alias"))
	})

	t.Run("WithLogger nil logger falls back to default", func(t *testing.T) {
		ctx := logging.WithLogger(context.Background(), nil)
		assert.NotNil(t, logging.FromContext(ctx))
	})

	t.Run("WithRunID tags the logger and is retrievable", func(t *testing.T) {
		testLogger := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), testLogger.Logger)
		ctx = logging.WithRunID(ctx, "run-42")

		assert.Equal(t, "run-42", logging.RunID(ctx))

		logging.FromContext(ctx).Info().Msg("tagged")
		assert.True(t, testLogger.Contains("run-42"))
	})

	t.Run("RunID empty without one", func(t *testing.T) {
		assert.Empty(t, logging.RunID(context.Background()))
	})
}
