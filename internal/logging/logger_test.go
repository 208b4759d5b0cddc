package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/appforge/internal/logging"
)

func TestNewUsesInfoLevel(t *testing.T) {
	logger := logging.New("svc", "dev", "1.0.0")
	ctx := context.Background()

	assert.False(t, logger.Handler().Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelInfo))
}

func TestNewWithWriterOutputsBaseAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(
		&buf, "appforge", "prod", "2.3.4", slog.LevelDebug,
	)
	logger.Debug("step done",
		logging.FlowID("p1"),
		logging.RunID("r1"),
		logging.Step("write_files"),
		logging.Error(errors.New("boom")),
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "appforge", got["service"])
	assert.Equal(t, "prod", got["env"])
	assert.Equal(t, "2.3.4", got["version"])
	assert.Equal(t, "p1", got["flow_id"])
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, "write_files", got["step"])
	assert.Equal(t, "boom", got["error"])
}

func TestErrorNil(t *testing.T) {
	assert.Equal(t, "", logging.Error(nil).Value.String())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		logging.Discard().Error("dropped")
	})
}
