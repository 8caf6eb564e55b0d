package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON_WritesObjectsAndHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "warn")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.With("module", "bridge").Warn(ctx, "shown", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "bridge", rec["module"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewConsole_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsole(&buf, "debug")
	log.Debug(context.Background(), "cache miss", "id", 7)

	assert.Contains(t, buf.String(), "cache miss")
	assert.Contains(t, buf.String(), "id=7")
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Error(context.Background(), "nothing")
	require.NotNil(t, log.With("a", 1))
}
