package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "document_id", "abc")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"document_id":"abc"`)
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
}
