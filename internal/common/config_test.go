package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, []string{"{input}", "{output}"}, cfg.OCR.Args)
	require.Equal(t, "input", cfg.OCR.InputDir)
	require.Equal(t, 1, cfg.OCR.BatchConcurrency)
	require.True(t, cfg.Ingest.Enabled)
	require.Empty(t, cfg.Ingest.CategoryID)
	require.Equal(t, 50, cfg.Search.Limit)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "file:test.db")
	t.Setenv("OCR_ARGS", "--sidecar {output} {input} /dev/null")
	t.Setenv("OCR_TIMEOUT", "30s")
	t.Setenv("INGEST_ENABLED", "false")
	t.Setenv("INGEST_MAX_BYTES", "1024")
	t.Setenv("OCR_BATCH_CONCURRENCY", "not-a-number")

	cfg := LoadConfig()

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, []string{"--sidecar", "{output}", "{input}", "/dev/null"}, cfg.OCR.Args)
	require.Equal(t, 30*time.Second, cfg.OCR.Timeout)
	require.False(t, cfg.Ingest.Enabled)
	require.EqualValues(t, 1024, cfg.Ingest.MaxBytes)
	require.Equal(t, 1, cfg.OCR.BatchConcurrency)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := LoadConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfiguration))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, CodeConfig, appErr.Code)

	cfg.Database.DSN = "postgres://localhost/docrepo"
	cfg.Database.Driver = "mysql"
	require.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}
