// Package testhelpers wires repositories against a throwaway database for package tests.
package testhelpers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/internal/blob"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/repository"
)

// PostgresDSNEnv enables the Postgres variants of repository tests.
const PostgresDSNEnv = "DOCREPO_TEST_POSTGRES_DSN"

type TestContainer struct {
	Ctx    context.Context
	Logger *slog.Logger

	DB    *repository.DB
	Blobs *blob.Store

	RepoDocuments repository.DocumentRepository
	RepoOCR       repository.OCRStateRepository
	RepoSearch    repository.SearchRepository
}

// NewLogger returns a logger that discards everything.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// GetClean returns a container backed by a fresh in-memory SQLite database.
func GetClean(t *testing.T) *TestContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := NewLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.OpenSQLite(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	return newContainer(t, ctx, logger, db)
}

// GetCleanPostgres is GetClean against the database named by DOCREPO_TEST_POSTGRES_DSN.
// The test is skipped when the variable is unset.
func GetCleanPostgres(t *testing.T) *TestContainer {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := NewLogger()
	db, err := repository.OpenPostgres(ctx, common.DatabaseConfig{DSN: dsn, MaxConns: 4, DialTimeout: 5 * time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	_, err = db.SQL.ExecContext(ctx, "TRUNCATE external_links, document_texts, documents")
	require.NoError(t, err)

	return newContainer(t, ctx, logger, db)
}

func newContainer(t *testing.T, ctx context.Context, logger *slog.Logger, db *repository.DB) *TestContainer {
	blobs, err := blob.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	return &TestContainer{
		Ctx:    ctx,
		Logger: logger,

		DB:    db,
		Blobs: blobs,

		RepoDocuments: repository.NewDocumentRepository(db, logger),
		RepoOCR:       repository.NewOCRStateRepository(db, logger),
		RepoSearch:    repository.NewSearchRepository(db, logger),
	}
}
