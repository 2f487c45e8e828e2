package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/testpdf"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-ocr.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'INVOICE 2024' > \"$2\"\n"), 0o755))

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", "file:"+filepath.Join(dir, "docrepo.db"))
	t.Setenv("BLOB_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("OCR_EXECUTABLE", script)
	t.Setenv("OCR_WORK_ROOT", filepath.Join(dir, "ocr"))
	t.Setenv("INGEST_CATEGORY_ID", "cat-1")
	t.Setenv("INGEST_CLASSIFICATION_ID", "cls-1")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), "docrepo %v", args)
	return out.String()
}

func TestCLI_IngestOCRSearch(t *testing.T) {
	// given
	dir := setupEnv(t)
	pdfPath := filepath.Join(dir, "d1.pdf")
	require.NoError(t, os.WriteFile(pdfPath, testpdf.Build(1, "cli"), 0o644))

	// when
	migrated := run(t, "migrate")
	created := run(t, "ingest", pdfPath, "--module", "moduleA", "--item", "item-1", "--subject", "Quarterly")
	linked := run(t, "ingest", pdfPath, "--module", "moduleB", "--item", "item-9")
	processed := run(t, "ocr", "pending")
	found := run(t, "search", "invoice", "--json")

	// then
	require.Contains(t, migrated, "schema up to date")
	require.Contains(t, created, "created")
	require.Contains(t, linked, "deduplicated")
	require.Contains(t, processed, "processed 1")

	var hits []entity.SearchHit
	require.NoError(t, json.Unmarshal([]byte(found), &hits))
	require.Len(t, hits, 1)
	require.True(t, hits[0].MatchedInBody)
	require.Equal(t, "Quarterly", hits[0].Subject)

	// when
	id := strings.Fields(created)[1]
	shown := run(t, "show", id)
	deleted := run(t, "delete", id)
	after := run(t, "search", "invoice", "--json")

	// then
	require.Equal(t, hits[0].DocumentID.String(), id)
	require.Contains(t, shown, `"source_module": "moduleB"`)
	require.NotContains(t, shown, "storage_path")
	require.Contains(t, deleted, "deleted "+id)
	require.JSONEq(t, "[]", after)
}

func TestCLI_RejectsBadArguments(t *testing.T) {
	setupEnv(t)

	tests := [][]string{
		{"ingest", "x.pdf"},
		{"ocr", "run", "not-a-uuid"},
		{"search"},
		{"watch"},
	}
	for _, args := range tests {
		cmd := newRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		require.Error(t, cmd.ExecuteContext(context.Background()), "docrepo %v", args)
	}
}
