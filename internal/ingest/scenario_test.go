package ingest_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/ingest"
	"github.com/joseph-ayodele/docrepo/internal/pipeline"
	"github.com/joseph-ayodele/docrepo/internal/search"
	testhelpers "github.com/joseph-ayodele/docrepo/internal/testhelpers"
	"github.com/joseph-ayodele/docrepo/internal/testpdf"
)

type staticExtractor string

func (s staticExtractor) Extract(context.Context, *entity.Document) (string, error) {
	return string(s), nil
}

func TestIngestOCRSearch_EndToEnd(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())
	pdf := testpdf.Build(1, "end-to-end")

	// when
	first, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "d1.pdf", "moduleA", "item-1")
	require.NoError(t, err)
	second, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "d1.pdf", "moduleB", "item-9")
	require.NoError(t, err)

	orch := pipeline.NewOrchestrator(container.RepoDocuments, container.RepoOCR, staticExtractor("INVOICE 2024"), pipeline.Config{}, container.Logger, nil)
	ok, err := orch.Process(container.Ctx, first.DocumentID)
	require.NoError(t, err)
	require.True(t, ok)

	hits, err := search.NewService(container.RepoSearch, common.SearchConfig{}, container.Logger, nil).Search(container.Ctx, "invoice")

	// then
	require.Equal(t, ingest.OutcomeCreated, first.Outcome)
	require.Equal(t, first.DocumentID, second.DocumentID)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, first.DocumentID, hits[0].DocumentID)
	require.True(t, hits[0].MatchedInBody)
	require.Contains(t, hits[0].MatchedFields(), entity.FieldBody)

	links, err := container.RepoDocuments.ListLinks(container.Ctx, first.DocumentID)
	require.NoError(t, err)
	require.Len(t, links, 2)
}
