package ingest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/contenthash"
	testhelpers "github.com/joseph-ayodele/docrepo/internal/testhelpers"
	"github.com/joseph-ayodele/docrepo/internal/testpdf"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestIngestDirectory(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())
	root := t.TempDir()
	a := testpdf.Build(1, "dir-a")
	b := testpdf.Build(1, "dir-b")
	writeFile(t, filepath.Join(root, "a.pdf"), a)
	writeFile(t, filepath.Join(root, "sub", "b.PDF"), b)
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), testpdf.Build(1, "dir-c"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("skip me"))
	writeFile(t, filepath.Join(root, "broken.pdf"), []byte("not a pdf"))

	// when
	results, stats, err := svc.IngestDirectory(container.Ctx, root, "archive", true)

	// then
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, uint32(4), stats.Scanned)
	require.Equal(t, uint32(3), stats.Matched)
	require.Equal(t, uint32(2), stats.Created)
	require.Equal(t, uint32(1), stats.Failed)

	doc, err := container.RepoDocuments.FindActiveByHash(container.Ctx, contenthash.SumBytes(b))
	require.NoError(t, err)
	links, err := container.RepoDocuments.ListLinks(container.Ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "archive", links[0].SourceModule)
	require.Equal(t, "sub/b.PDF", links[0].SourceItemID)

	// when
	_, again, err := svc.IngestDirectory(container.Ctx, root, "archive", true)

	// then
	require.NoError(t, err)
	require.Equal(t, uint32(0), again.Created)
	require.Equal(t, uint32(2), again.Deduplicated)
}

func TestIngestDirectory_RequiresRoot(t *testing.T) {
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())

	_, _, err := svc.IngestDirectory(container.Ctx, " ", "archive", false)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = svc.IngestDirectory(container.Ctx, filepath.Join(t.TempDir(), "missing"), "archive", false)
	require.Error(t, err)
}

func TestIngestFile_Missing(t *testing.T) {
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())

	_, err := svc.IngestFile(container.Ctx, filepath.Join(t.TempDir(), "nope.pdf"), "moduleA", "item-1")

	require.ErrorIs(t, err, common.ErrNotFound)
}
