package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/contenthash"
	"github.com/joseph-ayodele/docrepo/internal/entity"
	"github.com/joseph-ayodele/docrepo/internal/ingest"
	"github.com/joseph-ayodele/docrepo/internal/repository"
	testhelpers "github.com/joseph-ayodele/docrepo/internal/testhelpers"
	"github.com/joseph-ayodele/docrepo/internal/testpdf"
)

func defaultConfig() common.IngestConfig {
	return common.IngestConfig{
		Enabled:          true,
		CategoryID:       "cat-1",
		ClassificationID: "cls-1",
		MaxBytes:         1 << 20,
		ValidatePDF:      true,
	}
}

func newService(c *testhelpers.TestContainer, docs repository.DocumentRepository, cfg common.IngestConfig) *ingest.Service {
	if docs == nil {
		docs = c.RepoDocuments
	}
	return ingest.NewService(docs, c.Blobs, cfg, c.Logger, nil)
}

func countBlobs(t *testing.T, c *testhelpers.TestContainer) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(c.Blobs.Root(), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

// racyDocs hides existing documents from the first lookup, like a concurrent
// ingest that commits between lookup and insert.
type racyDocs struct {
	repository.DocumentRepository
	lookups atomic.Int32
}

func (r *racyDocs) FindActiveByHash(ctx context.Context, hash string) (*entity.Document, error) {
	if r.lookups.Add(1) == 1 {
		return nil, common.ErrNotFound
	}
	return r.DocumentRepository.FindActiveByHash(ctx, hash)
}

type failingDocs struct {
	repository.DocumentRepository
}

func (failingDocs) CreateWithLink(context.Context, entity.NewDocument, string, string) (*entity.Document, error) {
	return nil, errors.New("disk full")
}

func TestIngest_BlankActorRecordsSystem(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())

	// when
	res, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(testpdf.Build(1, "no-actor")), "a.pdf", "moduleA", "item-1",
		ingest.WithActor("  "))

	// then
	require.NoError(t, err)
	doc, err := container.RepoDocuments.GetByID(container.Ctx, res.DocumentID)
	require.NoError(t, err)
	require.Equal(t, common.SystemActor, doc.CreatedBy)
}

func TestIngest_CreatesDocument(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())
	pdf := testpdf.Build(2, "created")
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// when
	res, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), `C:\scans\invoice.pdf`, "moduleA", "item-1",
		ingest.WithSubject(" Invoice March "), ingest.WithTags("billing"), ingest.WithDocumentDate(date), ingest.WithActor("alice"))

	// then
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeCreated, res.Outcome)
	require.True(t, res.LinkCreated)
	require.Equal(t, contenthash.SumBytes(pdf), res.ContentHash)

	doc, err := container.RepoDocuments.GetByID(container.Ctx, res.DocumentID)
	require.NoError(t, err)
	require.Equal(t, "invoice.pdf", doc.OriginalFileName)
	require.Equal(t, "Invoice March", doc.Subject)
	require.Equal(t, "billing", doc.Tags)
	require.Equal(t, constants.PDFMimeType, doc.MimeType)
	require.Equal(t, int64(len(pdf)), doc.ByteSize)
	require.NotNil(t, doc.PageCount)
	require.Equal(t, 2, *doc.PageCount)
	require.NotNil(t, doc.DocumentDate)
	require.True(t, date.Equal(*doc.DocumentDate))
	require.Equal(t, constants.OCRStatusPending, doc.OCRStatus)
	require.Equal(t, "alice", doc.CreatedBy)
	require.Equal(t, "cat-1", doc.CategoryID)

	exists, err := container.Blobs.Exists(container.Ctx, doc.StoragePath)
	require.NoError(t, err)
	require.True(t, exists)
	require.True(t, strings.HasSuffix(doc.StoragePath, ".pdf"))
}

func TestIngest_IsIdempotent(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())
	pdf := testpdf.Build(1, "idempotent")

	first, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "a.pdf", "moduleA", "item-1")
	require.NoError(t, err)

	// when
	second, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "renamed.pdf", "moduleA", "item-1")

	// then
	require.NoError(t, err)
	require.Equal(t, first.DocumentID, second.DocumentID)
	require.Equal(t, ingest.OutcomeDeduplicated, second.Outcome)
	require.False(t, second.LinkCreated)

	links, err := container.RepoDocuments.ListLinks(container.Ctx, first.DocumentID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, 1, countBlobs(t, container))
}

func TestIngest_FansInAcrossModules(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, nil, defaultConfig())
	pdf := testpdf.Build(1, "fan-in")

	// when
	a, errA := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "a.pdf", "moduleA", "item-1")
	b, errB := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "b.pdf", "moduleB", "item-9")

	// then
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a.DocumentID, b.DocumentID)
	require.Equal(t, ingest.OutcomeDeduplicated, b.Outcome)
	require.True(t, b.LinkCreated)

	links, err := container.RepoDocuments.ListLinks(container.Ctx, a.DocumentID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	pairs := []string{links[0].SourceModule + "/" + links[0].SourceItemID, links[1].SourceModule + "/" + links[1].SourceItemID}
	require.ElementsMatch(t, []string{"moduleA/item-1", "moduleB/item-9"}, pairs)
	require.Equal(t, 1, countBlobs(t, container))
}

func TestIngest_Disabled(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	cfg := defaultConfig()
	cfg.Enabled = false
	svc := newService(container, nil, cfg)
	pdf := testpdf.Build(1, "disabled")

	// when
	res, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "a.pdf", "moduleA", "item-1")

	// then
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeDisabled, res.Outcome)
	require.Equal(t, uuid.Nil, res.DocumentID)
	_, err = container.RepoDocuments.FindActiveByHash(container.Ctx, contenthash.SumBytes(pdf))
	require.ErrorIs(t, err, common.ErrNotFound)
	require.Zero(t, countBlobs(t, container))
}

func TestIngest_MissingClassificationOnlyMattersForNewDocuments(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	known := testpdf.Build(1, "known")
	_, err := newService(container, nil, defaultConfig()).
		IngestExternalPDF(container.Ctx, bytes.NewReader(known), "a.pdf", "moduleA", "item-1")
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.ClassificationID = ""
	svc := newService(container, nil, cfg)

	// when
	_, errNew := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(testpdf.Build(1, "new")), "b.pdf", "moduleA", "item-2")
	dup, errDup := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(known), "a.pdf", "moduleB", "item-3")

	// then
	require.ErrorIs(t, errNew, common.ErrConfiguration)
	require.NoError(t, errDup)
	require.Equal(t, ingest.OutcomeDeduplicated, dup.Outcome)
	require.Equal(t, 1, countBlobs(t, container))
}

func TestIngest_RejectsBadInput(t *testing.T) {
	container := testhelpers.GetClean(t)
	pdf := testpdf.Build(1, "input")

	small := defaultConfig()
	small.MaxBytes = 16

	tests := []struct {
		name   string
		cfg    common.IngestConfig
		body   []byte
		module string
		item   string
	}{
		{name: "blank module", cfg: defaultConfig(), body: pdf, module: "  ", item: "item-1"},
		{name: "blank item", cfg: defaultConfig(), body: pdf, module: "moduleA", item: ""},
		{name: "too long module", cfg: defaultConfig(), body: pdf, module: strings.Repeat("m", 201), item: "item-1"},
		{name: "over size limit", cfg: small, body: pdf, module: "moduleA", item: "item-1"},
		{name: "empty payload", cfg: defaultConfig(), body: nil, module: "moduleA", item: "item-1"},
		{name: "not a pdf", cfg: defaultConfig(), body: []byte("hello, world"), module: "moduleA", item: "item-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(container, nil, tt.cfg)

			_, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(tt.body), "a.pdf", tt.module, tt.item)

			require.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
	require.Zero(t, countBlobs(t, container))
}

func TestIngest_ValidationCanBeSkipped(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	cfg := defaultConfig()
	cfg.ValidatePDF = false
	svc := newService(container, nil, cfg)

	// when
	res, err := svc.IngestExternalPDF(container.Ctx, strings.NewReader("not really a pdf"), "", "moduleA", "item-1")

	// then
	require.NoError(t, err)
	doc, err := container.RepoDocuments.GetByID(container.Ctx, res.DocumentID)
	require.NoError(t, err)
	require.Nil(t, doc.PageCount)
	require.Equal(t, constants.DefaultFileName, doc.OriginalFileName)
}

func TestIngest_ConcurrentCreateReResolves(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	pdf := testpdf.Build(1, "race")
	winner, err := newService(container, nil, defaultConfig()).
		IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "a.pdf", "moduleA", "item-1")
	require.NoError(t, err)
	racy := &racyDocs{DocumentRepository: container.RepoDocuments}
	svc := newService(container, racy, defaultConfig())

	// when
	res, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(pdf), "a.pdf", "moduleB", "item-2")

	// then
	require.NoError(t, err)
	require.Equal(t, winner.DocumentID, res.DocumentID)
	require.Equal(t, ingest.OutcomeDeduplicated, res.Outcome)
	require.True(t, res.LinkCreated)
	require.Equal(t, int32(2), racy.lookups.Load())
	require.Equal(t, 1, countBlobs(t, container), "the losing blob is removed")
}

func TestIngest_FailedCreateRemovesBlob(t *testing.T) {
	// given
	container := testhelpers.GetClean(t)
	svc := newService(container, failingDocs{DocumentRepository: container.RepoDocuments}, defaultConfig())

	// when
	_, err := svc.IngestExternalPDF(container.Ctx, bytes.NewReader(testpdf.Build(1, "fail")), "a.pdf", "moduleA", "item-1")

	// then
	require.ErrorContains(t, err, "disk full")
	require.Zero(t, countBlobs(t, container))
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "a/b/report.pdf", want: "report.pdf"},
		{in: `C:\Users\x\report.pdf`, want: "report.pdf"},
		{in: "mixed/dir\\report.pdf", want: "report.pdf"},
		{in: "", want: constants.DefaultFileName},
		{in: "   ", want: constants.DefaultFileName},
		{in: "dir/", want: constants.DefaultFileName},
		{in: "..", want: constants.DefaultFileName},
		{in: "bad\x00name.pdf", want: "badname.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ingest.SanitizeFileName(tt.in))
		})
	}

	long := ingest.SanitizeFileName(strings.Repeat("a", 300) + ".pdf")
	require.Len(t, []rune(long), 255)
	require.True(t, strings.HasSuffix(long, ".pdf"))
}
